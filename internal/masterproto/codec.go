package masterproto

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope is the on-the-wire shape: a discriminator tag plus the raw
// payload, since encoding/json cannot marshal an interface field directly.
// This mirrors the teacher's opcode-tagged packet framing (one byte/word
// selecting which concrete struct follows) lifted to JSON.
type wireEnvelope struct {
	ID      uint32          `json:"id"`
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var actionKinds = map[string]func() Action{
	"RegisterShip":     func() Action { return &RegisterShip{} },
	"UnregisterShip":   func() Action { return &UnregisterShip{} },
	"UserLogin":        func() Action { return &UserLogin{} },
	"SegaIDLogin":      func() Action { return &SegaIDLogin{} },
	"UserRegister":     func() Action { return &UserRegister{} },
	"SetNickname":      func() Action { return &SetNickname{} },
	"GetUserInfo":      func() Action { return &GetUserInfo{} },
	"PutUserInfo":      func() Action { return &PutUserInfo{} },
	"PutAccountFlags":  func() Action { return &PutAccountFlags{} },
	"GetStorage":       func() Action { return &GetStorage{} },
	"PutStorage":       func() Action { return &PutStorage{} },
	"GetSettings":      func() Action { return &GetSettings{} },
	"PutSettings":      func() Action { return &PutSettings{} },
	"PutUUID":          func() Action { return &PutUUID{} },
	"NewBlockChallenge": func() Action { return &NewBlockChallenge{} },
	"ChallengeLogin":   func() Action { return &ChallengeLogin{} },
	"GetLogins":        func() Action { return &GetLogins{} },
}

var resultKinds = map[string]func() Result{
	"Ok":              func() Result { return &Ok{} },
	"Error":           func() Result { return &Error{} },
	"AlreadyTaken":    func() Result { return &AlreadyTaken{} },
	"NotFound":        func() Result { return &NotFound{} },
	"InvalidPassword": func() Result { return &InvalidPassword{} },
	"NewID":           func() Result { return &NewID{} },
	"Challenge":       func() Result { return &Challenge{} },
	"UserLoginResult": func() Result { return &UserLoginResult{} },
	"LoginHistory":    func() Result { return &LoginHistory{} },
	"Blob":            func() Result { return &Blob{} },
	"SettingsBlob":    func() Result { return &SettingsBlob{} },
}

func kindOf(v any) string {
	switch v.(type) {
	case *RegisterShip, RegisterShip:
		return "RegisterShip"
	case *UnregisterShip, UnregisterShip:
		return "UnregisterShip"
	case *UserLogin, UserLogin:
		return "UserLogin"
	case *SegaIDLogin, SegaIDLogin:
		return "SegaIDLogin"
	case *UserRegister, UserRegister:
		return "UserRegister"
	case *SetNickname, SetNickname:
		return "SetNickname"
	case *GetUserInfo, GetUserInfo:
		return "GetUserInfo"
	case *PutUserInfo, PutUserInfo:
		return "PutUserInfo"
	case *PutAccountFlags, PutAccountFlags:
		return "PutAccountFlags"
	case *GetStorage, GetStorage:
		return "GetStorage"
	case *PutStorage, PutStorage:
		return "PutStorage"
	case *GetSettings, GetSettings:
		return "GetSettings"
	case *PutSettings, PutSettings:
		return "PutSettings"
	case *PutUUID, PutUUID:
		return "PutUUID"
	case *NewBlockChallenge, NewBlockChallenge:
		return "NewBlockChallenge"
	case *ChallengeLogin, ChallengeLogin:
		return "ChallengeLogin"
	case *GetLogins, GetLogins:
		return "GetLogins"
	case *Ok, Ok:
		return "Ok"
	case *Error, Error:
		return "Error"
	case *AlreadyTaken, AlreadyTaken:
		return "AlreadyTaken"
	case *NotFound, NotFound:
		return "NotFound"
	case *InvalidPassword, InvalidPassword:
		return "InvalidPassword"
	case *NewID, NewID:
		return "NewID"
	case *Challenge, Challenge:
		return "Challenge"
	case *UserLoginResult, UserLoginResult:
		return "UserLoginResult"
	case *LoginHistory, LoginHistory:
		return "LoginHistory"
	case *Blob, Blob:
		return "Blob"
	case *SettingsBlob, SettingsBlob:
		return "SettingsBlob"
	default:
		return ""
	}
}

// MarshalJSON implements the tagged encoding described by wireEnvelope.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{ID: e.ID}
	switch {
	case e.Action != nil:
		w.Kind = kindOf(e.Action)
		payload, err := json.Marshal(e.Action)
		if err != nil {
			return nil, fmt.Errorf("marshal action payload: %w", err)
		}
		w.Payload = payload
	case e.Result != nil:
		w.Kind = kindOf(e.Result)
		payload, err := json.Marshal(e.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result payload: %w", err)
		}
		w.Payload = payload
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a wireEnvelope and resolves its Kind tag into the
// correct concrete Action or Result, trying actions first.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ID = w.ID
	if w.Kind == "" {
		return nil
	}

	if ctor, ok := actionKinds[w.Kind]; ok {
		v := ctor()
		if len(w.Payload) > 0 {
			if err := json.Unmarshal(w.Payload, v); err != nil {
				return fmt.Errorf("unmarshal action %s: %w", w.Kind, err)
			}
		}
		e.Action = derefAction(v)
		return nil
	}
	if ctor, ok := resultKinds[w.Kind]; ok {
		v := ctor()
		if len(w.Payload) > 0 {
			if err := json.Unmarshal(w.Payload, v); err != nil {
				return fmt.Errorf("unmarshal result %s: %w", w.Kind, err)
			}
		}
		e.Result = derefResult(v)
		return nil
	}
	return fmt.Errorf("unknown masterproto envelope kind %q", w.Kind)
}

func derefAction(v Action) Action {
	switch p := v.(type) {
	case *RegisterShip:
		return *p
	case *UnregisterShip:
		return *p
	case *UserLogin:
		return *p
	case *SegaIDLogin:
		return *p
	case *UserRegister:
		return *p
	case *SetNickname:
		return *p
	case *GetUserInfo:
		return *p
	case *PutUserInfo:
		return *p
	case *PutAccountFlags:
		return *p
	case *GetStorage:
		return *p
	case *PutStorage:
		return *p
	case *GetSettings:
		return *p
	case *PutSettings:
		return *p
	case *PutUUID:
		return *p
	case *NewBlockChallenge:
		return *p
	case *ChallengeLogin:
		return *p
	case *GetLogins:
		return *p
	default:
		return v
	}
}

func derefResult(v Result) Result {
	switch p := v.(type) {
	case *Ok:
		return *p
	case *Error:
		return *p
	case *AlreadyTaken:
		return *p
	case *NotFound:
		return *p
	case *InvalidPassword:
		return *p
	case *NewID:
		return *p
	case *Challenge:
		return *p
	case *UserLoginResult:
		return *p
	case *LoginHistory:
		return *p
	case *Blob:
		return *p
	case *SettingsBlob:
		return *p
	default:
		return v
	}
}
