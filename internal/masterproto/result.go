package masterproto

import "time"

// Result is the sealed set of responses a master may return for any Action.
// Every request resolves to exactly one of these.
type Result interface {
	isResult()
}

// Ok is the bare acknowledgement used by operations with no payload beyond
// success (SetNickname success, PutUserInfo, PutSettings, ...).
type Ok struct{}

// Error carries a non-leaking failure message. The registration gate and
// credential-check paths deliberately collapse several distinct failures
// into NotFound rather than routing through Error, per spec.
type Error struct {
	Message string `json:"message"`
}

// AlreadyTaken signals a uniqueness conflict (ship id, nickname).
type AlreadyTaken struct{}

// NotFound is the catch-all "no such row / not authorized to know" result.
type NotFound struct{}

// InvalidPassword carries the account id so the caller can still log the
// attempt against a known account, distinguishing it from NotFound (unknown
// username) while giving the client the same outward "failure" treatment.
type InvalidPassword struct {
	ID uint32 `json:"id"`
}

func (Ok) isResult()              {}
func (Error) isResult()           {}
func (AlreadyTaken) isResult()    {}
func (NotFound) isResult()        {}
func (InvalidPassword) isResult() {}

// NewID is returned by UserRegister on success.
type NewID struct {
	ID uint32 `json:"id"`
}

func (NewID) isResult() {}

// Challenge is returned by NewBlockChallenge.
type Challenge struct {
	Value uint32 `json:"value"`
}

func (Challenge) isResult() {}

// UserLoginResult is returned by UserLogin, SegaIDLogin, and ChallengeLogin
// (the latter without re-running the credential check).
type UserLoginResult struct {
	ID       uint32 `json:"id"`
	Nickname string `json:"nickname"`
}

func (UserLoginResult) isResult() {}

// LoginAttempt is one row of the Logins audit table.
type LoginAttempt struct {
	IP        string    `json:"ip"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// LoginHistory is returned by GetLogins: up to 50 entries, newest first.
type LoginHistory struct {
	Attempts []LoginAttempt `json:"attempts"`
}

func (LoginHistory) isResult() {}

// Blob wraps an opaque persisted payload (UserInfo, Storage, AccountFlags).
type Blob struct {
	Data []byte `json:"data"`
}

func (Blob) isResult() {}

// SettingsBlob wraps the opaque settings string.
type SettingsBlob struct {
	Settings string `json:"settings"`
}

func (SettingsBlob) isResult() {}
