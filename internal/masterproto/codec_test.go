package masterproto

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeActionRoundTrip(t *testing.T) {
	in := Envelope{ID: 7, Action: UserLogin{Username: "alice", Password: "hunter2", IP: "127.0.0.1"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != 7 {
		t.Fatalf("id mismatch: %d", out.ID)
	}
	login, ok := out.Action.(UserLogin)
	if !ok {
		t.Fatalf("action type mismatch: %T", out.Action)
	}
	if login.Username != "alice" || login.Password != "hunter2" {
		t.Fatalf("unexpected payload: %+v", login)
	}
}

func TestEnvelopeResultRoundTrip(t *testing.T) {
	in := Envelope{ID: 9, Result: UserLoginResult{ID: 42, Nickname: "Alice"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	res, ok := out.Result.(UserLoginResult)
	if !ok {
		t.Fatalf("result type mismatch: %T", out.Result)
	}
	if res.ID != 42 || res.Nickname != "Alice" {
		t.Fatalf("unexpected payload: %+v", res)
	}
}

func TestEnvelopeNotFoundRoundTrip(t *testing.T) {
	in := Envelope{ID: 1, Result: NotFound{}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Envelope
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := out.Result.(NotFound); !ok {
		t.Fatalf("result type mismatch: %T", out.Result)
	}
}
