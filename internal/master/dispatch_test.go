package master

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/config"
	"github.com/shipcluster/server/internal/masterpersist"
	"github.com/shipcluster/server/internal/masterproto"
)

// TestRegisterGateReturnsNotFoundWithoutTouchingStore exercises the
// registration-disabled path in isolation: it must short-circuit before
// ever reaching a repo, so a Dispatcher wired with nil repos is safe to
// call here (spec §4.2: registration-closed is reported as NotFound, not
// as a dedicated result).
func TestRegisterGateReturnsNotFoundWithoutTouchingStore(t *testing.T) {
	d := NewDispatcher(
		config.MasterConfig{RegistrationEnabled: false},
		nil, nil, nil, nil,
		NewRegistry(zap.NewNop()),
		nil,
		zap.NewNop(),
	)

	result, err := d.Dispatch(context.Background(), masterproto.UserRegister{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.(masterproto.NotFound); !ok {
		t.Fatalf("expected NotFound when registration disabled, got %#v", result)
	}
}

func TestResultForRepoErrMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want masterproto.Result
	}{
		{masterpersist.ErrNotFound, masterproto.NotFound{}},
		{masterpersist.ErrAlreadyTaken, masterproto.AlreadyTaken{}},
		{masterpersist.ErrExpired, masterproto.NotFound{}},
		{errors.New("boom"), masterproto.Error{Message: "boom"}},
	}
	for _, c := range cases {
		got := resultForRepoErr(c.err)
		if got != c.want {
			t.Fatalf("resultForRepoErr(%v) = %#v, want %#v", c.err, got, c.want)
		}
	}
}
