package packet

import (
	"testing"

	"go.uber.org/zap"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriterWithOpcode(0x1234)
	w.WriteC(7)
	w.WriteD(99999)
	w.WriteS("Alice")

	data := w.RawBytes()
	r := NewReader(data)
	if r.Opcode() != 0x1234 {
		t.Fatalf("opcode mismatch: %x", r.Opcode())
	}
	if got := r.ReadC(); got != 7 {
		t.Fatalf("ReadC: got %d", got)
	}
	if got := r.ReadD(); got != 99999 {
		t.Fatalf("ReadD: got %d", got)
	}
	if got := r.ReadS(); got != "Alice" {
		t.Fatalf("ReadS: got %q", got)
	}
}

func TestWriterBytesPadsToFourByteBoundary(t *testing.T) {
	w := NewWriter()
	w.WriteC(1)
	w.WriteC(2)
	w.WriteC(3)
	padded := w.Bytes()
	if len(padded)%4 != 0 {
		t.Fatalf("expected 4-byte aligned length, got %d", len(padded))
	}
	if w.Len() != 3 {
		t.Fatalf("Len should report unpadded length, got %d", w.Len())
	}
}

func TestRegistryGatesOnSessionState(t *testing.T) {
	log := zap.NewNop()
	reg := NewRegistry(log)

	var called bool
	reg.Register(0x01, []SessionState{StateCharacterSelect}, func(sess any, r *Reader) {
		called = true
	})

	w := NewWriterWithOpcode(0x01)
	data := w.RawBytes()

	if err := reg.Dispatch(nil, StateLoggingIn, data); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if called {
		t.Fatalf("handler should not run outside its allowed state")
	}

	if err := reg.Dispatch(nil, StateCharacterSelect, data); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !called {
		t.Fatalf("handler should run in its allowed state")
	}
}

func TestRegistryFromAllowsAnyLaterState(t *testing.T) {
	log := zap.NewNop()
	reg := NewRegistry(log)

	var calls int
	reg.RegisterFrom(0x02, StateNewUsername, func(sess any, r *Reader) {
		calls++
	})

	data := NewWriterWithOpcode(0x02).RawBytes()

	_ = reg.Dispatch(nil, StateLoggingIn, data)
	if calls != 0 {
		t.Fatalf("should not run before minState")
	}

	_ = reg.Dispatch(nil, StateNewUsername, data)
	_ = reg.Dispatch(nil, StateInGame, data)
	if calls != 2 {
		t.Fatalf("expected 2 calls at/after minState, got %d", calls)
	}
}

func TestRegistryRecoversHandlerPanic(t *testing.T) {
	log := zap.NewNop()
	reg := NewRegistry(log)
	reg.Register(0x03, []SessionState{StateInGame}, func(sess any, r *Reader) {
		panic("boom")
	})

	data := NewWriterWithOpcode(0x03).RawBytes()
	if err := reg.Dispatch(nil, StateInGame, data); err == nil {
		t.Fatalf("expected error surfaced from recovered panic")
	}
}
