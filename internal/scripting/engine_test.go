package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/worldmap"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".lua"), []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestRunExecutesBoundScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "npc_guard", `send(sender, "hello")`)

	eng, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	var gotReceiver worldmap.ObjectID
	var gotPkt []byte
	ctx := worldmap.InteractContext{
		SenderID: 42,
		CallType: "interaction",
		Players:  func() []worldmap.ObjectID { return nil },
		Send: func(receiver worldmap.ObjectID, pkt []byte) error {
			gotReceiver = receiver
			gotPkt = pkt
			return nil
		},
	}

	if err := eng.Run("npc_guard", ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotReceiver != 42 {
		t.Fatalf("expected send to be called with sender id 42, got %d", gotReceiver)
	}
	if string(gotPkt) != "hello" {
		t.Fatalf("expected packet 'hello', got %q", gotPkt)
	}
}

func TestRunFallsBackToDefaultScriptForUnknownName(t *testing.T) {
	dir := t.TempDir()
	eng, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	ctx := worldmap.InteractContext{CallType: "interaction"}
	if err := eng.Run("nonexistent", ctx); err != nil {
		t.Fatalf("expected default script to run without error, got %v", err)
	}
}

func TestRunPropagatesScriptError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken", `error("boom")`)

	eng, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	if err := eng.Run("broken", worldmap.InteractContext{CallType: "interaction"}); err == nil {
		t.Fatalf("expected error from broken script")
	}
}

func TestGetObjectCallbackReturnsTable(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "lookup_test", `
local obj = get_object(7)
if obj == nil then
  error("expected object")
end
send(sender, obj.name)
`)

	eng, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	var gotName string
	ctx := worldmap.InteractContext{
		SenderID: 1,
		Send: func(receiver worldmap.ObjectID, pkt []byte) error {
			gotName = string(pkt)
			return nil
		},
		GetObject: func(id worldmap.ObjectID) (worldmap.StaticObject, bool) {
			if id != 7 {
				return worldmap.StaticObject{}, false
			}
			return worldmap.StaticObject{ID: 7, Name: "a chest"}, true
		},
	}

	if err := eng.Run("lookup_test", ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotName != "a chest" {
		t.Fatalf("expected name 'a chest', got %q", gotName)
	}
}
