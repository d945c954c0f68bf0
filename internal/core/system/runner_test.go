package system

import (
	"testing"
	"time"
)

type recordingSystem struct {
	phase Phase
	name  string
	log   *[]string
}

func (r recordingSystem) Phase() Phase { return r.phase }
func (r recordingSystem) Update(dt time.Duration) {
	*r.log = append(*r.log, r.name)
}

func TestRunnerTicksInPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordingSystem{phase: PhaseCleanup, name: "cleanup", log: &log})
	r.Register(recordingSystem{phase: PhaseInput, name: "input", log: &log})
	r.Register(recordingSystem{phase: PhasePersist, name: "persist", log: &log})
	r.Register(recordingSystem{phase: PhaseBroadcast, name: "broadcast", log: &log})

	r.Tick(100 * time.Millisecond)

	want := []string{"input", "broadcast", "persist", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}
}
