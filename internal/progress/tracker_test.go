package progress

import (
	"testing"
	"time"
)

func TestEmitUpdatesCounts(t *testing.T) {
	tracker := NewTracker(3, nil, nil)

	tracker.Emit("t1", "Task 1", "starting", StatusInProgress, LevelTask, nil)
	tracker.Emit("t1", "Task 1", "done", StatusCompleted, LevelTask, nil)
	tracker.Emit("t2", "Task 2", "starting", StatusInProgress, LevelTask, nil)
	tracker.Emit("t2", "Task 2", "boom", StatusFailed, LevelTask, nil)

	status := tracker.Status()
	if status.Completed != 1 {
		t.Errorf("Completed = %d, want 1", status.Completed)
	}
	if status.Failed != 1 {
		t.Errorf("Failed = %d, want 1", status.Failed)
	}
	if !status.InProgress {
		t.Error("InProgress = false with one task remaining")
	}
}

func TestSkillLevelEventsDoNotCountAsTasks(t *testing.T) {
	tracker := NewTracker(1, nil, nil)

	tracker.Emit("t1", "Task 1", "starting", StatusInProgress, LevelTask, nil)
	tracker.Emit("t1", "Task 1", "skill loaded", StatusCompleted, LevelSkill, nil)

	if got := tracker.Status().Completed; got != 0 {
		t.Errorf("Completed = %d after skill-level event, want 0", got)
	}

	tracker.Emit("t1", "Task 1", "done", StatusCompleted, LevelTask, nil)
	if got := tracker.Status().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
}

func TestProgressPercentClamped(t *testing.T) {
	tracker := NewTracker(1, nil, nil)

	tracker.Emit("t1", "Task 1", "done", StatusCompleted, LevelTask, nil)
	tracker.Emit("t2", "Task 2", "done", StatusCompleted, LevelTask, nil)

	if got := tracker.Status().ProgressPercent; got > 100 {
		t.Errorf("ProgressPercent = %v, want <= 100", got)
	}
}

func TestObserverReceivesSnapshots(t *testing.T) {
	var snapshots []Snapshot
	tracker := NewTracker(2, func(s Snapshot) {
		snapshots = append(snapshots, s)
	}, nil)

	tracker.SetPhase("Phase 1")
	tracker.Emit("t1", "Task 1", "starting", StatusInProgress, LevelTask, nil)

	if len(snapshots) != 2 {
		t.Fatalf("observer called %d times, want 2", len(snapshots))
	}
	if snapshots[0].Phase != "Phase 1" {
		t.Errorf("Phase = %q, want %q", snapshots[0].Phase, "Phase 1")
	}
	latest := snapshots[len(snapshots)-1]
	if latest.CurrentAction == nil || latest.CurrentAction.TaskID != "t1" {
		t.Errorf("CurrentAction = %+v, want task t1", latest.CurrentAction)
	}
}

func TestETABeforeAnyCompletion(t *testing.T) {
	tracker := NewTracker(3, nil, nil)
	if got := tracker.Status().ETA; got != "Calculating..." {
		t.Errorf("ETA = %q, want Calculating...", got)
	}
}

func TestETAAfterAllDone(t *testing.T) {
	tracker := NewTracker(1, nil, nil)
	tracker.Emit("t1", "Task 1", "starting", StatusInProgress, LevelTask, nil)
	tracker.Emit("t1", "Task 1", "done", StatusCompleted, LevelTask, nil)

	if got := tracker.Status().ETA; got != "Almost done..." {
		t.Errorf("ETA = %q, want Almost done...", got)
	}
}

func TestETAAfterAllFailed(t *testing.T) {
	// Failed tasks record no durations, but a run with nothing left is
	// still finishing, not calculating.
	tracker := NewTracker(2, nil, nil)
	for _, id := range []string{"t1", "t2"} {
		tracker.Emit(id, "Task "+id, "starting", StatusInProgress, LevelTask, nil)
		tracker.Emit(id, "Task "+id, "failed", StatusFailed, LevelTask, nil)
	}

	if got := tracker.Status().ETA; got != "Almost done..." {
		t.Errorf("ETA = %q, want Almost done...", got)
	}
}

func TestTaskViewKeepsLastFiveActions(t *testing.T) {
	tracker := NewTracker(1, nil, nil)
	for i := 0; i < 8; i++ {
		tracker.Emit("t1", "Task 1", "step", StatusInProgress, LevelAction, nil)
	}

	status := tracker.Status()
	if len(status.Tasks) != 1 {
		t.Fatalf("Tasks = %d, want 1", len(status.Tasks))
	}
	if got := len(status.Tasks[0].Actions); got != 5 {
		t.Errorf("Actions = %d, want 5", got)
	}

	if got := len(tracker.History("t1")); got != 8 {
		t.Errorf("History = %d, want full 8", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42 seconds"},
		{90 * time.Second, "1 minute 30 seconds"},
		{150 * time.Second, "2 minutes 30 seconds"},
		{3660 * time.Second, "1 hour 1 minutes"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.d); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
