package course

import "testing"

func steps(ids ...string) []Step {
	ss := make([]Step, len(ids))
	for i, id := range ids {
		ss[i] = Step{ID: id, Position: i}
	}
	return ss
}

func set(ids ...string) map[string]bool {
	completed := make(map[string]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}
	return completed
}

func TestCurrentStepIndex(t *testing.T) {
	abc := steps("a", "b", "c")

	tests := []struct {
		name      string
		steps     []Step
		completed map[string]bool
		want      int
	}{
		{name: "no steps", steps: nil, completed: set(), want: 0},
		{name: "no steps with stray completions", steps: nil, completed: set("x"), want: 0},
		{name: "nothing completed", steps: abc, completed: set(), want: 0},
		{name: "first completed", steps: abc, completed: set("a"), want: 1},
		{name: "ahead completion does not advance", steps: abc, completed: set("a", "c"), want: 1},
		{name: "only last completed", steps: abc, completed: set("c"), want: 0},
		{name: "unknown completions ignored", steps: abc, completed: set("a", "zz"), want: 1},
		{name: "all completed", steps: abc, completed: set("c", "b", "a"), want: 3},
		{name: "nil set", steps: abc, completed: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CurrentStepIndex(tt.steps, tt.completed); got != tt.want {
				t.Errorf("CurrentStepIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Every subset of completions points at the smallest index missing from it.
func TestCurrentStepIndex_allSubsets(t *testing.T) {
	ss := steps("s0", "s1", "s2", "s3", "s4")
	n := len(ss)

	for mask := 0; mask < 1<<n; mask++ {
		completed := make(map[string]bool)
		want := n
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				completed[ss[i].ID] = true
			} else if want == n {
				want = i
			}
		}
		if got := CurrentStepIndex(ss, completed); got != want {
			t.Errorf("CurrentStepIndex(mask=%05b) = %d, want %d", mask, got, want)
		}
	}
}

func TestIsFinished(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		idx   int
		want  bool
	}{
		{name: "empty module", steps: nil, idx: 0, want: false},
		{name: "in progress", steps: steps("a", "b"), idx: 1, want: false},
		{name: "finished", steps: steps("a", "b"), idx: 2, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFinished(tt.steps, tt.idx); got != tt.want {
				t.Errorf("IsFinished() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewState(t *testing.T) {
	mod := Module{ID: "m", Name: "M", Steps: steps("a", "b")}

	state := NewState(mod, nil)
	if state.Progress == nil {
		t.Error("NewState() progress must not be nil")
	}
	if state.CurrentStep != 0 || state.Finished {
		t.Errorf("NewState() = (%d, %v), want (0, false)", state.CurrentStep, state.Finished)
	}

	state = NewState(mod, []ProgressRecord{{StepID: "b"}, {StepID: "a"}})
	if state.CurrentStep != 2 || !state.Finished {
		t.Errorf("NewState() = (%d, %v), want (2, true)", state.CurrentStep, state.Finished)
	}
}
