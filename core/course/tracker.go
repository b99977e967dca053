package course

// CurrentStepIndex returns the index of the first step, in declared order, whose identity is not in completed.
// It returns len(steps) once every step is completed, hence 0 for a module without steps.
// Completions ahead of the first incomplete step never move the pointer.
func CurrentStepIndex(steps []Step, completed map[string]bool) int {
	for i, s := range steps {
		if !completed[s.ID] {
			return i
		}
	}
	return len(steps)
}

// IsFinished reports whether idx is the finished sentinel of a non-empty module.
func IsFinished(steps []Step, idx int) bool {
	return len(steps) > 0 && idx >= len(steps)
}
