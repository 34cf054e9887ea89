package merge

import "context"

// compensation is a pure closure over a completed step's outputs, capable
// of undoing that step. Compensations never recompute from live state —
// only from values captured when the step ran.
type compensation func(ctx context.Context) error

// compensationStack runs registered compensations in reverse order when a
// saga fails partway through. It continues past individual compensation
// failures, aggregating them so the caller sees the full picture rather
// than stopping at the first one.
type compensationStack struct {
	steps []compensation
}

func (s *compensationStack) push(c compensation) {
	s.steps = append(s.steps, c)
}

// unwind runs every registered compensation in reverse order, returning
// every error encountered (not just the first).
func (s *compensationStack) unwind(ctx context.Context) []error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		if err := s.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
