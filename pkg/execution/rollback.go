package execution

import "github.com/vaultflow/vaultflow/pkg/models"

// rollbackFrame is one entry on the LIFO rollback stack: the step and the
// token its adapter returned on success.
type rollbackFrame struct {
	step  models.Step
	token string
}

// rollbackStack is scoped to a single run (spec §4.5 "pushes it onto a
// LIFO rollback stack scoped to the run").
type rollbackStack struct {
	frames []rollbackFrame
}

func (s *rollbackStack) push(step models.Step, token string) {
	s.frames = append(s.frames, rollbackFrame{step: step, token: token})
}

// pop removes and returns the most recently pushed frame, or ok=false if
// empty.
func (s *rollbackStack) pop() (rollbackFrame, bool) {
	if len(s.frames) == 0 {
		return rollbackFrame{}, false
	}
	last := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return last, true
}

func (s *rollbackStack) len() int { return len(s.frames) }
