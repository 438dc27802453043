package engine

import "fmt"

// ValidationError reports a missing or malformed request field. The
// request is rejected before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStageError reports a stage value outside the workflow enum.
type InvalidStageError struct {
	Stage string
}

func (e InvalidStageError) Error() string {
	return fmt.Sprintf("invalid stage %q", e.Stage)
}

// InvalidActionError reports an unknown trash/restore action keyword.
type InvalidActionError struct {
	Action string
}

func (e InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q", e.Action)
}
