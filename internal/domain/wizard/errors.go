package wizard

import "errors"

var (
	ErrStepOutOfRange  = errors.New("step out of range")
	ErrBackNotAllowed  = errors.New("going back is not allowed at this point")
	ErrStepNotReached  = errors.New("step has not been reached yet")
	ErrAlreadyFinished = errors.New("wizard already finished")
	ErrMissingStepData = errors.New("missing data for step")
)
