package wizard

// CanGoBack reports whether the user may move to the previous step. The
// wizard is forward-only once a quotation was emailed or a payment went
// through, and there is nothing before welcome or after finish.
func (s *State) CanGoBack() bool {
	if s.CurrentStep <= StepWelcome || s.CurrentStep >= StepFinish {
		return false
	}
	if md := s.StepData.MainData; md != nil && md.QuotationEmailed {
		return false
	}
	return !s.StepData.Payment.Succeeded()
}

// FirstIncomplete returns the lowest step not in CompletedSteps.
func (s *State) FirstIncomplete() Step {
	for _, step := range Steps() {
		if !s.IsCompleted(step) {
			return step
		}
	}
	return StepFinish
}

// CanVisit reports whether step may be selected directly: completed steps
// and the first uncompleted one.
func (s *State) CanVisit(step Step) bool {
	if !step.Valid() {
		return false
	}
	return s.IsCompleted(step) || step == s.FirstIncomplete()
}

// NextStep returns the step after the current one, or ErrAlreadyFinished.
func (s *State) NextStep() (Step, error) {
	if s.CurrentStep >= StepFinish {
		return s.CurrentStep, ErrAlreadyFinished
	}
	return s.CurrentStep + 1, nil
}

// PrevStep returns the step before the current one when going back is allowed.
func (s *State) PrevStep() (Step, error) {
	if !s.CanGoBack() {
		return s.CurrentStep, ErrBackNotAllowed
	}
	return s.CurrentStep - 1, nil
}
