// Package wizard models the quoting wizard session: its steps, the mutable
// state snapshot and the transition rules between steps.
package wizard

import "fmt"

// Step is the index of a wizard step.
type Step int

const (
	StepWelcome Step = iota
	StepMainData
	StepPayment
	StepValidation
	StepDataEntry
	StepContract
	StepFinish
)

// StepCount is the number of steps in the wizard.
const StepCount = int(StepFinish) + 1

var stepComponents = [...]string{
	StepWelcome:    "welcome",
	StepMainData:   "main-data",
	StepPayment:    "payment",
	StepValidation: "validation",
	StepDataEntry:  "data-entry",
	StepContract:   "contract",
	StepFinish:     "finish",
}

var stepTitles = [...]string{
	StepWelcome:    "Elige tu plan",
	StepMainData:   "Datos principales",
	StepPayment:    "Pago",
	StepValidation: "Validación de identidad",
	StepDataEntry:  "Captura de datos",
	StepContract:   "Contrato",
	StepFinish:     "Listo",
}

// Valid reports whether s names one of the wizard steps.
func (s Step) Valid() bool {
	return s >= StepWelcome && s <= StepFinish
}

// Component names the view that renders the step.
func (s Step) Component() string {
	if !s.Valid() {
		return ""
	}
	return stepComponents[s]
}

// Title is the human readable step heading.
func (s Step) Title() string {
	if !s.Valid() {
		return ""
	}
	return stepTitles[s]
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepComponents[s]
}

// Steps returns every step in order.
func Steps() []Step {
	out := make([]Step, 0, StepCount)
	for s := StepWelcome; s <= StepFinish; s++ {
		out = append(out, s)
	}
	return out
}

// ParseStep converts a step index into a Step.
func ParseStep(i int) (Step, error) {
	s := Step(i)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrStepOutOfRange, i)
	}
	return s, nil
}
