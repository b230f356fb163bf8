package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

var validate = validator.New()

// InputError lists the fields of a step input that failed validation.
type InputError struct {
	Step   wizard.Step
	Fields map[string]string
}

func (e *InputError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Step, strings.Join(parts, ", "))
}

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

type fieldCheck struct {
	name  string
	value any
	tag   string
}

type checker struct {
	fields map[string]string
}

func (c *checker) run(prefix string, checks ...fieldCheck) {
	for _, fc := range checks {
		if err := validate.Var(fc.value, fc.tag); err != nil {
			if c.fields == nil {
				c.fields = make(map[string]string)
			}
			msg := fc.tag
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				msg = verrs[0].Tag()
				if p := verrs[0].Param(); p != "" {
					msg += "=" + p
				}
			}
			c.fields[prefix+fc.name] = msg
		}
	}
}

func (c *checker) fail(name, msg string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	c.fields[name] = msg
}

// ValidateStepInput checks the record a step must provide before the
// wizard may leave it.
func ValidateStepInput(step wizard.Step, input wizard.StepData) error {
	if !step.Valid() {
		return wizard.ErrStepOutOfRange
	}
	if step == wizard.StepFinish {
		return nil
	}
	if !input.Has(step) {
		return fmt.Errorf("%w: %s", wizard.ErrMissingStepData, step)
	}

	var c checker
	switch step {
	case wizard.StepWelcome:
		p := input.Welcome
		c.run("", fieldCheck{"planId", p.PlanID, "required"},
			fieldCheck{"monthlyRent", p.MonthlyRent, "gte=0"})
	case wizard.StepMainData:
		md := input.MainData
		c.run("",
			fieldCheck{"name", strings.TrimSpace(md.Name), "required,min=2,max=120"},
			fieldCheck{"email", md.Email, "required,email"},
			fieldCheck{"phone", digitsOnly(md.Phone), "required,min=10,max=15"},
			fieldCheck{"postalCode", md.PostalCode, "omitempty,numeric,len=5"},
			fieldCheck{"userType", md.UserType, "omitempty,oneof=tenant owner advisor"},
		)
	case wizard.StepPayment:
		pay := input.Payment
		c.run("", fieldCheck{"paymentId", pay.PaymentID, "required"})
		if !pay.Succeeded() {
			c.fail("status", "payment not completed")
		}
	case wizard.StepValidation:
		v := input.Validation
		c.run("", fieldCheck{"validationId", v.ValidationID, "required"})
	case wizard.StepDataEntry:
		de := input.DataEntry
		if de.Tenant == nil {
			c.fail("tenant", "required")
		} else {
			checkParty(&c, "tenant.", de.Tenant)
		}
		if de.Owner != nil {
			checkParty(&c, "owner.", de.Owner)
		}
		if de.Guarantor != nil {
			checkParty(&c, "guarantor.", de.Guarantor)
		}
	case wizard.StepContract:
		if !input.Contract.Accepted {
			c.fail("accepted", "required")
		}
	}

	if len(c.fields) > 0 {
		return &InputError{Step: step, Fields: c.fields}
	}
	return nil
}

func checkParty(c *checker, prefix string, p *wizard.PartyData) {
	c.run(prefix,
		fieldCheck{"firstName", strings.TrimSpace(p.FirstName), "required"},
		fieldCheck{"lastName", strings.TrimSpace(p.LastName), "required"},
		fieldCheck{"email", p.Email, "omitempty,email"},
		fieldCheck{"rfc", strings.ToUpper(p.TaxID), "omitempty,alphanum,min=12,max=13"},
	)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
