// Package events provides the wizard's cross-step event types
package events

import "time"

// Kind names a wizard event.
type Kind string

const (
	KindStateChanged      Kind = "state.changed"
	KindStateSynced       Kind = "state.synced"
	KindSyncFailed        Kind = "state.sync_failed"
	KindStepCompleted     Kind = "step.completed"
	KindPaymentCompleted  Kind = "payment.completed"
	KindQuotationEmailed  Kind = "quotation.emailed"
	KindWizardRestarted   Kind = "wizard.restarted"
	KindSessionRecovered  Kind = "session.recovered"
	KindStateCleared      Kind = "state.cleared"
	KindResumeLinkEmailed Kind = "resume_link.emailed"
)

// Event is published on the bus whenever a wizard session changes.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	StorageKey string         `json:"-"`
	SessionID  string         `json:"sessionId"`
	Step       int            `json:"step"`
	At         time.Time      `json:"at"`
	Data       map[string]any `json:"data,omitempty"`
}
