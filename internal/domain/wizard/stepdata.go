package wizard

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// PlanSelection is recorded by the welcome step.
type PlanSelection struct {
	PlanID      string  `json:"planId" cbor:"planId"`
	PlanName    string  `json:"planName" cbor:"planName"`
	Tier        string  `json:"tier,omitempty" cbor:"tier,omitempty"`
	MonthlyRent float64 `json:"monthlyRent,omitempty" cbor:"monthlyRent,omitempty"`
	Price       float64 `json:"price,omitempty" cbor:"price,omitempty"`
	Currency    string  `json:"currency,omitempty" cbor:"currency,omitempty"`
}

// MainData is the contact data and quotation captured by the main-data step.
type MainData struct {
	Name             string `json:"name" cbor:"name"`
	Email            string `json:"email" cbor:"email"`
	Phone            string `json:"phone" cbor:"phone"`
	PostalCode       string `json:"postalCode,omitempty" cbor:"postalCode,omitempty"`
	UserType         string `json:"userType,omitempty" cbor:"userType,omitempty"`
	UserID           string `json:"userId,omitempty" cbor:"userId,omitempty"`
	QuotationID      string `json:"quotationId,omitempty" cbor:"quotationId,omitempty"`
	QuotationNumber  string `json:"quotationNumber,omitempty" cbor:"quotationNumber,omitempty"`
	QuotationEmailed bool   `json:"quotationEmailed,omitempty" cbor:"quotationEmailed,omitempty"`
}

// PaymentData is the outcome of the payment step.
type PaymentData struct {
	PaymentID    string     `json:"paymentId" cbor:"paymentId"`
	Status       string     `json:"status" cbor:"status"`
	Method       string     `json:"method,omitempty" cbor:"method,omitempty"`
	Reference    string     `json:"reference,omitempty" cbor:"reference,omitempty"`
	Amount       float64    `json:"amount,omitempty" cbor:"amount,omitempty"`
	PolicyID     string     `json:"policyId,omitempty" cbor:"policyId,omitempty"`
	PolicyNumber string     `json:"policyNumber,omitempty" cbor:"policyNumber,omitempty"`
	PaidAt       *time.Time `json:"paidAt,omitempty" cbor:"paidAt,omitempty"`
}

// Succeeded reports whether the payment went through.
func (p *PaymentData) Succeeded() bool {
	if p == nil {
		return false
	}
	switch p.Status {
	case "completed", "paid", "succeeded", "COMPLETED", "PAID", "SUCCEEDED":
		return true
	}
	return false
}

// ValidationData tracks the identity verification of the step.
type ValidationData struct {
	ValidationID    string `json:"validationId" cbor:"validationId"`
	Status          string `json:"status" cbor:"status"`
	VerificationURL string `json:"verificationUrl,omitempty" cbor:"verificationUrl,omitempty"`
	CaptureURL      string `json:"captureUrl,omitempty" cbor:"captureUrl,omitempty"`
	Verified        bool   `json:"verified,omitempty" cbor:"verified,omitempty"`
}

// DocumentRef points at a normalised document photo.
type DocumentRef struct {
	ID          string `json:"id" cbor:"id"`
	Kind        string `json:"kind" cbor:"kind"`
	Path        string `json:"path" cbor:"path"`
	ContentType string `json:"contentType" cbor:"contentType"`
	Width       int    `json:"width" cbor:"width"`
	Height      int    `json:"height" cbor:"height"`
	Size        int64  `json:"size" cbor:"size"`
}

// PartyData is one of tenant, owner or guarantor.
type PartyData struct {
	FirstName string        `json:"firstName" cbor:"firstName"`
	LastName  string        `json:"lastName" cbor:"lastName"`
	Email     string        `json:"email,omitempty" cbor:"email,omitempty"`
	Phone     string        `json:"phone,omitempty" cbor:"phone,omitempty"`
	TaxID     string        `json:"rfc,omitempty" cbor:"rfc,omitempty"`
	Address   string        `json:"address,omitempty" cbor:"address,omitempty"`
	Documents []DocumentRef `json:"documents,omitempty" cbor:"documents,omitempty"`
}

// DataEntryData holds the parties of the lease and their credit checks.
type DataEntryData struct {
	Tenant          *PartyData `json:"tenant,omitempty" cbor:"tenant,omitempty"`
	Owner           *PartyData `json:"owner,omitempty" cbor:"owner,omitempty"`
	Guarantor       *PartyData `json:"guarantor,omitempty" cbor:"guarantor,omitempty"`
	PropertyAddress string     `json:"propertyAddress,omitempty" cbor:"propertyAddress,omitempty"`
	InvestigationID string     `json:"investigationId,omitempty" cbor:"investigationId,omitempty"`
}

// ContractData is the generated contract.
type ContractData struct {
	ContractID  string     `json:"contractId" cbor:"contractId"`
	DocumentURL string     `json:"documentUrl,omitempty" cbor:"documentUrl,omitempty"`
	Accepted    bool       `json:"accepted" cbor:"accepted"`
	SignedAt    *time.Time `json:"signedAt,omitempty" cbor:"signedAt,omitempty"`
}

// FinishData closes the wizard.
type FinishData struct {
	CompletedAt  *time.Time `json:"completedAt,omitempty" cbor:"completedAt,omitempty"`
	PolicyNumber string     `json:"policyNumber,omitempty" cbor:"policyNumber,omitempty"`
}

// StepData holds at most one typed record per step. On the wire it is an
// object keyed by step index.
type StepData struct {
	Welcome    *PlanSelection  `cbor:"0,keyasint,omitempty"`
	MainData   *MainData       `cbor:"1,keyasint,omitempty"`
	Payment    *PaymentData    `cbor:"2,keyasint,omitempty"`
	Validation *ValidationData `cbor:"3,keyasint,omitempty"`
	DataEntry  *DataEntryData  `cbor:"4,keyasint,omitempty"`
	Contract   *ContractData   `cbor:"5,keyasint,omitempty"`
	Finish     *FinishData     `cbor:"6,keyasint,omitempty"`
}

// IsEmpty reports whether no step has recorded data.
func (d StepData) IsEmpty() bool {
	for _, s := range Steps() {
		if d.Has(s) {
			return false
		}
	}
	return true
}

// Has reports whether step has a record.
func (d StepData) Has(step Step) bool {
	switch step {
	case StepWelcome:
		return d.Welcome != nil
	case StepMainData:
		return d.MainData != nil
	case StepPayment:
		return d.Payment != nil
	case StepValidation:
		return d.Validation != nil
	case StepDataEntry:
		return d.DataEntry != nil
	case StepContract:
		return d.Contract != nil
	case StepFinish:
		return d.Finish != nil
	}
	return false
}

// Only returns a StepData holding just the record of step.
func (d StepData) Only(step Step) StepData {
	var out StepData
	switch step {
	case StepWelcome:
		out.Welcome = d.Welcome
	case StepMainData:
		out.MainData = d.MainData
	case StepPayment:
		out.Payment = d.Payment
	case StepValidation:
		out.Validation = d.Validation
	case StepDataEntry:
		out.DataEntry = d.DataEntry
	case StepContract:
		out.Contract = d.Contract
	case StepFinish:
		out.Finish = d.Finish
	}
	return out
}

// Merge overlays the records present in other. Data-entry parties merge
// individually so tenant, owner and guarantor can be captured separately.
func (d *StepData) Merge(other StepData) {
	if other.Welcome != nil {
		d.Welcome = copyPtr(other.Welcome)
	}
	if other.MainData != nil {
		d.MainData = copyPtr(other.MainData)
	}
	if other.Payment != nil {
		d.Payment = copyPtr(other.Payment)
	}
	if other.Validation != nil {
		d.Validation = copyPtr(other.Validation)
	}
	if other.DataEntry != nil {
		if d.DataEntry == nil {
			d.DataEntry = &DataEntryData{}
		}
		d.DataEntry.merge(other.DataEntry)
	}
	if other.Contract != nil {
		d.Contract = copyPtr(other.Contract)
	}
	if other.Finish != nil {
		d.Finish = copyPtr(other.Finish)
	}
}

func (e *DataEntryData) merge(other *DataEntryData) {
	if other.Tenant != nil {
		e.Tenant = other.Tenant.clone()
	}
	if other.Owner != nil {
		e.Owner = other.Owner.clone()
	}
	if other.Guarantor != nil {
		e.Guarantor = other.Guarantor.clone()
	}
	if other.PropertyAddress != "" {
		e.PropertyAddress = other.PropertyAddress
	}
	if other.InvestigationID != "" {
		e.InvestigationID = other.InvestigationID
	}
}

func (p *PartyData) clone() *PartyData {
	c := *p
	c.Documents = append([]DocumentRef(nil), p.Documents...)
	return &c
}

// Clone returns a deep copy.
func (d StepData) Clone() StepData {
	var out StepData
	out.Merge(d)
	return out
}

func copyPtr[T any](v *T) *T {
	c := *v
	return &c
}

// MarshalJSON writes the records keyed by step index.
func (d StepData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, StepCount)
	put := func(step Step, present bool, v any) {
		if present {
			out[strconv.Itoa(int(step))] = v
		}
	}
	put(StepWelcome, d.Welcome != nil, d.Welcome)
	put(StepMainData, d.MainData != nil, d.MainData)
	put(StepPayment, d.Payment != nil, d.Payment)
	put(StepValidation, d.Validation != nil, d.Validation)
	put(StepDataEntry, d.DataEntry != nil, d.DataEntry)
	put(StepContract, d.Contract != nil, d.Contract)
	put(StepFinish, d.Finish != nil, d.Finish)
	return json.Marshal(out)
}

// UnmarshalJSON decodes each step index into its typed record. Unknown
// indices and null records are ignored.
func (d *StepData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = StepData{}
	for key, value := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil || string(value) == "null" {
			continue
		}
		var target any
		switch Step(idx) {
		case StepWelcome:
			d.Welcome = &PlanSelection{}
			target = d.Welcome
		case StepMainData:
			d.MainData = &MainData{}
			target = d.MainData
		case StepPayment:
			d.Payment = &PaymentData{}
			target = d.Payment
		case StepValidation:
			d.Validation = &ValidationData{}
			target = d.Validation
		case StepDataEntry:
			d.DataEntry = &DataEntryData{}
			target = d.DataEntry
		case StepContract:
			d.Contract = &ContractData{}
			target = d.Contract
		case StepFinish:
			d.Finish = &FinishData{}
			target = d.Finish
		default:
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			return err
		}
	}
	return nil
}
