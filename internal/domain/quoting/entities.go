// Package quoting defines the backend-owned aggregates the wizard works
// with: plans, quotations, users, payments, credit-bureau investigations
// and identity validations, plus the client-side price estimate.
package quoting

import "time"

// Plan is a sellable legal-protection plan.
type Plan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tier        string    `json:"tier,omitempty"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency,omitempty"`
	Features    []string  `json:"features"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Quotation is a priced offer for a plan and a monthly rent.
type Quotation struct {
	ID              string     `json:"id"`
	QuotationNumber string     `json:"quotationNumber"`
	UserID          string     `json:"userId,omitempty"`
	PlanID          string     `json:"planId"`
	MonthlyRent     float64    `json:"monthlyRent"`
	Total           float64    `json:"total"`
	Currency        string     `json:"currency,omitempty"`
	Status          string     `json:"status,omitempty"`
	SessionID       string     `json:"sessionId,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
}

// CreateQuotationRequest creates a quotation.
type CreateQuotationRequest struct {
	UserID      string  `json:"userId,omitempty"`
	PlanID      string  `json:"planId"`
	MonthlyRent float64 `json:"monthlyRent"`
	PostalCode  string  `json:"postalCode,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
	UserType    string  `json:"userType,omitempty"`
}

// UpdateQuotationRequest carries the mutable quotation fields.
type UpdateQuotationRequest struct {
	PlanID      string  `json:"planId,omitempty"`
	MonthlyRent float64 `json:"monthlyRent,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// User is the person requesting the quotation.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	UserType  string    `json:"userType,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// CreateUserRequest creates or updates a user.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	UserType string `json:"userType,omitempty"`
}

// Payment is a charge for a quotation.
type Payment struct {
	ID           string     `json:"id"`
	QuotationID  string     `json:"quotationId"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency,omitempty"`
	Method       string     `json:"method,omitempty"`
	Status       string     `json:"status"`
	Reference    string     `json:"reference,omitempty"`
	CheckoutURL  string     `json:"checkoutUrl,omitempty"`
	PolicyID     string     `json:"policyId,omitempty"`
	PolicyNumber string     `json:"policyNumber,omitempty"`
	PaidAt       *time.Time `json:"paidAt,omitempty"`
}

// CreatePaymentRequest starts a charge.
type CreatePaymentRequest struct {
	QuotationID string  `json:"quotationId"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Token       string  `json:"token,omitempty"`
	Email       string  `json:"email,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
}

// Investigation is a credit-bureau consultation for one lease party.
type Investigation struct {
	ID          string         `json:"id"`
	QuotationID string         `json:"quotationId"`
	PartyType   string         `json:"partyType"`
	Status      string         `json:"status"`
	Score       *int           `json:"score,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"createdAt,omitempty"`
}

// InvestigationRequest creates or updates a consultation.
type InvestigationRequest struct {
	QuotationID string `json:"quotationId"`
	PartyType   string `json:"partyType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	TaxID       string `json:"rfc,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Validation is an identity verification run.
type Validation struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	VerificationURL string `json:"verificationUrl,omitempty"`
	Verified        bool   `json:"verified"`
}

// StartValidationRequest starts an identity verification.
type StartValidationRequest struct {
	SessionID   string `json:"sessionId"`
	QuotationID string `json:"quotationId,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}
