package backend

import (
	"context"
	"net/url"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
)

// ListPlans returns the active plans. A missing array is returned empty.
func (c *Client) ListPlans(ctx context.Context) ([]quoting.Plan, error) {
	var plans []quoting.Plan
	if err := c.Get(ctx, "/plans", nil, &plans); err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []quoting.Plan{}
	}
	for i := range plans {
		if plans[i].Features == nil {
			plans[i].Features = []string{}
		}
	}
	return plans, nil
}

// GetPlan returns one plan.
func (c *Client) GetPlan(ctx context.Context, id string) (*quoting.Plan, error) {
	var plan quoting.Plan
	if err := c.Get(ctx, "/plans/"+url.PathEscape(id), nil, &plan); err != nil {
		return nil, err
	}
	if plan.Features == nil {
		plan.Features = []string{}
	}
	return &plan, nil
}

// CreateQuotation creates a quotation.
func (c *Client) CreateQuotation(ctx context.Context, req quoting.CreateQuotationRequest) (*quoting.Quotation, error) {
	var q quoting.Quotation
	if err := c.Post(ctx, "/quotations", req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuotation returns one quotation.
func (c *Client) GetQuotation(ctx context.Context, id string) (*quoting.Quotation, error) {
	var q quoting.Quotation
	if err := c.Get(ctx, "/quotations/"+url.PathEscape(id), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// UpdateQuotation updates a quotation.
func (c *Client) UpdateQuotation(ctx context.Context, id string, req quoting.UpdateQuotationRequest) (*quoting.Quotation, error) {
	var q quoting.Quotation
	if err := c.Put(ctx, "/quotations/"+url.PathEscape(id), req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// SendQuotationEmail asks the backend to email the quotation.
func (c *Client) SendQuotationEmail(ctx context.Context, id, email string) error {
	body := map[string]string{}
	if email != "" {
		body["email"] = email
	}
	return c.Post(ctx, "/quotations/"+url.PathEscape(id)+"/send-email", body, nil)
}

// CreateUser creates a user.
func (c *Client) CreateUser(ctx context.Context, req quoting.CreateUserRequest) (*quoting.User, error) {
	var u quoting.User
	if err := c.Post(ctx, "/users", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns one user.
func (c *Client) GetUser(ctx context.Context, id string) (*quoting.User, error) {
	var u quoting.User
	if err := c.Get(ctx, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser updates a user.
func (c *Client) UpdateUser(ctx context.Context, id string, req quoting.CreateUserRequest) (*quoting.User, error) {
	var u quoting.User
	if err := c.Put(ctx, "/users/"+url.PathEscape(id), req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByEmail looks a user up by email. No match is ErrNotFound.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*quoting.User, error) {
	var users []quoting.User
	if err := c.Get(ctx, "/users", url.Values{"email": {email}}, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &Error{Kind: KindNotFound, Status: 404, Op: "GET /users", Message: "user not found"}
	}
	return &users[0], nil
}

// CreatePayment starts a charge.
func (c *Client) CreatePayment(ctx context.Context, req quoting.CreatePaymentRequest) (*quoting.Payment, error) {
	var p quoting.Payment
	if err := c.Post(ctx, "/payments", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment returns one payment.
func (c *Client) GetPayment(ctx context.Context, id string) (*quoting.Payment, error) {
	var p quoting.Payment
	if err := c.Get(ctx, "/payments/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ResendPaymentEmail re-sends the payment receipt.
func (c *Client) ResendPaymentEmail(ctx context.Context, id string) error {
	return c.Post(ctx, "/payments/"+url.PathEscape(id)+"/resend-email", struct{}{}, nil)
}

// CreateInvestigation opens a credit-bureau consultation.
func (c *Client) CreateInvestigation(ctx context.Context, req quoting.InvestigationRequest) (*quoting.Investigation, error) {
	var inv quoting.Investigation
	if err := c.Post(ctx, "/investigations", req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvestigation returns one consultation.
func (c *Client) GetInvestigation(ctx context.Context, id string) (*quoting.Investigation, error) {
	var inv quoting.Investigation
	if err := c.Get(ctx, "/investigations/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateInvestigation updates a consultation.
func (c *Client) UpdateInvestigation(ctx context.Context, id string, req quoting.InvestigationRequest) (*quoting.Investigation, error) {
	var inv quoting.Investigation
	if err := c.Put(ctx, "/investigations/"+url.PathEscape(id), req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// DeleteInvestigation removes a consultation.
func (c *Client) DeleteInvestigation(ctx context.Context, id string) error {
	return c.Delete(ctx, "/investigations/"+url.PathEscape(id), nil)
}

// ListInvestigations lists the consultations of a quotation.
func (c *Client) ListInvestigations(ctx context.Context, quotationID string) ([]quoting.Investigation, error) {
	var out []quoting.Investigation
	if err := c.Get(ctx, "/investigations", url.Values{"quotationId": {quotationID}}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []quoting.Investigation{}
	}
	return out, nil
}

// StartValidation starts an identity validation.
func (c *Client) StartValidation(ctx context.Context, req quoting.StartValidationRequest) (*quoting.Validation, error) {
	var v quoting.Validation
	if err := c.Post(ctx, "/validation/start", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ValidationStatus polls an identity validation.
func (c *Client) ValidationStatus(ctx context.Context, id string) (*quoting.Validation, error) {
	var v quoting.Validation
	if err := c.Get(ctx, "/validation/"+url.PathEscape(id)+"/status", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ResendValidation re-sends the validation invitation.
func (c *Client) ResendValidation(ctx context.Context, id string) error {
	return c.Post(ctx, "/validation/"+url.PathEscape(id)+"/resend", struct{}{}, nil)
}
