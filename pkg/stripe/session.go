package stripe

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

const defaultProductName = "Digital Product"

// CheckoutSessionParams carries everything needed to open a one-time payment
// session. Metadata values are normalized to strings before hitting Stripe.
type CheckoutSessionParams struct {
	AmountCents int64
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]any
}

// CheckoutSession is the subset of the Stripe session the service cares about.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64
	Metadata      map[string]string
	CustomerEmail string
}

// SessionAPI is the checkout surface consumed by services.
type SessionAPI interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
type sessionGetter func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

var (
	createSession sessionCreator = session.New
	getSession    sessionGetter  = session.Get
)

// CreateCheckoutSession opens a payment-mode session for a single line item
// priced in USD cents.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if err := validateSessionParams(params); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.ProductName)
	if name == "" {
		name = defaultProductName
	}

	sp := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(params.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sp.Context = ctx
	for key, value := range NormalizeMetadata(params.Metadata) {
		sp.AddMetadata(key, value)
	}

	created, err := createSession(sp)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return fromStripeSession(created), nil
}

// RetrieveSession loads an existing checkout session by id.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	sp := &stripe.CheckoutSessionParams{}
	sp.Context = ctx
	found, err := getSession(id, sp)
	if err != nil {
		return nil, fmt.Errorf("retrieving checkout session %s: %w", id, err)
	}
	return fromStripeSession(found), nil
}

func validateSessionParams(params CheckoutSessionParams) error {
	if params.AmountCents <= 0 {
		return fmt.Errorf("checkout amount must be positive, got %d", params.AmountCents)
	}
	if err := validateRedirectURL("success", params.SuccessURL); err != nil {
		return err
	}
	if err := validateRedirectURL("cancel", params.CancelURL); err != nil {
		return err
	}
	return nil
}

func validateRedirectURL(label, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s url is required", label)
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid %s url: %w", label, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s url: scheme must be http or https", label)
	}
	return nil
}

// NormalizeMetadata coerces arbitrary metadata values to strings, dropping
// nils. Stripe rejects non-string metadata.
func NormalizeMetadata(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for key, value := range meta {
		if key == "" || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case int:
			out[key] = strconv.Itoa(v)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case fmt.Stringer:
			out[key] = v.String()
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

func fromStripeSession(s *stripe.CheckoutSession) *CheckoutSession {
	if s == nil {
		return nil
	}
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
	if s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out
}
