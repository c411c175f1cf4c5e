package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"kidsclub/models"
	"kidsclub/services/booking/entity"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway implements the booking payment port on Stripe payment
// intents, refunds and checkout sessions.
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway builds a gateway for key. backends may be nil; tests
// point it at a local server.
func NewStripeGateway(key string, backends *stripe.Backends, logger *zap.Logger) (*StripeGateway, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("payment gateway initialization error: stripe key is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &client.API{}
	api.Init(key, backends)
	return &StripeGateway{api: api, logger: logger}, nil
}

var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// toMinor converts a 2-decimal amount to the currency's smallest unit.
func toMinor(amount float64, currency string) int64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

func fromMinor(amount int64, currency string) float64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return float64(amount)
	}
	return entity.RoundMoney(float64(amount) / 100)
}

// ProcessPayment creates and confirms a payment intent. Declines come back
// as an unsuccessful result; transport and API failures as an error.
func (g *StripeGateway) ProcessPayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error) {
	if req.Method != "" && req.Method != "card" {
		return &models.PaymentResult{Success: false, Status: "unsupported", Error: fmt.Sprintf("payment method %q is not supported", req.Method)}, nil
	}
	if req.PaymentMethodID == "" {
		return &models.PaymentResult{Success: false, Status: "invalid", Error: "a card payment method is required"}, nil
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinor(req.Amount, req.Currency)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Description:   stripe.String(req.Description),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			g.logger.Info("card declined", zap.String("code", string(serr.Code)), zap.String("declineCode", string(serr.DeclineCode)))
			result := &models.PaymentResult{Success: false, Status: "declined", Error: serr.Msg}
			if serr.PaymentIntent != nil {
				result.PaymentID = serr.PaymentIntent.ID
			}
			return result, nil
		}
		return nil, &entity.PaymentGatewayError{Message: "the payment provider is unavailable", Err: err}
	}

	result := &models.PaymentResult{PaymentID: pi.ID, Status: string(pi.Status)}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Success = true
	case stripe.PaymentIntentStatusRequiresAction:
		result.Error = "the card requires additional authentication"
	default:
		result.Error = fmt.Sprintf("payment is %s", pi.Status)
	}
	return result, nil
}

// RefundPayment refunds amount of the given payment intent.
func (g *StripeGateway) RefundPayment(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(toMinor(req.Amount, req.Currency))
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("reason", req.Reason)

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, &entity.PaymentGatewayError{PaymentID: req.PaymentID, Message: "refund could not be issued", Err: err}
	}
	return &models.RefundResult{
		RefundID: r.ID,
		Status:   string(r.Status),
		Amount:   fromMinor(r.Amount, string(r.Currency)),
		Success:  r.Status == stripe.RefundStatusSucceeded || r.Status == stripe.RefundStatusPending,
	}, nil
}

// GetPaymentStatus returns the payment intent status as reported by Stripe.
func (g *StripeGateway) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return "", &entity.PaymentGatewayError{PaymentID: paymentID, Message: "payment status is unavailable", Err: err}
	}
	return string(pi.Status), nil
}

// CreateCheckout opens a hosted checkout page for a single line item. The
// metadata is copied to the payment intent so the webhook can find it.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(toMinor(req.Amount, currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, &entity.PaymentGatewayError{Message: "checkout could not be started", Err: err}
	}
	return &models.CheckoutSession{SessionID: s.ID, URL: s.URL}, nil
}
