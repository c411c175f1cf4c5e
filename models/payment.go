package models

// PaymentRequest is a charge sent to the payment gateway.
type PaymentRequest struct {
	Amount          float64
	Currency        string
	Method          string // "card"
	PaymentMethodID string
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

// PaymentResult is the gateway's terminal answer for a charge.
type PaymentResult struct {
	Success   bool
	PaymentID string
	Status    string
	Error     string
}

type RefundRequest struct {
	PaymentID      string
	Amount         float64
	Currency       string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

type RefundResult struct {
	Success  bool
	RefundID string
	Status   string
	Amount   float64
}

// CheckoutRequest opens a hosted checkout for a top-up.
type CheckoutRequest struct {
	Amount        float64
	Currency      string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type CheckoutSession struct {
	SessionID string
	URL       string
}
