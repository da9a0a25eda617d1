package lifecycle

// PaymentStatus represents a payment intent's position in its lifecycle.
type PaymentStatus string

const (
	PaymentQueued    PaymentStatus = "QUEUED"
	PaymentSent      PaymentStatus = "SENT"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentQueued:    {PaymentSent, PaymentFailed},
	PaymentSent:      {PaymentConfirmed, PaymentFailed},
	PaymentConfirmed: {},
	PaymentFailed:    {},
}

var paymentTerminal = map[PaymentStatus]bool{
	PaymentConfirmed: true,
	PaymentFailed:    true,
}

// IsTerminal returns true if no further transitions are allowed.
func (s PaymentStatus) IsTerminal() bool {
	return paymentTerminal[s]
}

// IsValid returns true if the status is a defined payment status.
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// String returns the string representation of the status.
func (s PaymentStatus) String() string {
	return string(s)
}

// ValidatePaymentTransition returns an *InvalidTransitionError if moving
// from current to target is not allowed.
func ValidatePaymentTransition(current, target PaymentStatus) error {
	return validate("payment", current, target, paymentTransitions, paymentTerminal)
}

// CanTransitionPayment reports whether the transition is allowed.
func CanTransitionPayment(current, target PaymentStatus) bool {
	return ValidatePaymentTransition(current, target) == nil
}

// ValidPaymentTransitions returns the legal successor statuses.
func ValidPaymentTransitions(current PaymentStatus) []PaymentStatus {
	return successors(current, paymentTransitions)
}
