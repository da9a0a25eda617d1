package lifecycle

// ClaimStatus represents a claim's position in the underwriting and
// payment lifecycle.
type ClaimStatus string

const (
	ClaimNew              ClaimStatus = "NEW"
	ClaimNeedsReview      ClaimStatus = "NEEDS_REVIEW"
	ClaimApproved         ClaimStatus = "APPROVED"
	ClaimPaid             ClaimStatus = "PAID"
	ClaimCollecting       ClaimStatus = "COLLECTING"
	ClaimClosed           ClaimStatus = "CLOSED"
	ClaimDeclined         ClaimStatus = "DECLINED"
	ClaimPaymentException ClaimStatus = "PAYMENT_EXCEPTION"
)

// claimTransitions is total: every status has an entry, even if empty,
// so lookups never fail.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimNew:              {ClaimNeedsReview, ClaimApproved, ClaimDeclined},
	ClaimNeedsReview:      {ClaimApproved, ClaimDeclined},
	ClaimApproved:         {ClaimPaid, ClaimDeclined, ClaimPaymentException},
	ClaimPaid:             {ClaimCollecting},
	ClaimCollecting:       {ClaimClosed},
	ClaimPaymentException: {ClaimApproved, ClaimDeclined},
	ClaimClosed:           {},
	ClaimDeclined:         {},
}

var claimTerminal = map[ClaimStatus]bool{
	ClaimClosed:   true,
	ClaimDeclined: true,
}

// IsTerminal returns true if no further transitions are allowed.
func (s ClaimStatus) IsTerminal() bool {
	return claimTerminal[s]
}

// IsValid returns true if the status is a defined claim status.
func (s ClaimStatus) IsValid() bool {
	_, ok := claimTransitions[s]
	return ok
}

// String returns the string representation of the status.
func (s ClaimStatus) String() string {
	return string(s)
}

// ValidateClaimTransition returns an *InvalidTransitionError if moving a
// claim from current to target is not allowed.
func ValidateClaimTransition(current, target ClaimStatus) error {
	return validate("claim", current, target, claimTransitions, claimTerminal)
}

// CanTransitionClaim reports whether the transition is allowed without
// returning an error.
func CanTransitionClaim(current, target ClaimStatus) bool {
	return ValidateClaimTransition(current, target) == nil
}

// ValidClaimTransitions returns the legal successor statuses. The result
// is empty (never nil) for terminal or unknown statuses.
func ValidClaimTransitions(current ClaimStatus) []ClaimStatus {
	return successors(current, claimTransitions)
}
