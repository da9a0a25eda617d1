package lifecycle

// FundingStatus tracks the capital-pool funding lifecycle of a claim.
// This is the older, pool-counter-based lifecycle; the payment
// orchestration path uses ClaimStatus instead.
type FundingStatus string

const (
	FundingSubmitted    FundingStatus = "submitted"
	FundingUnderwriting FundingStatus = "underwriting"
	FundingFunded       FundingStatus = "funded"
	FundingSettled      FundingStatus = "settled"
	FundingReimbursed   FundingStatus = "reimbursed"
	FundingException    FundingStatus = "exception"
)

// funded is deliberately non-terminal so settlement can still occur.
var fundingTransitions = map[FundingStatus][]FundingStatus{
	FundingSubmitted:    {FundingUnderwriting, FundingException},
	FundingUnderwriting: {FundingFunded, FundingException},
	FundingFunded:       {FundingReimbursed, FundingException, FundingSettled},
	FundingSettled:      {},
	FundingReimbursed:   {},
	FundingException:    {},
}

var fundingTerminal = map[FundingStatus]bool{
	FundingSettled:    true,
	FundingReimbursed: true,
	FundingException:  true,
}

// IsTerminal returns true if the funding lifecycle is complete.
func (s FundingStatus) IsTerminal() bool {
	return fundingTerminal[s]
}

// IsValid returns true if the status is a defined funding status.
func (s FundingStatus) IsValid() bool {
	_, ok := fundingTransitions[s]
	return ok
}

// String returns the string representation of the status.
func (s FundingStatus) String() string {
	return string(s)
}

// ValidateFundingTransition returns an *InvalidTransitionError if moving
// from current to target is not allowed.
func ValidateFundingTransition(current, target FundingStatus) error {
	return validate("claim", current, target, fundingTransitions, fundingTerminal)
}

// CanTransitionFunding reports whether the transition is allowed.
func CanTransitionFunding(current, target FundingStatus) bool {
	return ValidateFundingTransition(current, target) == nil
}

// ValidFundingTransitions returns the legal successor statuses.
func ValidFundingTransitions(current FundingStatus) []FundingStatus {
	return successors(current, fundingTransitions)
}
