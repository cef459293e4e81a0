package models

// ViolationKind classifies a verifier finding.
type ViolationKind string

const (
	ViolationUncitedClaim     ViolationKind = "uncited_claim"
	ViolationFabricatedNumber ViolationKind = "fabricated_number"
	ViolationStaleClaim       ViolationKind = "stale_claim"
)

// Violation is a single verifier finding against an agent narrative.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	AgentID string        `json:"agent_id"`
	Claim   string        `json:"claim"`
	Detail  string        `json:"detail,omitempty"`
}

// Verification is the verifier stage output: per-category counts plus the
// full violation list. The verifier never fails the request.
type Verification struct {
	UncitedClaims     int         `json:"uncited_claims"`
	FabricatedNumbers int         `json:"fabricated_numbers"`
	StaleClaims       int         `json:"stale_claims"`
	Violations        []Violation `json:"violations,omitempty"`
}
