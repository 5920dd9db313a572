package constants

// OverallStatus is the verdict of a comparison.
type OverallStatus string

// Stable values (the model is asked to emit these exact strings).
const (
	StatusApproved    OverallStatus = "APPROVED"
	StatusNeedsReview OverallStatus = "NEEDS REVIEW"
)

// UnparsableConversionMessage is attached when totals or currency codes cannot be reconciled.
const UnparsableConversionMessage = "Unable to parse amounts or currencies for conversion."

// ReconcileTolerance is the largest absolute difference (exclusive) still treated as a match.
const ReconcileTolerance = "0.01"
