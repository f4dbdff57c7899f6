package layout

import "math"

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Reason codes for results that could not be validated.
const (
	ReasonMissingLayout      = "missing_layout"
	ReasonEmptyLayout        = "empty_layout"
	ReasonInvalidSpacing     = "invalid_spacing"
	ReasonDuplicateTurbineID = "duplicate_turbine_id"
	ReasonInvalidPosition    = "invalid_position"
)

const boundaryIssue = "Located in unbuildable area"

// BoundaryViolation is a turbine located inside an exclusion zone.
type BoundaryViolation struct {
	TurbineID string `json:"turbine_id"`
	// Coordinates is [lat, lon].
	Coordinates [2]float64 `json:"coordinates"`
	ZoneClass   string     `json:"zone_class"`
	Issue       string     `json:"issue"`
}

// SpacingViolation is a turbine pair closer than the minimum spacing.
type SpacingViolation struct {
	Turbine1          string  `json:"turbine1"`
	Turbine2          string  `json:"turbine2"`
	ActualDistanceM   float64 `json:"actual_distance_m"`
	RequiredDistanceM float64 `json:"required_distance_m"`
	ShortfallM        float64 `json:"shortfall_m"`
}

// PairDistance is the distance between one unordered turbine pair.
type PairDistance struct {
	Turbine1  string  `json:"turbine1"`
	Turbine2  string  `json:"turbine2"`
	DistanceM float64 `json:"distance_m"`
}

// Result is the validation report. Lists are never nil so they serialize as
// empty arrays.
type Result struct {
	Status                   string              `json:"status"`
	ValidationPassed         bool                `json:"validation_passed"`
	Reason                   string              `json:"reason,omitempty"`
	Message                  string              `json:"message,omitempty"`
	TotalTurbines            int                 `json:"total_turbines"`
	TotalViolations          int                 `json:"total_violations"`
	BoundaryChecked          bool                `json:"boundary_checked"`
	BoundaryViolations       []BoundaryViolation `json:"boundary_violations"`
	SpacingViolations        []SpacingViolation  `json:"spacing_violations"`
	TurbineDistances         []PairDistance      `json:"turbine_distances"`
	MinSpacingRequiredM      float64             `json:"min_spacing_required_m"`
	SpacingValidationApplied bool                `json:"spacing_validation_applied"`
	CRS                      string              `json:"crs,omitempty"`
	Warnings                 []string            `json:"warnings,omitempty"`
}

func newResult(minSpacingM float64) *Result {
	return &Result{
		Status:              StatusSuccess,
		BoundaryViolations:  []BoundaryViolation{},
		SpacingViolations:   []SpacingViolation{},
		TurbineDistances:    []PairDistance{},
		MinSpacingRequiredM: minSpacingM,
	}
}

func failed(r *Result, reason, message string) *Result {
	r.Status = StatusError
	r.ValidationPassed = false
	r.Reason = reason
	r.Message = message
	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
