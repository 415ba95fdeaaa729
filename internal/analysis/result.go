// Package analysis turns a captured photo into a structured assessment:
// prompt construction, reply parsing, keyword fallback, and local simulation.
package analysis

import "fmt"

// Kind selects the prompt and the kind-specific result fields.
type Kind string

const (
	KindElevation   Kind = "elevation"
	KindMeasurement Kind = "measurement"
	KindInspection  Kind = "inspection"
	KindCloseup     Kind = "closeup"
	KindUnderRidge  Kind = "under-ridge"
	KindOverview    Kind = "overview"
	KindAccessory   Kind = "accessory"
	KindTestSquare  Kind = "test-square"
	KindHailCloseup Kind = "hail-closeup"
)

// Kinds lists every kind that has a prompt.
var Kinds = []Kind{
	KindElevation, KindMeasurement, KindInspection, KindCloseup, KindUnderRidge,
	KindOverview, KindAccessory, KindTestSquare, KindHailCloseup,
}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown analysis kind %q", s)
}

const (
	QualityGood             = "good"
	QualityNeedsImprovement = "needs_improvement"
	QualityPoor             = "poor"
)

// Source records where a Result came from.
type Source string

const (
	SourceAPI       Source = "api"
	SourceTextScan  Source = "text_scan"
	SourceSimulated Source = "simulated"
)

// Issue is one problem found in a photo.
type Issue struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// DamageCharacteristics describes a single hail hit.
type DamageCharacteristics struct {
	Circular    bool   `json:"circular"`
	GranuleLoss bool   `json:"granuleLoss"`
	Bruising    bool   `json:"bruising"`
	Size        string `json:"size"`
}

// Result is the assessment of one photo. Kind-specific fields are nil or
// empty when they do not apply.
type Result struct {
	OverallQuality  string   `json:"overallQuality"`
	Confidence      int      `json:"confidence"`
	Issues          []Issue  `json:"issues"`
	Recommendations []string `json:"recommendations"`
	ShouldRetake    bool     `json:"shouldRetake"`

	MeasurementReadable *bool `json:"measurementReadable,omitempty"`

	DripEdgeDetected    *bool  `json:"dripEdgeDetected,omitempty"`
	DripEdgeCondition   string `json:"dripEdgeCondition,omitempty"`
	UnderlaymentVisible *bool  `json:"underlaymentVisible,omitempty"`

	RidgeCondition      string   `json:"ridgeCondition,omitempty"`
	UnderRidgeVisible   *bool    `json:"underRidgeVisible,omitempty"`
	DamageDetected      *bool    `json:"damageDetected,omitempty"`
	DamageTypes         []string `json:"damageTypes,omitempty"`
	InstallationQuality string   `json:"installationQuality,omitempty"`

	RoofCondition      string `json:"roofCondition,omitempty"`
	CoverageQuality    string `json:"coverageQuality,omitempty"`
	AccessoryCondition string `json:"accessoryCondition,omitempty"`

	TestSquareQuality     string                 `json:"testSquareQuality,omitempty"`
	HailDamageDetected    *bool                  `json:"hailDamageDetected,omitempty"`
	HailHitCount          *int                   `json:"hailHitCount,omitempty"`
	DamageSeverity        string                 `json:"damageSeverity,omitempty"`
	HailHitVisible        *bool                  `json:"hailHitVisible,omitempty"`
	HailHitGenuine        *bool                  `json:"hailHitGenuine,omitempty"`
	DamageCharacteristics *DamageCharacteristics `json:"damageCharacteristics,omitempty"`

	APIError          string `json:"apiError,omitempty"`
	CredentialMissing bool   `json:"credentialMissing,omitempty"`
	Simulated         bool   `json:"simulated"`
	Source            Source `json:"source"`
}

// HasDamage reports whether any damage flag on the result is set.
func (r *Result) HasDamage() bool {
	return isTrue(r.DamageDetected) || isTrue(r.HailDamageDetected) ||
		(isTrue(r.HailHitVisible) && isTrue(r.HailHitGenuine))
}

// HailHits returns the reported test-square hit count, or 0.
func (r *Result) HailHits() int {
	if r.HailHitCount == nil {
		return 0
	}
	return *r.HailHitCount
}

// normalize replaces nil slices so results always encode as arrays.
func (r *Result) normalize() {
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
}

func ptr[T any](v T) *T { return &v }

func isTrue(b *bool) bool { return b != nil && *b }
