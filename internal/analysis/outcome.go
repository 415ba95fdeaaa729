package analysis

const (
	StatusCompleted   = "completed"
	StatusIssuesFound = "issues_found"

	ActionContinue       = "continue"
	ActionRetake         = "retake"
	ActionContinueAnyway = "continue_anyway"

	FallbackNotice = "Using fallback analysis instead."
)

// Outcome is a Result plus the decision offered to the inspector.
type Outcome struct {
	Result            *Result  `json:"result"`
	Status            string   `json:"status"`
	Actions           []string `json:"actions"`
	NeedsRetake       bool     `json:"needsRetake"`
	Notice            string   `json:"notice,omitempty"`
	CredentialMissing bool     `json:"credentialMissing,omitempty"`
	SetupHint         string   `json:"setupHint,omitempty"`
}

// NeedsRetake reports whether r should prompt a retake.
func NeedsRetake(r *Result) bool {
	return r.ShouldRetake || r.OverallQuality == QualityPoor
}

// NewOutcome derives the offered actions from r. setupHint is attached
// when r was simulated for lack of a credential.
func NewOutcome(r *Result, setupHint string) Outcome {
	o := Outcome{Result: r, NeedsRetake: NeedsRetake(r)}

	if r.OverallQuality == QualityGood && !o.NeedsRetake {
		o.Status = StatusCompleted
		o.Actions = []string{ActionContinue}
	} else {
		o.Status = StatusIssuesFound
		o.Actions = []string{ActionRetake, ActionContinueAnyway}
	}

	if r.APIError != "" {
		o.Notice = FallbackNotice
	}
	if r.CredentialMissing {
		o.CredentialMissing = true
		o.SetupHint = setupHint
	}
	return o
}
