package analysis

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Simulator produces randomized stand-in results when the vision API is
// unavailable. It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator returns a Simulator drawing from rnd. A nil rnd seeds from
// the current time.
func NewSimulator(rnd *rand.Rand) *Simulator {
	if rnd == nil {
		now := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(now, now>>17|1))
	}
	return &Simulator{rnd: rnd}
}

// Simulate returns a simulated Result for kind. It never returns nil.
func (s *Simulator) Simulate(kind Kind) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r *Result
	switch kind {
	case KindElevation:
		r = s.elevation()
	case KindMeasurement:
		r = s.measurement()
	case KindInspection:
		r = s.inspection()
	case KindCloseup:
		r = s.closeup()
	case KindUnderRidge:
		r = s.underRidge()
	case KindOverview:
		r = s.overview()
	case KindAccessory:
		r = s.accessory()
	case KindTestSquare:
		r = s.testSquare()
	case KindHailCloseup:
		r = s.hailCloseup()
	default:
		r = s.elevation()
	}

	r.Simulated = true
	r.Source = SourceSimulated
	r.normalize()
	return r
}

func (s *Simulator) above(p float64) bool { return s.rnd.Float64() > p }

func (s *Simulator) pick(p float64, yes, no string) string {
	if s.above(p) {
		return yes
	}
	return no
}

func (s *Simulator) confidence() int { return 70 + s.rnd.IntN(30) }

// common fills the fields every non-elevation kind draws the same way.
func (s *Simulator) common(r *Result, recommendation string) {
	if s.above(0.6) {
		r.Recommendations = append(r.Recommendations, recommendation)
	}
	r.OverallQuality = s.pick(0.3, QualityGood, QualityNeedsImprovement)
	r.Confidence = s.confidence()
	r.ShouldRetake = s.above(0.8)
}

func (s *Simulator) elevation() *Result {
	r := &Result{}
	if s.above(0.7) {
		r.Issues = append(r.Issues, Issue{Type: "clarity", Message: "Photo appears slightly blurry", Severity: "medium"})
	}
	if s.above(0.8) {
		r.Issues = append(r.Issues, Issue{Type: "distance", Message: "Photo may be too close to capture full elevation", Severity: "high"})
	}
	if s.above(0.6) {
		r.Recommendations = append(r.Recommendations, "Consider taking photo from a greater distance")
	}
	if s.above(0.5) {
		r.Recommendations = append(r.Recommendations, "Ensure good lighting for better clarity")
	}
	r.OverallQuality = QualityGood
	if len(r.Issues) > 0 {
		r.OverallQuality = QualityNeedsImprovement
	}
	r.Confidence = s.confidence()
	return r
}

func (s *Simulator) measurement() *Result {
	r := &Result{}
	if s.above(0.7) {
		r.Issues = append(r.Issues, Issue{Type: "measurement", Message: "Measurement numbers may not be clearly readable", Severity: "medium"})
	}
	s.common(r, "Ensure tape measure is fully extended and numbers are clear")
	r.MeasurementReadable = ptr(s.above(0.3))
	return r
}

func (s *Simulator) inspection() *Result {
	r := &Result{}
	detected := s.above(0.4)
	r.DripEdgeDetected = ptr(detected)
	if detected {
		r.DripEdgeCondition = s.pick(0.5, "good", "poor")
	} else {
		r.DripEdgeCondition = "missing"
		r.Issues = append(r.Issues, Issue{Type: "drip_edge", Message: "No drip edge detected in the photo", Severity: "high"})
	}
	s.common(r, "Ensure shingles are lifted enough to show underlayment clearly")
	r.UnderlaymentVisible = ptr(s.above(0.3))
	return r
}

func (s *Simulator) closeup() *Result {
	r := &Result{DamageTypes: []string{}}
	damaged := s.above(0.6)
	r.DamageDetected = ptr(damaged)
	if damaged {
		r.RidgeCondition = s.pick(0.5, "fair", "poor")
		r.DamageTypes = []string{"cracks", "weather"}
		r.Issues = append(r.Issues, Issue{Type: "damage", Message: "Visible damage detected on ridge shingles", Severity: "high"})
	} else {
		r.RidgeCondition = s.pick(0.3, "good", "fair")
	}
	s.common(r, "Ensure photo captures the entire ridge line for complete assessment")
	return r
}

func (s *Simulator) underRidge() *Result {
	r := &Result{DamageTypes: []string{}}
	visible := s.above(0.3)
	damaged := s.above(0.7)
	r.UnderRidgeVisible = ptr(visible)
	r.DamageDetected = ptr(damaged)
	r.InstallationQuality = s.pick(0.5, "good", "fair")
	if !visible {
		r.Issues = append(r.Issues, Issue{Type: "under_ridge", Message: "Under-ridge area not clearly visible", Severity: "medium"})
	}
	if damaged {
		r.DamageTypes = []string{"water_damage", "cracks"}
		r.Issues = append(r.Issues, Issue{Type: "damage", Message: "Damage detected under ridge area", Severity: "high"})
	}
	s.common(r, "Ensure shingle is lifted enough to show under-ridge area clearly")
	return r
}

func (s *Simulator) overview() *Result {
	r := &Result{DamageTypes: []string{}}
	damaged := s.above(0.7)
	r.DamageDetected = ptr(damaged)
	if damaged {
		r.RoofCondition = s.pick(0.5, "fair", "poor")
		r.DamageTypes = []string{"weather_damage", "cracks"}
		r.Issues = append(r.Issues, Issue{Type: "damage", Message: "Visible damage detected on roof surface", Severity: "high"})
	} else {
		r.RoofCondition = s.pick(0.3, "good", "excellent")
	}
	s.common(r, "Ensure photo captures maximum roof surface area")
	r.CoverageQuality = s.pick(0.4, "good", "fair")
	return r
}

func (s *Simulator) accessory() *Result {
	r := &Result{DamageTypes: []string{}}
	damaged := s.above(0.7)
	r.DamageDetected = ptr(damaged)
	if damaged {
		r.AccessoryCondition = s.pick(0.5, "fair", "poor")
		r.DamageTypes = []string{"weather_damage", "cracks"}
		r.Issues = append(r.Issues, Issue{Type: "damage", Message: "Visible damage detected on accessory", Severity: "high"})
	} else {
		r.AccessoryCondition = s.pick(0.3, "good", "excellent")
	}
	s.common(r, "Ensure photo captures the entire accessory for complete assessment")
	r.InstallationQuality = s.pick(0.4, "good", "fair")
	return r
}

func (s *Simulator) testSquare() *Result {
	r := &Result{}
	hail := s.above(0.6)
	r.TestSquareQuality = s.pick(0.4, "good", "fair")
	r.HailDamageDetected = ptr(hail)
	r.HailHitCount = ptr(0)
	r.DamageSeverity = "none"
	if hail {
		r.Issues = append(r.Issues, Issue{Type: "hail_damage", Message: "Hail damage detected in test square", Severity: "high"})
	}
	s.common(r, "Ensure test square boundaries are clearly marked")
	if hail {
		r.HailHitCount = ptr(5 + s.rnd.IntN(10))
		r.DamageSeverity = "moderate"
	}
	return r
}

func (s *Simulator) hailCloseup() *Result {
	r := &Result{}
	visible := s.above(0.3)
	genuine := s.above(0.4)
	r.HailHitVisible = ptr(visible)
	r.HailHitGenuine = ptr(genuine)
	if visible && genuine {
		r.Issues = append(r.Issues, Issue{Type: "hail_hit", Message: "Genuine hail hit identified", Severity: "medium"})
	}
	s.common(r, "Ensure hail hit is clearly circled and visible")
	r.DamageSeverity = "none"
	if genuine {
		r.DamageSeverity = "moderate"
	}
	r.DamageCharacteristics = &DamageCharacteristics{
		Circular:    genuine,
		GranuleLoss: genuine && s.above(0.5),
		Bruising:    genuine && s.above(0.6),
		Size:        "medium",
	}
	return r
}
