package analysis

import "strings"

// ScanText derives a low-confidence Result from a free-text reply by keyword
// matching. It is used when the reply is not JSON.
func ScanText(kind Kind, text string) *Result {
	r := &Result{
		OverallQuality:  QualityNeedsImprovement,
		Confidence:      70,
		Issues:          []Issue{},
		Recommendations: []string{},
		Source:          SourceTextScan,
	}
	applyScanDefaults(kind, r)

	lower := strings.ToLower(text)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("good", "excellent", "clear"):
		r.OverallQuality = QualityGood
		r.Confidence = 85
	case has("poor", "bad", "unclear"):
		r.OverallQuality = QualityPoor
		r.Confidence = 60
	}

	switch kind {
	case KindMeasurement:
		if has("measurement") && has("visible", "readable") {
			r.MeasurementReadable = ptr(true)
		}
	case KindInspection:
		if has("drip edge") && has("visible", "present") {
			r.DripEdgeDetected = ptr(true)
		}
		if has("underlayment") && has("visible", "clear") {
			r.UnderlaymentVisible = ptr(true)
		}
	case KindCloseup:
		if has("damage", "crack", "lift") {
			r.DamageDetected = ptr(true)
			r.RidgeCondition = "damaged"
		} else if has("good condition", "excellent") {
			r.RidgeCondition = "good"
		}
	case KindUnderRidge:
		if has("under") && has("visible", "clear") {
			r.UnderRidgeVisible = ptr(true)
		}
		if has("damage", "rot", "water") {
			r.DamageDetected = ptr(true)
		}
	case KindOverview:
		if has("damage", "crack", "missing") {
			r.DamageDetected = ptr(true)
			r.RoofCondition = "damaged"
		} else if has("excellent condition", "good condition") {
			r.RoofCondition = "excellent"
		}
	case KindAccessory:
		if has("damage", "crack", "corrosion") {
			r.DamageDetected = ptr(true)
			r.AccessoryCondition = "damaged"
		} else if has("excellent condition", "good condition") {
			r.AccessoryCondition = "excellent"
		}
	case KindTestSquare:
		if has("hail") && has("damage", "hit") {
			r.HailDamageDetected = ptr(true)
		}
	case KindHailCloseup:
		if has("hail") && has("damage", "hit") {
			r.HailHitVisible = ptr(true)
			r.HailHitGenuine = ptr(true)
		}
	}

	if has("blur", "unclear") {
		r.Issues = append(r.Issues, Issue{Type: "clarity", Message: "Photo appears blurry or unclear", Severity: "high"})
		r.ShouldRetake = true
	}

	if kind == KindElevation {
		if has("too close", "distance") {
			r.Issues = append(r.Issues, Issue{Type: "distance", Message: "Photo may be taken from too close", Severity: "medium"})
		}
		if has("lighting", "dark", "bright") {
			r.Issues = append(r.Issues, Issue{Type: "lighting", Message: "Lighting issues detected", Severity: "medium"})
		}
	}

	if has("retake", "take again") {
		r.ShouldRetake = true
	}

	return r
}

func applyScanDefaults(kind Kind, r *Result) {
	switch kind {
	case KindMeasurement:
		r.MeasurementReadable = ptr(false)
	case KindInspection:
		r.DripEdgeDetected = ptr(false)
		r.DripEdgeCondition = "unclear"
		r.UnderlaymentVisible = ptr(false)
	case KindCloseup:
		r.RidgeCondition = "fair"
		r.DamageDetected = ptr(false)
		r.DamageTypes = []string{}
	case KindUnderRidge:
		r.UnderRidgeVisible = ptr(false)
		r.DamageDetected = ptr(false)
		r.DamageTypes = []string{}
		r.InstallationQuality = "unclear"
	case KindOverview:
		r.RoofCondition = "fair"
		r.DamageDetected = ptr(false)
		r.DamageTypes = []string{}
		r.CoverageQuality = "fair"
	case KindAccessory:
		r.AccessoryCondition = "fair"
		r.DamageDetected = ptr(false)
		r.DamageTypes = []string{}
		r.InstallationQuality = "fair"
	case KindTestSquare:
		r.TestSquareQuality = "fair"
		r.HailDamageDetected = ptr(false)
		r.HailHitCount = ptr(0)
		r.DamageSeverity = "none"
	case KindHailCloseup:
		r.HailHitVisible = ptr(false)
		r.HailHitGenuine = ptr(false)
		r.DamageSeverity = "none"
		r.DamageCharacteristics = &DamageCharacteristics{Size: "small"}
	}
}
