package wizard

import (
	"strings"
	"time"
	"unicode"
)

// Answer values for yes/no interview questions. The empty string is unset.
const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

// Interview is the insured interview record.
type Interview struct {
	DamageNotes      string    `json:"damageNotes"`
	HasSatelliteDish bool      `json:"hasSatelliteDish"`
	SatelliteInUse   string    `json:"satelliteInUse"`
	SatelliteNotes   string    `json:"satelliteNotes"`
	HasZelle         string    `json:"hasZelle"`
	ZellePhone       string    `json:"zellePhone"`
	ZelleNotes       string    `json:"zelleNotes"`
	ClaimNotes       string    `json:"claimNotes"`
	CompletedAt      time.Time `json:"timestamp,omitzero"`
	TotalPhotos      int       `json:"totalPhotos"`
}

// ValidAnswer reports whether v is an accepted yes/no answer.
func ValidAnswer(v string) bool {
	return v == "" || v == AnswerYes || v == AnswerNo
}

// ChecklistItem is one interview discussion point.
type ChecklistItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// Checklist returns the discussion points that apply to the interview.
// Satellite verification only appears when a dish was recorded, and phone
// collection only when the insured has Zelle.
func (iv Interview) Checklist() []ChecklistItem {
	items := []ChecklistItem{{
		Key:   "damage-discussion",
		Label: "Discuss damage findings",
		Done:  strings.TrimSpace(iv.DamageNotes) != "",
	}}
	if iv.HasSatelliteDish {
		items = append(items, ChecklistItem{
			Key:   "satellite-verification",
			Label: "Verify satellite dish usage",
			Done:  iv.SatelliteInUse != "",
		})
	}
	items = append(items, ChecklistItem{
		Key:   "zelle-discussion",
		Label: "Discuss Zelle payment",
		Done:  iv.HasZelle != "",
	})
	if iv.HasZelle == AnswerYes {
		items = append(items, ChecklistItem{
			Key:   "phone-collection",
			Label: "Collect Zelle phone number",
			Done:  strings.TrimSpace(iv.ZellePhone) != "",
		})
	}
	return items
}

// Complete reports whether every checklist item is done.
func (iv Interview) Complete() bool {
	for _, it := range iv.Checklist() {
		if !it.Done {
			return false
		}
	}
	return true
}

// FormatPhone keeps the digits of s and formats US numbers as
// (XXX) XXX-XXXX. Partial numbers of 3 to 5 digits format as (XXX) XX.
func FormatPhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	d := b.String()
	switch {
	case len(d) >= 10:
		return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:10] + d[10:]
	case len(d) >= 6:
		return d
	case len(d) >= 3:
		return "(" + d[:3] + ") " + d[3:]
	default:
		return d
	}
}
