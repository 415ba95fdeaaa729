package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/roofcheck/internal/wizard"
)

func heading(b *strings.Builder, title string) {
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n")
}

// Fallback renders the template report used when no completion is
// available. Every count is taken from in.
func Fallback(in Input, now time.Time) string {
	var b strings.Builder
	c := in.Counts
	iv := in.Interview
	f := in.Findings()

	b.WriteString("ROOF INSPECTION REPORT\n")
	fmt.Fprintf(&b, "Generated: %s\n", now.Format(reportDateLayout))
	if in.Address != "" {
		fmt.Fprintf(&b, "Property: %s\n", in.Address)
	}
	if in.Inspector != "" {
		fmt.Fprintf(&b, "Inspector: %s\n", in.Inspector)
	}
	b.WriteString("\n")

	heading(&b, "EXECUTIVE SUMMARY")
	fmt.Fprintf(&b, "This roof inspection documented %d photographs across all critical roof areas.", c.Total)
	if f.DamagePhotos > 0 {
		fmt.Fprintf(&b, " Damage was identified in %d of them.", f.DamagePhotos)
	} else {
		b.WriteString(" No damage was identified in the photo analysis.")
	}
	b.WriteString("\n\n")

	heading(&b, "INSPECTION METHODOLOGY")
	fmt.Fprintf(&b, "- %d Elevation Photos: Front, Right, Rear, Left elevations\n", c.Elevation)
	fmt.Fprintf(&b, "- %d Roof Edge Photos: Gutter measurement and underlayment inspection\n", c.RoofEdge)
	fmt.Fprintf(&b, "- %d Ridge Photos: Ridge closeup and under-ridge inspection\n", c.Ridge)
	fmt.Fprintf(&b, "- %d Overview Photos: Clockwise roof overview documentation\n", c.Overview)
	fmt.Fprintf(&b, "- %d Accessory Photos: Roof accessories documentation\n", c.Accessory)
	fmt.Fprintf(&b, "- %d Hail Test Photos: 10'x10' test square with hail damage assessment\n\n", c.HailTest)

	heading(&b, "DETAILED FINDINGS")
	b.WriteString("ELEVATION INSPECTION:\n")
	fmt.Fprintf(&b, "- %d of 4 elevations documented\n", c.Elevation)
	b.WriteString("- Weather damage evaluation performed\n\n")

	b.WriteString("ROOF EDGE INSPECTION:\n")
	b.WriteString("- Gutter measurement documented with tape measure\n")
	b.WriteString("- Underlayment inspection completed by lifting shingles\n\n")

	b.WriteString("RIDGE INSPECTION:\n")
	b.WriteString("- Ridge closeup photography completed\n")
	b.WriteString("- Under-ridge inspection performed by lifting corner\n\n")

	b.WriteString("OVERVIEW DOCUMENTATION:\n")
	fmt.Fprintf(&b, "- %d overview photos taken clockwise from front\n\n", c.Overview)

	b.WriteString("ACCESSORY DOCUMENTATION:\n")
	if len(in.Accessories) == 0 {
		b.WriteString("- No roof accessories recorded\n")
	}
	for _, a := range in.Accessories {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	if iv.HasSatelliteDish {
		fmt.Fprintf(&b, "- Satellite dish status: %s\n", satelliteStatus(iv))
		fmt.Fprintf(&b, "- Additional notes: %s\n", orDefault(iv.SatelliteNotes, "None provided"))
	}
	b.WriteString("\n")

	b.WriteString("HAIL DAMAGE ASSESSMENT:\n")
	b.WriteString("- 10'x10' test square performed\n")
	fmt.Fprintf(&b, "- %d hail hits circled and documented\n", in.HailHits)
	b.WriteString("- Closeup photography of representative damage\n\n")

	heading(&b, "DAMAGE ASSESSMENT")
	fmt.Fprintf(&b, "- Photos showing damage: %d\n", f.DamagePhotos)
	fmt.Fprintf(&b, "- Hail hits detected in test square analysis: %d\n", f.HailHitsDetected)
	fmt.Fprintf(&b, "- Photos flagged for retake: %d\n", f.RetakeFlagged)
	if f.Simulated > 0 {
		fmt.Fprintf(&b, "- Photos assessed without AI analysis: %d\n", f.Simulated)
	}
	b.WriteString("\n")

	heading(&b, "CLIENT COMMUNICATION")
	b.WriteString("DAMAGE DISCUSSION:\n")
	b.WriteString(orDefault(iv.DamageNotes, "Standard damage discussion completed with insured"))
	b.WriteString("\n\nPAYMENT OPTIONS:\n")
	zelle := "No"
	if iv.HasZelle == wizard.AnswerYes {
		zelle = "Yes"
	}
	fmt.Fprintf(&b, "- Zelle account available: %s\n", zelle)
	if iv.HasZelle == wizard.AnswerYes && iv.ZellePhone != "" {
		fmt.Fprintf(&b, "- Zelle phone number: %s\n", iv.ZellePhone)
	}
	fmt.Fprintf(&b, "- Payment discussion notes: %s\n", orDefault(iv.ZelleNotes, "Standard payment options discussed"))
	if notes := strings.TrimSpace(iv.ClaimNotes); notes != "" {
		b.WriteString("\nCLAIM DOCUMENT NOTES:\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	heading(&b, "RECOMMENDATIONS")
	b.WriteString(`1. IMMEDIATE ACTIONS:
   - Review all documented damage with insurance adjuster
   - Consider temporary protective measures if severe damage found
   - Schedule professional repair estimates

2. LONG-TERM MAINTENANCE:
   - Regular roof inspections recommended
   - Monitor for additional weather damage
   - Maintain proper drainage systems

3. INSURANCE CONSIDERATIONS:
   - All damage documented with photographs
   - Test square methodology provides quantifiable damage assessment

`)

	heading(&b, "CONCLUSION")
	b.WriteString("All critical roof areas have been examined and documented. ")
	b.WriteString("The documented evidence supports the insurance claim and provides a foundation for repair planning.\n\n")
	b.WriteString("---\n")
	fmt.Fprintf(&b, "Inspection completed: %s\n", now.Format("January 2, 2006 3:04 PM"))
	return b.String()
}
