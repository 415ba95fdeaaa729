package report

import (
	"fmt"
	"strings"

	"github.com/kalambet/roofcheck/internal/wizard"
)

const reportDateLayout = "January 2, 2006"

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func satelliteStatus(iv wizard.Interview) string {
	if iv.SatelliteInUse == wizard.AnswerYes {
		return "Currently in use"
	}
	return "Not in use"
}

// BuildPrompt renders the completion prompt for in.
func BuildPrompt(in Input) string {
	var b strings.Builder
	c := in.Counts
	iv := in.Interview

	b.WriteString("Generate a comprehensive roof inspection report based on the following data:\n\n")
	b.WriteString("INSPECTION DATA:\n")
	if in.Address != "" {
		fmt.Fprintf(&b, "- Property Address: %s\n", in.Address)
	}
	if in.Inspector != "" {
		fmt.Fprintf(&b, "- Inspector: %s\n", in.Inspector)
	}
	fmt.Fprintf(&b, "- Total Photos Documented: %d\n", c.Total)
	fmt.Fprintf(&b, "- Elevation Photos: %d\n", c.Elevation)
	fmt.Fprintf(&b, "- Roof Edge Photos: %d\n", c.RoofEdge)
	fmt.Fprintf(&b, "- Ridge Photos: %d\n", c.Ridge)
	fmt.Fprintf(&b, "- Overview Photos: %d\n", c.Overview)
	fmt.Fprintf(&b, "- Accessory Photos: %d\n", c.Accessory)
	fmt.Fprintf(&b, "- Hail Test Photos: %d\n", c.HailTest)
	fmt.Fprintf(&b, "- Hail Hits Circled: %d\n", in.HailHits)
	fmt.Fprintf(&b, "- Inspection Date: %s\n\n", in.Date.Format(reportDateLayout))

	if f := in.Findings(); len(in.Steps) > 0 {
		b.WriteString("PHOTO ANALYSIS FINDINGS:\n")
		fmt.Fprintf(&b, "- Photos showing damage: %d\n", f.DamagePhotos)
		fmt.Fprintf(&b, "- Photos flagged for retake: %d\n", f.RetakeFlagged)
		fmt.Fprintf(&b, "- Hail hits detected in test square: %d\n", f.HailHitsDetected)
		for _, s := range in.Steps {
			if s.Result == nil || len(s.Result.Issues) == 0 {
				continue
			}
			msgs := make([]string, len(s.Result.Issues))
			for i, is := range s.Result.Issues {
				msgs[i] = fmt.Sprintf("%s (%s)", is.Message, is.Severity)
			}
			fmt.Fprintf(&b, "- %s: %s\n", s.StepName, strings.Join(msgs, "; "))
		}
		b.WriteString("\n")
	}

	b.WriteString("DAMAGE DISCUSSION:\n")
	b.WriteString(orDefault(iv.DamageNotes, "No additional damage notes provided"))
	b.WriteString("\n\n")

	b.WriteString("SATELLITE DISH VERIFICATION:\n")
	if iv.HasSatelliteDish {
		fmt.Fprintf(&b, "Satellite dish found: %s\nNotes: %s\n\n", satelliteStatus(iv), orDefault(iv.SatelliteNotes, "No additional notes"))
	} else {
		b.WriteString("No satellite dish documented\n\n")
	}

	b.WriteString("ZELLE PAYMENT INFORMATION:\n")
	if iv.HasZelle == wizard.AnswerYes {
		fmt.Fprintf(&b, "Zelle account available: Yes\nPhone number: %s\nNotes: %s\n\n",
			orDefault(iv.ZellePhone, "Not provided"), orDefault(iv.ZelleNotes, "No additional notes"))
	} else {
		b.WriteString("Zelle account: Not available\n\n")
	}

	if strings.TrimSpace(iv.ClaimNotes) != "" {
		b.WriteString("CLAIM DOCUMENT NOTES:\n")
		b.WriteString(strings.TrimSpace(iv.ClaimNotes))
		b.WriteString("\n\n")
	}

	b.WriteString(requestedSections)
	return b.String()
}

const requestedSections = `Please generate a professional, detailed roof inspection report that includes:

1. EXECUTIVE SUMMARY
   - Overall roof condition assessment
   - Key findings and recommendations
   - Damage severity classification

2. INSPECTION METHODOLOGY
   - Documentation process overview
   - Photo documentation summary
   - Hail damage test square results

3. DETAILED FINDINGS
   - Elevation inspection results
   - Roof edge and underlayment assessment
   - Ridge condition evaluation
   - Overview photo analysis
   - Accessory documentation
   - Hail damage assessment

4. DAMAGE ASSESSMENT
   - Hail damage evaluation
   - Test square results
   - Damage severity and extent
   - Impact on roof integrity

5. RECOMMENDATIONS
   - Immediate actions required
   - Long-term maintenance suggestions
   - Repair priorities
   - Insurance considerations

6. CLIENT COMMUNICATION
   - Damage discussion summary
   - Satellite dish status
   - Payment options discussed

7. CONCLUSION
   - Overall assessment
   - Next steps
   - Contact information

Format the report professionally with clear sections, bullet points, and actionable recommendations.`
