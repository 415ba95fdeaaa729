package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/kalambet/roofcheck/internal/analysis"
)

// WriteMarkdown renders the inspection summary, per-step analyses and the
// generated report body as Markdown.
func WriteMarkdown(w io.Writer, in Input, rep Report) error {
	md := markdown.NewMarkdown(w)
	c := in.Counts
	f := in.Findings()

	md.H1("Roof Inspection Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Address", orDefault(in.Address, "-")},
			{"Inspector", orDefault(in.Inspector, "-")},
			{"Inspection Date", in.Date.Format(reportDateLayout)},
			{"Generated", rep.GeneratedAt.Format("2006-01-02 15:04 MST")},
			{"Generator", rep.Generator},
		},
	})
	md.PlainText("")

	md.H2("Photo Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Section", "Photos"},
		Rows: [][]string{
			{"Elevations", strconv.Itoa(c.Elevation)},
			{"Roof Edge", strconv.Itoa(c.RoofEdge)},
			{"Ridge", strconv.Itoa(c.Ridge)},
			{"Overview", strconv.Itoa(c.Overview)},
			{"Accessories", strconv.Itoa(c.Accessory)},
			{"Hail Test", strconv.Itoa(c.HailTest)},
			{"**Total**", "**" + strconv.Itoa(c.Total) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case f.DamagePhotos > 0:
		md.Warningf("Damage identified in %d photo(s). %d hail hit(s) circled in the test square.", f.DamagePhotos, in.HailHits)
	case f.RetakeFlagged > 0:
		md.Note(fmt.Sprintf("%d photo(s) were flagged for retake.", f.RetakeFlagged))
	default:
		md.Tip("No damage identified in the photo analysis.")
	}
	md.PlainText("")

	if len(in.Steps) > 0 {
		writeFindings(md, in.Steps)
	}

	if len(in.Accessories) > 0 {
		md.H2("Accessories")
		md.PlainText("")
		md.BulletList(in.Accessories...)
		md.PlainText("")
	}

	writeInterview(md, in)

	md.H2("Report")
	md.PlainText("")
	md.PlainText(FormatText(rep.Body))
	md.PlainText("")

	return md.Build()
}

func writeFindings(md *markdown.Markdown, steps []StepResult) {
	md.H2("Findings")
	md.PlainText("")

	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		if s.Result == nil {
			continue
		}
		issues := make([]string, len(s.Result.Issues))
		for i, is := range s.Result.Issues {
			issues[i] = is.Message
		}
		retake := "no"
		if analysis.NeedsRetake(s.Result) {
			retake = "yes"
		}
		rows = append(rows, []string{
			s.SectionName,
			s.StepName,
			s.Result.OverallQuality,
			strconv.Itoa(s.Result.Confidence) + "%",
			orDefault(strings.Join(issues, "; "), "-"),
			retake,
			string(s.Result.Source),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Section", "Step", "Quality", "Confidence", "Issues", "Retake", "Source"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeInterview(md *markdown.Markdown, in Input) {
	iv := in.Interview
	md.H2("Insured Interview")
	md.PlainText("")

	items := []string{"Damage discussion: " + orDefault(iv.DamageNotes, "none recorded")}
	if iv.HasSatelliteDish {
		items = append(items, "Satellite dish: "+satelliteStatus(iv))
	}
	items = append(items, "Zelle: "+orDefault(iv.HasZelle, "not discussed"))
	if iv.ZellePhone != "" {
		items = append(items, "Zelle phone: "+iv.ZellePhone)
	}
	md.BulletList(items...)
	md.PlainText("")

	if notes := strings.TrimSpace(iv.ClaimNotes); notes != "" {
		md.H3("Claim Document")
		md.PlainText("")
		md.PlainText(notes)
		md.PlainText("")
	}
}
