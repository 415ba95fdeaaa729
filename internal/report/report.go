// Package report builds the final inspection report, either through a text
// completion or from a deterministic template.
package report

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kalambet/roofcheck/internal/analysis"
	"github.com/kalambet/roofcheck/internal/wizard"
)

const (
	DefaultModel     = "gpt-4"
	DefaultMaxTokens = 2000

	GeneratorAI       = "ai"
	GeneratorFallback = "fallback"
)

// Completer is the text completion surface of the vision client.
type Completer interface {
	HasCredential() bool
	Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

// Counts is the number of stored photos per section.
type Counts struct {
	Elevation int `json:"elevation"`
	RoofEdge  int `json:"roofEdge"`
	Ridge     int `json:"ridge"`
	Overview  int `json:"overview"`
	Accessory int `json:"accessory"`
	HailTest  int `json:"hailTest"`
	Total     int `json:"total"`
}

// CountPhotos tallies photos by the section key each was captured in.
func CountPhotos(sections []string) Counts {
	var c Counts
	for _, s := range sections {
		switch s {
		case wizard.SectionElevations:
			c.Elevation++
		case wizard.SectionRoofEdge:
			c.RoofEdge++
		case wizard.SectionRidge:
			c.Ridge++
		case wizard.SectionOverview:
			c.Overview++
		case wizard.SectionAccessories:
			c.Accessory++
		case wizard.SectionHail:
			c.HailTest++
		}
		c.Total++
	}
	return c
}

// StepResult is the stored analysis of one captured step.
type StepResult struct {
	Section     string
	SectionName string
	Step        string
	StepName    string
	Result      *analysis.Result
}

// Input is everything the report is generated from.
type Input struct {
	InspectionID string
	Address      string
	Inspector    string
	Date         time.Time
	Counts       Counts
	HailHits     int
	Accessories  []string
	Steps        []StepResult
	Interview    wizard.Interview
}

// Findings aggregates the stored analyses.
type Findings struct {
	DamagePhotos     int `json:"damagePhotos"`
	RetakeFlagged    int `json:"retakeFlagged"`
	Simulated        int `json:"simulated"`
	HailHitsDetected int `json:"hailHitsDetected"`
}

func (in Input) Findings() Findings {
	var f Findings
	for _, s := range in.Steps {
		if s.Result == nil {
			continue
		}
		if s.Result.HasDamage() {
			f.DamagePhotos++
		}
		if analysis.NeedsRetake(s.Result) {
			f.RetakeFlagged++
		}
		if s.Result.Simulated {
			f.Simulated++
		}
		f.HailHitsDetected += s.Result.HailHits()
	}
	return f
}

// Report is a generated report body.
type Report struct {
	Body        string    `json:"body"`
	Generator   string    `json:"generator"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generator produces reports, falling back to the template when no
// credential is configured or the completion fails.
type Generator struct {
	client    Completer
	model     string
	maxTokens int
	now       func() time.Time
}

func NewGenerator(client Completer, model string, maxTokens int) *Generator {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Generator{client: client, model: model, maxTokens: maxTokens, now: time.Now}
}

func (g *Generator) Generate(ctx context.Context, in Input) Report {
	now := g.now()
	if in.Date.IsZero() {
		in.Date = now
	}
	if g.client == nil || !g.client.HasCredential() {
		return Report{Body: Fallback(in, now), Generator: GeneratorFallback, GeneratedAt: now}
	}

	body, err := g.client.Complete(ctx, g.model, BuildPrompt(in), g.maxTokens)
	if err != nil {
		slog.Warn("report generation failed, using fallback", "inspection_id", in.InspectionID, "error", err)
		return Report{Body: Fallback(in, now), Generator: GeneratorFallback, GeneratedAt: now}
	}
	if strings.TrimSpace(body) == "" {
		slog.Warn("report generation returned empty body, using fallback", "inspection_id", in.InspectionID)
		return Report{Body: Fallback(in, now), Generator: GeneratorFallback, GeneratedAt: now}
	}
	return Report{Body: body, Generator: GeneratorAI, GeneratedAt: now}
}

var (
	blankRuns = regexp.MustCompile(`\n{2,}`)
	boldMark  = regexp.MustCompile(`\*\*(.*?)\*\*`)
	emMark    = regexp.MustCompile(`\*(.*?)\*`)
)

// FormatText strips emphasis markers and collapses blank lines for display.
func FormatText(text string) string {
	text = blankRuns.ReplaceAllString(text, "\n")
	text = boldMark.ReplaceAllString(text, "$1")
	return emMark.ReplaceAllString(text, "$1")
}

// Filename is the download name of a report generated at t.
func Filename(t time.Time, ext string) string {
	if ext == "" {
		ext = "txt"
	}
	return "roof-inspection-report-" + t.Format(time.DateOnly) + "." + ext
}
