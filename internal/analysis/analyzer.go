package analysis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kalambet/roofcheck/internal/vision"
)

// ImageAnalyzer sends a prompt and an image to a vision model.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// Analyzer runs a photo through the vision API and degrades to text
// scanning or simulation so that a Result is always produced.
type Analyzer struct {
	client    ImageAnalyzer
	sim       *Simulator
	setupHint string
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer. setupHint is surfaced to callers when
// the API credential is missing.
func NewAnalyzer(client ImageAnalyzer, sim *Simulator, setupHint string) *Analyzer {
	if sim == nil {
		sim = NewSimulator(nil)
	}
	return &Analyzer{client: client, sim: sim, setupHint: setupHint, logger: slog.Default()}
}

// SetupHint returns the hint attached to credential-missing outcomes.
func (a *Analyzer) SetupHint() string { return a.setupHint }

// Analyze assesses the image at imageURL for kind. name is the human step or
// accessory name used in the prompt. A Result is always returned unless ctx
// was cancelled, in which case the context error is returned.
func (a *Analyzer) Analyze(ctx context.Context, kind Kind, name, imageURL string) (*Result, error) {
	prompt, err := Prompt(kind, name)
	if err != nil {
		a.logger.Error("building prompt", "kind", kind, "error", err)
		r := a.sim.Simulate(kind)
		r.APIError = err.Error()
		return r, nil
	}

	reply, err := a.client.AnalyzeImage(ctx, prompt, imageURL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, vision.ErrNoCredential) {
		r := a.sim.Simulate(kind)
		r.CredentialMissing = true
		return r, nil
	}
	if err != nil {
		a.logger.Warn("vision analysis failed, simulating", "kind", kind, "error", err)
		r := a.sim.Simulate(kind)
		r.APIError = err.Error()
		return r, nil
	}

	r, err := ParseResult(reply)
	if err != nil {
		a.logger.Debug("reply is not JSON, scanning text", "kind", kind)
		return ScanText(kind, reply), nil
	}
	return r, nil
}
