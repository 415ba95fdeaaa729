// Package wizard holds the inspection step catalog and the cursor state
// machine that walks an inspector through it.
package wizard

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/roofcheck/internal/analysis"
)

// Section keys.
const (
	SectionElevations  = "elevations"
	SectionRoofEdge    = "roof-edge"
	SectionRidge       = "ridge"
	SectionOverview    = "overview"
	SectionAccessories = "accessories"
	SectionHail        = "hail-test-square"
	SectionInterview   = "interview"

	StepHailHits = "hail-hits"
)

// SatelliteDish is the accessory type that enables satellite verification
// in the interview.
const SatelliteDish = "satellite-dish"

//go:embed catalog.yaml
var catalogYAML []byte

// Step is one capture checkpoint. Steps without Photo are checklist-only.
type Step struct {
	Key          string        `yaml:"key" json:"key"`
	Name         string        `yaml:"name" json:"name"`
	Icon         string        `yaml:"icon" json:"icon"`
	Instructions string        `yaml:"instructions" json:"instructions"`
	Kind         analysis.Kind `yaml:"kind" json:"kind,omitempty"`
	Photo        bool          `yaml:"photo" json:"photo"`
}

// Section is an ordered group of steps. Dynamic sections derive their
// steps from the inspection's accessories.
type Section struct {
	Key           string `yaml:"key" json:"key"`
	Name          string `yaml:"name" json:"name"`
	ContinueLabel string `yaml:"continue_label" json:"continueLabel"`
	Dynamic       bool   `yaml:"dynamic" json:"dynamic,omitempty"`
	Steps         []Step `yaml:"steps" json:"steps"`
}

// AccessoryType describes a kind of roof accessory.
type AccessoryType struct {
	Key         string `yaml:"key" json:"key"`
	Icon        string `yaml:"icon" json:"icon"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Catalog is the static wizard definition.
type Catalog struct {
	Sections       []Section       `yaml:"sections" json:"sections"`
	AccessoryTypes []AccessoryType `yaml:"accessory_types" json:"accessoryTypes"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded catalog, parsed once.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalog(catalogYAML)
	})
	return defaultCatalog, defaultErr
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(c.Sections) == 0 {
		return nil, fmt.Errorf("catalog has no sections")
	}
	last := c.Sections[len(c.Sections)-1]
	if last.Dynamic || len(last.Steps) == 0 {
		return nil, fmt.Errorf("final section %q must have fixed steps", last.Key)
	}
	for _, s := range c.Sections {
		for _, st := range s.Steps {
			if st.Photo {
				if _, err := analysis.ParseKind(string(st.Kind)); err != nil {
					return nil, fmt.Errorf("step %s/%s: %w", s.Key, st.Key, err)
				}
			}
		}
	}
	return &c, nil
}

// SectionIndex returns the position of the section with key.
func (c *Catalog) SectionIndex(key string) (int, bool) {
	for i, s := range c.Sections {
		if s.Key == key {
			return i, true
		}
	}
	return -1, false
}

// AccessoryType looks up an accessory type by key.
func (c *Catalog) AccessoryType(key string) (AccessoryType, bool) {
	for _, t := range c.AccessoryTypes {
		if t.Key == key {
			return t, true
		}
	}
	return AccessoryType{}, false
}

// AccessoryStep builds the dynamic step for an accessory. The step key is
// the accessory id.
func (c *Catalog) AccessoryStep(a Accessory) Step {
	t, ok := c.AccessoryType(a.Type)
	if !ok {
		t = AccessoryType{Key: a.Type, Name: a.Type, Icon: "🔧"}
	}
	instr := fmt.Sprintf("Take a clear photo of the %s.", strings.ToLower(t.Name))
	if t.Description != "" {
		instr += " " + t.Description + "."
	}
	return Step{
		Key:          a.ID,
		Name:         t.Name,
		Icon:         t.Icon,
		Instructions: instr,
		Kind:         analysis.KindAccessory,
		Photo:        true,
	}
}
