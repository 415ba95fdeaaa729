package wizard

import (
	"fmt"

	"github.com/google/uuid"
)

const DefaultMinHailHits = 8

// Cursor is the position of the inspector in the catalog.
type Cursor struct {
	Section int `json:"section"`
	Step    int `json:"step"`
}

// Accessory is a roof accessory recorded during the inspection.
type Accessory struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Position int    `json:"position"`
}

// HailHit is a circled hit in the test square. CloseupSlot is 0 when the
// hit is not selected for a closeup photo.
type HailHit struct {
	Number      int    `json:"number"`
	Status      string `json:"status"`
	CloseupSlot int    `json:"closeupSlot,omitempty"`
}

const HailHitCircled = "circled"

// Session is the mutable wizard state of one inspection. Callers load it
// from storage, apply an operation and persist the result.
type Session struct {
	Catalog     *Catalog
	Cursor      Cursor
	Accessories []Accessory
	HailHits    []HailHit
	Photos      map[string]bool
	MinHits     int
}

// NewSession returns a session positioned at the first step.
func NewSession(c *Catalog, minHits int) *Session {
	if minHits <= 0 {
		minHits = DefaultMinHailHits
	}
	return &Session{Catalog: c, Photos: make(map[string]bool), MinHits: minHits}
}

// PhotoKey identifies a captured photo within an inspection.
func PhotoKey(section, step string) string {
	return section + "/" + step
}

// HasPhoto reports whether a photo is stored for the step.
func (s *Session) HasPhoto(section, step string) bool {
	return s.Photos[PhotoKey(section, step)]
}

// Steps returns the steps of the section at index i, expanding dynamic
// sections from the accessory list.
func (s *Session) Steps(i int) []Step {
	if i < 0 || i >= len(s.Catalog.Sections) {
		return nil
	}
	sec := s.Catalog.Sections[i]
	if !sec.Dynamic {
		return sec.Steps
	}
	steps := make([]Step, len(s.Accessories))
	for j, a := range s.Accessories {
		steps[j] = s.Catalog.AccessoryStep(a)
	}
	return steps
}

// Current returns the section and step under the cursor. ok is false only
// when the cursor rests on an empty dynamic section.
func (s *Session) Current() (Section, Step, bool) {
	sec := s.Catalog.Sections[s.Cursor.Section]
	steps := s.Steps(s.Cursor.Section)
	if s.Cursor.Step < 0 || s.Cursor.Step >= len(steps) {
		return sec, Step{}, false
	}
	return sec, steps[s.Cursor.Step], true
}

// Normalize moves an out-of-range cursor to the nearest valid step.
func (s *Session) Normalize() {
	n := len(s.Catalog.Sections)
	if s.Cursor.Section < 0 {
		s.Cursor = Cursor{}
	}
	if s.Cursor.Section >= n {
		s.Cursor = Cursor{Section: n - 1, Step: len(s.Steps(n-1)) - 1}
		return
	}
	steps := len(s.Steps(s.Cursor.Section))
	if steps == 0 {
		s.forwardFrom(s.Cursor.Section)
		return
	}
	if s.Cursor.Step >= steps {
		s.Cursor.Step = steps - 1
	}
	if s.Cursor.Step < 0 {
		s.Cursor.Step = 0
	}
}

// forwardFrom moves to the first step of the next non-empty section after i.
// It reports false when no such section exists.
func (s *Session) forwardFrom(i int) bool {
	for j := i + 1; j < len(s.Catalog.Sections); j++ {
		if len(s.Steps(j)) > 0 {
			s.Cursor = Cursor{Section: j}
			return true
		}
	}
	return false
}

// Advance moves the cursor to the next step after checking the current
// step's gate. finished is true when the cursor is already on the last step.
func (s *Session) Advance() (finished bool, err error) {
	sec, step, ok := s.Current()
	if ok {
		if err := s.gate(sec, step); err != nil {
			return false, err
		}
		if s.Cursor.Step+1 < len(s.Steps(s.Cursor.Section)) {
			s.Cursor.Step++
			return false, nil
		}
	}
	if s.forwardFrom(s.Cursor.Section) {
		return false, nil
	}
	return true, nil
}

func (s *Session) gate(sec Section, step Step) error {
	if step.Photo && !s.HasPhoto(sec.Key, step.Key) {
		return ruleError(ErrPhotoRequired, fmt.Sprintf("Please capture a photo of %s before continuing.", step.Name))
	}
	if sec.Key == SectionHail && step.Key == StepHailHits && len(s.HailHits) < s.MinHits {
		return ruleError(ErrNotEnoughHailHits, fmt.Sprintf("Please circle at least %d hail hits before proceeding.", s.MinHits))
	}
	return nil
}

// Back moves the cursor to the previous step, crossing into the previous
// non-empty section when needed.
func (s *Session) Back() error {
	if _, _, ok := s.Current(); ok && s.Cursor.Step > 0 {
		s.Cursor.Step--
		return nil
	}
	for i := s.Cursor.Section - 1; i >= 0; i-- {
		if n := len(s.Steps(i)); n > 0 {
			s.Cursor = Cursor{Section: i, Step: n - 1}
			return nil
		}
	}
	return ErrAtStart
}

// Locate resolves a section and step key, including accessory steps.
func (s *Session) Locate(sectionKey, stepKey string) (Section, Step, error) {
	i, ok := s.Catalog.SectionIndex(sectionKey)
	if !ok {
		return Section{}, Step{}, fmt.Errorf("%w: section %q", ErrUnknownStep, sectionKey)
	}
	for _, st := range s.Steps(i) {
		if st.Key == stepKey {
			return s.Catalog.Sections[i], st, nil
		}
	}
	return Section{}, Step{}, fmt.Errorf("%w: %s/%s", ErrUnknownStep, sectionKey, stepKey)
}

// MoveTo places the cursor on the given step.
func (s *Session) MoveTo(sectionKey, stepKey string) error {
	i, ok := s.Catalog.SectionIndex(sectionKey)
	if !ok {
		return fmt.Errorf("%w: section %q", ErrUnknownStep, sectionKey)
	}
	for j, st := range s.Steps(i) {
		if st.Key == stepKey {
			s.Cursor = Cursor{Section: i, Step: j}
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", ErrUnknownStep, sectionKey, stepKey)
}

// AddAccessory appends an accessory of the given type.
func (s *Session) AddAccessory(typ string) (Accessory, error) {
	if _, ok := s.Catalog.AccessoryType(typ); !ok {
		return Accessory{}, fmt.Errorf("%w: %q", ErrUnknownAccessoryType, typ)
	}
	a := Accessory{ID: uuid.NewString(), Type: typ, Position: len(s.Accessories)}
	s.Accessories = append(s.Accessories, a)
	return a, nil
}

// EditAccessory changes the type of the accessory at index.
func (s *Session) EditAccessory(index int, typ string) (Accessory, error) {
	if index < 0 || index >= len(s.Accessories) {
		return Accessory{}, fmt.Errorf("%w: accessory %d", ErrIndexOutOfRange, index)
	}
	if _, ok := s.Catalog.AccessoryType(typ); !ok {
		return Accessory{}, fmt.Errorf("%w: %q", ErrUnknownAccessoryType, typ)
	}
	s.Accessories[index].Type = typ
	return s.Accessories[index], nil
}

// DeleteAccessory removes the accessory at index and clamps the cursor when
// it sits in the accessories section.
func (s *Session) DeleteAccessory(index int) (Accessory, error) {
	if index < 0 || index >= len(s.Accessories) {
		return Accessory{}, fmt.Errorf("%w: accessory %d", ErrIndexOutOfRange, index)
	}
	removed := s.Accessories[index]
	s.Accessories = append(s.Accessories[:index:index], s.Accessories[index+1:]...)
	for i := range s.Accessories {
		s.Accessories[i].Position = i
	}
	delete(s.Photos, PhotoKey(SectionAccessories, removed.ID))

	if i, ok := s.Catalog.SectionIndex(SectionAccessories); ok && s.Cursor.Section == i {
		s.Normalize()
	}
	return removed, nil
}

// HasSatelliteDish reports whether any accessory is a satellite dish.
func (s *Session) HasSatelliteDish() bool {
	for _, a := range s.Accessories {
		if a.Type == SatelliteDish {
			return true
		}
	}
	return false
}

// AddHailHit circles a new hit numbered after the last one.
func (s *Session) AddHailHit() HailHit {
	h := HailHit{Number: len(s.HailHits) + 1, Status: HailHitCircled}
	s.HailHits = append(s.HailHits, h)
	return h
}

// RemoveHailHit removes the most recent hit. ok is false when there are none.
func (s *Session) RemoveHailHit() (HailHit, bool) {
	if len(s.HailHits) == 0 {
		return HailHit{}, false
	}
	last := s.HailHits[len(s.HailHits)-1]
	s.HailHits = s.HailHits[:len(s.HailHits)-1]
	return last, true
}

// CloseupChoice is a hail hit offered for a closeup photo.
type CloseupChoice struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

// CloseupChoices lists the hits available for closeups, or a message when
// too few hits are circled.
func (s *Session) CloseupChoices() ([]CloseupChoice, string) {
	if len(s.HailHits) < s.MinHits {
		return []CloseupChoice{}, fmt.Sprintf("Please circle at least %d hail hits first.", s.MinHits)
	}
	choices := make([]CloseupChoice, len(s.HailHits))
	for i, h := range s.HailHits {
		status := "Available"
		if h.CloseupSlot > 0 {
			status = fmt.Sprintf("Selected for closeup %d", h.CloseupSlot)
		}
		choices[i] = CloseupChoice{Number: h.Number, Label: fmt.Sprintf("Hail Hit %d", h.Number), Status: status}
	}
	return choices, ""
}

// MaxCloseups is the number of closeup photo slots.
const MaxCloseups = 3

// SelectCloseup assigns hit number to closeup slot, releasing any hit that
// previously held the slot.
func (s *Session) SelectCloseup(slot, number int) error {
	if len(s.HailHits) < s.MinHits {
		return ruleError(ErrNotEnoughHailHits, fmt.Sprintf("Please circle at least %d hail hits first.", s.MinHits))
	}
	if slot < 1 || slot > MaxCloseups {
		return fmt.Errorf("%w: closeup slot %d", ErrIndexOutOfRange, slot)
	}
	if number < 1 || number > len(s.HailHits) {
		return fmt.Errorf("%w: hail hit %d", ErrIndexOutOfRange, number)
	}
	for i := range s.HailHits {
		if s.HailHits[i].CloseupSlot == slot {
			s.HailHits[i].CloseupSlot = 0
		}
	}
	s.HailHits[number-1].CloseupSlot = slot
	return nil
}

// StepView is a step annotated with its capture status.
type StepView struct {
	Step
	Status  string `json:"status"`
	Current bool   `json:"current"`
}

// SectionView is a section with per-step status for display.
type SectionView struct {
	Key           string     `json:"key"`
	Name          string     `json:"name"`
	ContinueLabel string     `json:"continueLabel"`
	Steps         []StepView `json:"steps"`
	Completed     int        `json:"completed"`
}

const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Overview returns every section with step statuses.
func (s *Session) Overview() []SectionView {
	out := make([]SectionView, len(s.Catalog.Sections))
	for i, sec := range s.Catalog.Sections {
		v := SectionView{Key: sec.Key, Name: sec.Name, ContinueLabel: sec.ContinueLabel, Steps: []StepView{}}
		for j, st := range s.Steps(i) {
			sv := StepView{Step: st, Status: StatusPending, Current: s.Cursor == Cursor{Section: i, Step: j}}
			if s.stepDone(sec, st) {
				sv.Status = StatusCompleted
				v.Completed++
			}
			v.Steps = append(v.Steps, sv)
		}
		out[i] = v
	}
	return out
}

func (s *Session) stepDone(sec Section, st Step) bool {
	if st.Photo {
		return s.HasPhoto(sec.Key, st.Key)
	}
	if sec.Key == SectionHail && st.Key == StepHailHits {
		return len(s.HailHits) >= s.MinHits
	}
	return false
}

// Progress counts captured photos against photo steps.
func (s *Session) Progress() (captured, total int) {
	for i, sec := range s.Catalog.Sections {
		for _, st := range s.Steps(i) {
			if !st.Photo {
				continue
			}
			total++
			if s.HasPhoto(sec.Key, st.Key) {
				captured++
			}
		}
	}
	return captured, total
}
