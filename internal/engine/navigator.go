package engine

import (
	"fmt"

	"github.com/lnrs/assessment-portal/internal/model"
)

// Position is the candidate's place in the paper. SectionID is
// model.HomeSectionID while on the home screen.
type Position struct {
	SectionID string `json:"section_id"`
	Index     int    `json:"question_index"`
}

// Home reports whether the position is the home screen.
func (p Position) Home() bool { return p.SectionID == model.HomeSectionID }

// Navigator tracks the current section and question over an ordered list of
// sections. Its position is always Home or a valid (section, index) pair.
type Navigator struct {
	sections []model.Section
	order    map[string]int
	pos      Position
	started  bool
}

// NewNavigator validates the sections and returns a navigator at Home.
// Every section needs a unique id and at least one question.
func NewNavigator(sections []model.Section) (*Navigator, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: paper has no sections", ErrValidation)
	}

	order := make(map[string]int, len(sections))
	for i, s := range sections {
		if s.ID == "" || s.ID == model.HomeSectionID {
			return nil, fmt.Errorf("%w: invalid section id %q", ErrValidation, s.ID)
		}
		if _, dup := order[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate section id %q", ErrValidation, s.ID)
		}
		if len(s.Questions) == 0 {
			return nil, fmt.Errorf("%w: section %q has no questions", ErrValidation, s.ID)
		}
		order[s.ID] = i
	}

	return &Navigator{
		sections: sections,
		order:    order,
		pos:      Position{SectionID: model.HomeSectionID},
	}, nil
}

// Start marks the exam as started and moves to the first question of the
// first section.
func (n *Navigator) Start() {
	n.started = true
	n.pos = Position{SectionID: n.sections[0].ID}
}

// Started reports whether Start was called.
func (n *Navigator) Started() bool { return n.started }

// Position returns the current position.
func (n *Navigator) Position() Position { return n.pos }

// Sections returns the ordered sections.
func (n *Navigator) Sections() []model.Section { return n.sections }

// GoToSection moves to question 0 of the section. Home is always reachable;
// other sections only once started.
func (n *Navigator) GoToSection(id string) error {
	if id == model.HomeSectionID {
		n.pos = Position{SectionID: model.HomeSectionID}
		return nil
	}
	if _, ok := n.order[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, id)
	}
	if !n.started {
		return ErrNotStarted
	}
	n.pos = Position{SectionID: id}
	return nil
}

// SelectQuestion jumps to a question of the current section.
func (n *Navigator) SelectQuestion(index int) error {
	if n.pos.Home() {
		return fmt.Errorf("%w: no section selected", ErrQuestionOutOfRange)
	}
	s := n.sections[n.order[n.pos.SectionID]]
	if index < 0 || index >= len(s.Questions) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrQuestionOutOfRange, index, len(s.Questions))
	}
	n.pos.Index = index
	return nil
}

// Next advances one question, crossing into the first question of the next
// section at a boundary. It reports whether the position changed.
func (n *Navigator) Next() bool {
	if n.pos.Home() {
		return false
	}
	si := n.order[n.pos.SectionID]
	if n.pos.Index+1 < len(n.sections[si].Questions) {
		n.pos.Index++
		return true
	}
	if si+1 < len(n.sections) {
		n.pos = Position{SectionID: n.sections[si+1].ID}
		return true
	}
	return false
}

// Previous steps back one question, crossing into the last question of the
// previous section at a boundary. It reports whether the position changed.
func (n *Navigator) Previous() bool {
	if n.pos.Home() {
		return false
	}
	si := n.order[n.pos.SectionID]
	if n.pos.Index > 0 {
		n.pos.Index--
		return true
	}
	if si > 0 {
		prev := n.sections[si-1]
		n.pos = Position{SectionID: prev.ID, Index: len(prev.Questions) - 1}
		return true
	}
	return false
}

// Question returns the question at (sectionID, index).
func (n *Navigator) Question(sectionID string, index int) (model.Question, error) {
	si, ok := n.order[sectionID]
	if !ok {
		return model.Question{}, fmt.Errorf("%w: %q", ErrUnknownSection, sectionID)
	}
	qs := n.sections[si].Questions
	if index < 0 || index >= len(qs) {
		return model.Question{}, fmt.Errorf("%w: %d not in [0,%d)", ErrQuestionOutOfRange, index, len(qs))
	}
	return qs[index], nil
}

// Current returns the question at the current position, false on Home.
func (n *Navigator) Current() (model.Question, bool) {
	if n.pos.Home() {
		return model.Question{}, false
	}
	q, err := n.Question(n.pos.SectionID, n.pos.Index)
	return q, err == nil
}
