package engine_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

func newNavigator(t *testing.T) *engine.Navigator {
	t.Helper()
	nav, err := engine.NewNavigator(testPaper().Sections)
	if err != nil {
		t.Fatalf("NewNavigator() error = %v", err)
	}
	return nav
}

func TestNewNavigator_RejectsBadSections(t *testing.T) {
	q := model.Question{ID: "q", Type: model.QuestionTypeMultipleChoice, Choice: &model.ChoiceQuestion{Options: []string{"a"}}}
	tests := []struct {
		name     string
		sections []model.Section
	}{
		{"empty", nil},
		{"home id", []model.Section{{ID: "home", Questions: []model.Question{q}}}},
		{"duplicate", []model.Section{{ID: "a", Questions: []model.Question{q}}, {ID: "a", Questions: []model.Question{q}}}},
		{"no questions", []model.Section{{ID: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.NewNavigator(tt.sections); !errors.Is(err, engine.ErrValidation) {
				t.Errorf("NewNavigator() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestNavigator_StartsAtHome(t *testing.T) {
	nav := newNavigator(t)

	if !nav.Position().Home() {
		t.Fatalf("initial position = %+v, want home", nav.Position())
	}
	if nav.Next() || nav.Previous() {
		t.Error("Next/Previous moved from home")
	}
	if err := nav.GoToSection("coding"); !errors.Is(err, engine.ErrNotStarted) {
		t.Errorf("GoToSection() before start error = %v, want ErrNotStarted", err)
	}
	if err := nav.GoToSection(model.HomeSectionID); err != nil {
		t.Errorf("GoToSection(home) error = %v", err)
	}
}

func TestNavigator_CrossesSectionBoundaries(t *testing.T) {
	nav := newNavigator(t)
	nav.Start()

	want := []engine.Position{
		{SectionID: "mcqs", Index: 1},
		{SectionID: "aptitude", Index: 0},
		{SectionID: "coding", Index: 0},
	}
	for _, w := range want {
		if !nav.Next() {
			t.Fatalf("Next() did not move towards %+v", w)
		}
		if nav.Position() != w {
			t.Fatalf("position = %+v, want %+v", nav.Position(), w)
		}
	}
	if nav.Next() {
		t.Error("Next() moved past the last question")
	}

	for i := len(want) - 2; i >= 0; i-- {
		nav.Previous()
		if nav.Position() != want[i] {
			t.Fatalf("position = %+v, want %+v", nav.Position(), want[i])
		}
	}
	nav.Previous()
	if nav.Position() != (engine.Position{SectionID: "mcqs"}) {
		t.Fatalf("position = %+v, want (mcqs,0)", nav.Position())
	}
	if nav.Previous() {
		t.Error("Previous() moved before the first question")
	}
}

func TestNavigator_GoToSectionAndSelectQuestion(t *testing.T) {
	nav := newNavigator(t)
	nav.Start()

	if err := nav.GoToSection("unknown"); !errors.Is(err, engine.ErrUnknownSection) {
		t.Errorf("GoToSection(unknown) error = %v", err)
	}
	if err := nav.SelectQuestion(1); err != nil {
		t.Fatalf("SelectQuestion(1) error = %v", err)
	}
	if err := nav.GoToSection("aptitude"); err != nil {
		t.Fatalf("GoToSection() error = %v", err)
	}
	if nav.Position() != (engine.Position{SectionID: "aptitude"}) {
		t.Errorf("position = %+v, want (aptitude,0)", nav.Position())
	}
	if err := nav.SelectQuestion(1); !errors.Is(err, engine.ErrQuestionOutOfRange) {
		t.Errorf("SelectQuestion(1) error = %v, want ErrQuestionOutOfRange", err)
	}
}

// Any sequence of operations keeps the position at home or on a real
// question.
func TestNavigator_PositionAlwaysValid(t *testing.T) {
	nav := newNavigator(t)
	sections := testPaper().Sections
	ids := []string{"home", "mcqs", "aptitude", "coding", "bogus"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		switch rng.Intn(6) {
		case 0:
			nav.Next()
		case 1:
			nav.Previous()
		case 2:
			_ = nav.GoToSection(ids[rng.Intn(len(ids))])
		case 3:
			_ = nav.SelectQuestion(rng.Intn(5) - 1)
		case 4:
			nav.Start()
		}

		pos := nav.Position()
		if pos.Home() {
			continue
		}
		found := false
		for _, s := range sections {
			if s.ID == pos.SectionID {
				found = true
				if pos.Index < 0 || pos.Index >= len(s.Questions) {
					t.Fatalf("step %d: index %d out of range for %s", i, pos.Index, s.ID)
				}
			}
		}
		if !found {
			t.Fatalf("step %d: unknown section %q", i, pos.SectionID)
		}
	}
}
