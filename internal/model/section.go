package model

import "fmt"

// HomeSectionID is the pseudo-section shown before and between sections.
const HomeSectionID = "home"

// SectionKind tells which question variant a section holds.
type SectionKind string

const (
	SectionKindChoice SectionKind = "CHOICE"
	SectionKindCode   SectionKind = "CODE"
)

// Section is a named, ordered group of questions of one kind.
type Section struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Kind      SectionKind `json:"kind"`
	Position  int         `json:"position"`
	Questions []Question  `json:"questions"`
}

// ForCandidate returns a copy of the section with hidden test data removed.
func (s Section) ForCandidate() Section {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = q.ForCandidate()
	}
	return out
}

// CreateSectionRequest is one section of a seed file.
type CreateSectionRequest struct {
	ID        string                  `json:"id" binding:"required,min=1,max=64"`
	Title     string                  `json:"title" binding:"required,min=1,max=255"`
	Kind      SectionKind             `json:"kind" binding:"required,oneof=CHOICE CODE"`
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// CreateExamRequest is the top-level shape of a seed file.
type CreateExamRequest struct {
	Title           string                 `json:"title" binding:"required,min=3,max=255"`
	DurationSeconds int                    `json:"duration_seconds" binding:"required,min=60"`
	WarningSeconds  int                    `json:"warning_seconds" binding:"min=0"`
	MaxTabSwitches  int                    `json:"max_tab_switches" binding:"min=1"`
	Sections        []CreateSectionRequest `json:"sections" binding:"required,min=1,dive"`
}

// Paper converts a seed file into sections ready to be stored. Choice
// sections need at least two options per question and code sections at least
// one test case.
func (r CreateExamRequest) Paper() ([]Section, error) {
	sections := make([]Section, 0, len(r.Sections))
	seen := make(map[string]bool, len(r.Sections))
	for pos, sr := range r.Sections {
		if sr.ID == HomeSectionID || seen[sr.ID] {
			return nil, fmt.Errorf("section id %q is reserved or duplicated", sr.ID)
		}
		seen[sr.ID] = true

		s := Section{ID: sr.ID, Title: sr.Title, Kind: sr.Kind, Position: pos}
		for i, qr := range sr.Questions {
			q := Question{Number: i + 1, Text: qr.Text}
			switch sr.Kind {
			case SectionKindChoice:
				if len(qr.Options) < 2 {
					return nil, fmt.Errorf("section %s question %d: needs at least two options", sr.ID, i+1)
				}
				q.Type = QuestionTypeMultipleChoice
				q.Choice = &ChoiceQuestion{Options: qr.Options}
			case SectionKindCode:
				if len(qr.TestCases) == 0 {
					return nil, fmt.Errorf("section %s question %d: needs at least one test case", sr.ID, i+1)
				}
				q.Type = QuestionTypeCode
				q.Code = &CodeQuestion{Constraints: qr.Constraints, Examples: qr.Examples, TestCases: qr.TestCases}
			default:
				return nil, fmt.Errorf("section %s: unknown kind %q", sr.ID, sr.Kind)
			}
			s.Questions = append(s.Questions, q)
		}
		sections = append(sections, s)
	}
	return sections, nil
}
