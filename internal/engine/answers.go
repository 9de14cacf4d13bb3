package engine

import "fmt"

// AnswerKey identifies an answer by section and question index.
type AnswerKey struct {
	SectionID     string
	QuestionIndex int
}

// String renders the key as "section-index".
func (k AnswerKey) String() string {
	return fmt.Sprintf("%s-%d", k.SectionID, k.QuestionIndex)
}

// AnswerStore is the session's answer record. Entries are only ever
// inserted or overwritten.
type AnswerStore struct {
	record map[AnswerKey]string
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{record: make(map[AnswerKey]string)}
}

// Select upserts the answer and reports whether the record changed.
func (s *AnswerStore) Select(sectionID string, index int, value string) bool {
	key := AnswerKey{SectionID: sectionID, QuestionIndex: index}
	if prev, ok := s.record[key]; ok && prev == value {
		return false
	}
	s.record[key] = value
	return true
}

// Get returns the answer stored under (sectionID, index).
func (s *AnswerStore) Get(sectionID string, index int) (string, bool) {
	v, ok := s.record[AnswerKey{SectionID: sectionID, QuestionIndex: index}]
	return v, ok
}

// Progress counts the answered questions of a section.
func (s *AnswerStore) Progress(sectionID string) int {
	n := 0
	for k := range s.record {
		if k.SectionID == sectionID {
			n++
		}
	}
	return n
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int { return len(s.record) }

// Snapshot copies the record keyed by AnswerKey.String.
func (s *AnswerStore) Snapshot() map[string]string {
	out := make(map[string]string, len(s.record))
	for k, v := range s.record {
		out[k.String()] = v
	}
	return out
}
