package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/lnrs/assessment-portal/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

var (
	testExamID     = uuid.MustParse("6f1b3c1e-2a4d-4d7e-9d51-0c7f6b2a9e10")
	testSessionID  = uuid.MustParse("0d5c2b9a-7e34-4f0a-9b8e-3c1d2e4f5a6b")
	testQuestionID = uuid.MustParse("9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d")
)

func testPaper() *model.ExamPaper {
	return &model.ExamPaper{
		ExamID:          testExamID,
		Title:           "Graduate Assessment",
		DurationSeconds: 3600,
		Sections: []model.Section{{
			ID: "mcqs", Title: "MCQs", Kind: model.SectionKindChoice,
			Questions: []model.Question{{
				ID: testQuestionID.String(), Number: 1, Text: "2 + 2?",
				Type:   model.QuestionTypeMultipleChoice,
				Choice: &model.ChoiceQuestion{Options: []string{"3", "4"}},
			}},
		}},
	}
}

// fakeExamStore serves one exam and counts paper loads.
type fakeExamStore struct {
	mu    sync.Mutex
	exam  *model.Exam
	paper *model.ExamPaper
	loads int
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if f.exam == nil || f.exam.ID != id {
		return nil, pgx.ErrNoRows
	}
	e := *f.exam
	return &e, nil
}

func (f *fakeExamStore) ListPublished(_ context.Context) ([]model.Exam, error) {
	if f.exam == nil || f.exam.Status != model.ExamStatusPublished {
		return nil, nil
	}
	return []model.Exam{*f.exam}, nil
}

func (f *fakeExamStore) LoadPaper(_ context.Context, _ uuid.UUID) (*model.ExamPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.paper, nil
}

func (f *fakeExamStore) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func publishedExam() *model.Exam {
	return &model.Exam{ID: testExamID, Title: "Graduate Assessment", DurationSeconds: 3600, Status: model.ExamStatusPublished}
}

// fakeSessionStore keeps sessions in memory keyed by (exam, candidate).
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions []*model.ExamSession
	creates  int
	switches map[uuid.UUID]int
}

func (f *fakeSessionStore) TabSwitchCount(_ context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.switches[id], nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			c := *s
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) GetByExamAndCandidate(_ context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ExamID == examID && s.CandidateID == candidateID {
			c := *s
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	s.ID = uuid.New()
	s.StartedAt = time.Now()
	s.Status = model.SessionStatusInProgress
	c := *s
	f.sessions = append(f.sessions, &c)
	return nil
}

type fakeAnswerLister struct {
	rows []model.SessionAnswer
}

func (f *fakeAnswerLister) ListBySession(_ context.Context, _ uuid.UUID) ([]model.SessionAnswer, error) {
	return f.rows, nil
}

type fakeChunkIndex struct {
	mu   sync.Mutex
	seen map[int]bool
}

func (f *fakeChunkIndex) Insert(_ context.Context, c *model.RecordingChunk, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[int]bool{}
	}
	if f.seen[c.Seq] {
		return false, nil
	}
	f.seen[c.Seq] = true
	return true, nil
}
