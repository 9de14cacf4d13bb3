package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

func TestQuestionService_LoadPaperCachesOnMiss(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := &fakeExamStore{exam: publishedExam(), paper: testPaper()}
	svc := NewQuestionService(store, rdb, zerolog.Nop())

	paper, err := svc.LoadPaper(context.Background(), testExamID.String())
	if err != nil {
		t.Fatalf("LoadPaper() error = %v", err)
	}
	if len(paper.Sections) != 1 || paper.Sections[0].ID != "mcqs" {
		t.Fatalf("paper sections = %+v", paper.Sections)
	}
	if !mr.Exists(config.CacheKey.ExamSectionsKey(testExamID.String())) {
		t.Error("paper was not cached")
	}

	if _, err := svc.LoadPaper(context.Background(), testExamID.String()); err != nil {
		t.Fatalf("second LoadPaper() error = %v", err)
	}
	if got := store.loadCount(); got != 1 {
		t.Errorf("database loads = %d, want 1", got)
	}
}

func TestQuestionService_SelfHealsCorruptCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	key := config.CacheKey.ExamSectionsKey(testExamID.String())
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatal(err)
	}
	store := &fakeExamStore{exam: publishedExam(), paper: testPaper()}
	svc := NewQuestionService(store, rdb, zerolog.Nop())

	paper, err := svc.LoadPaper(context.Background(), testExamID.String())
	if err != nil {
		t.Fatalf("LoadPaper() error = %v", err)
	}
	if paper.Title != "Graduate Assessment" {
		t.Errorf("title = %q", paper.Title)
	}
	if got, _ := mr.Get(key); got == "{not json" {
		t.Error("corrupt cache entry was not replaced")
	}
}

func TestQuestionService_Unavailable(t *testing.T) {
	_, rdb := newTestRedis(t)

	draft := publishedExam()
	draft.Status = model.ExamStatusDraft
	svc := NewQuestionService(&fakeExamStore{exam: draft, paper: testPaper()}, rdb, zerolog.Nop())
	if _, err := svc.LoadPaper(context.Background(), testExamID.String()); !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("draft exam error = %v, want ErrExamNotAvailable", err)
	}

	missing := NewQuestionService(&fakeExamStore{}, rdb, zerolog.Nop())
	if _, err := missing.LoadPaper(context.Background(), testExamID.String()); !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("missing exam error = %v, want ErrExamNotAvailable", err)
	}

	if _, err := missing.LoadPaper(context.Background(), "not-a-uuid"); !errors.Is(err, engine.ErrValidation) {
		t.Errorf("bad id error = %v, want ErrValidation", err)
	}

	empty := &model.ExamPaper{ExamID: testExamID, Sections: []model.Section{{ID: "mcqs"}}}
	noQuestions := NewQuestionService(&fakeExamStore{exam: publishedExam(), paper: empty}, rdb, zerolog.Nop())
	if _, err := noQuestions.LoadPaper(context.Background(), testExamID.String()); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("empty paper error = %v, want ErrNoQuestions", err)
	}
}

func TestQuestionService_PrewarmAllCaches(t *testing.T) {
	mr, rdb := newTestRedis(t)
	svc := NewQuestionService(&fakeExamStore{exam: publishedExam(), paper: testPaper()}, rdb, zerolog.Nop())

	if err := svc.PrewarmAllCaches(context.Background()); err != nil {
		t.Fatalf("PrewarmAllCaches() error = %v", err)
	}
	if !mr.Exists(config.CacheKey.ExamSectionsKey(testExamID.String())) {
		t.Error("published exam was not prewarmed")
	}
}
