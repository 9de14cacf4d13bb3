// Command seed-exam loads an exam definition from JSON and stores it as a
// published exam.
//
//	go run ./cmd/seed-exam                 # built-in default exam
//	go run ./cmd/seed-exam -file exam.json
//	go run ./cmd/seed-exam -draft          # store without publishing
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/database"
	"github.com/lnrs/assessment-portal/internal/logger"
	"github.com/lnrs/assessment-portal/internal/model"
	"github.com/lnrs/assessment-portal/internal/repository"
	"github.com/lnrs/assessment-portal/internal/validator"
)

//go:embed default_exam.json
var defaultExam []byte

func main() {
	file := flag.String("file", "", "exam definition JSON (defaults to the built-in exam)")
	draft := flag.Bool("draft", false, "store the exam as DRAFT instead of PUBLISHED")
	flag.Parse()

	cfg := config.Load()
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	data := defaultExam
	if *file != "" {
		var err error
		data, err = os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to read exam file")
		}
	}

	var req model.CreateExamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse exam file")
	}
	if fields := validator.Struct(&req); fields != nil {
		for field, msg := range fields {
			log.Error().Str("field", field).Msg(msg)
		}
		log.Fatal().Msg("Exam file is invalid")
	}
	sections, err := req.Paper()
	if err != nil {
		log.Fatal().Err(err).Msg("Exam file is invalid")
	}

	exam := &model.Exam{
		Title:           req.Title,
		DurationSeconds: req.DurationSeconds,
		WarningSeconds:  req.WarningSeconds,
		MaxTabSwitches:  req.MaxTabSwitches,
		Status:          model.ExamStatusPublished,
	}
	if *draft {
		exam.Status = model.ExamStatusDraft
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, l)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if err := repository.NewExamRepository(pool).CreatePaper(ctx, exam, sections); err != nil {
		log.Fatal().Err(err).Msg("Failed to store exam")
	}

	questions := 0
	for _, s := range sections {
		questions += len(s.Questions)
	}
	log.Info().
		Str("exam_id", exam.ID.String()).
		Str("status", string(exam.Status)).
		Int("sections", len(sections)).
		Int("questions", questions).
		Msg("Exam seeded")
}
