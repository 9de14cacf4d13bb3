package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/model"
)

// violationTTL matches the completion marker; the count only matters while
// the session can still be resumed.
const violationTTL = 24 * time.Hour

// ViolationService queues proctoring violations for the violation worker and
// keeps the running count for resumed sessions.
type ViolationService struct {
	rdb *redis.Client
	now func() time.Time
}

// NewViolationService creates a new ViolationService.
func NewViolationService(rdb *redis.Client) *ViolationService {
	return &ViolationService{rdb: rdb, now: time.Now}
}

// ReportViolation records a tab switch; count is the running total.
func (s *ViolationService) ReportViolation(ctx context.Context, sessionID string, count int) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("%w: invalid session id", engine.ErrValidation)
	}

	payload, err := json.Marshal(model.ViolationEvent{
		SessionID: sessionID,
		Kind:      model.ViolationTabSwitch,
		Count:     count,
		Timestamp: s.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload)
		pipe.Set(ctx, config.CacheKey.SessionTabSwitchesKey(sessionID), count, violationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: queue violation: %v", engine.ErrNetwork, err)
	}
	return nil
}
