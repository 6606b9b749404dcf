package jobs

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"staffdesk/internal/platform/querier"
)

const (
	JobIdempotencyPurge = "idempotency_purge"
)

// Service runs maintenance jobs on a single worker and records each run in
// job_runs.
type Service struct {
	DB     querier.Querier
	logger *zap.Logger
	queue  chan job
	now    func() time.Time
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db querier.Querier, logger *zap.Logger) *Service {
	return &Service{
		DB:     db,
		logger: logger.Named("jobs"),
		queue:  make(chan job, 16),
		now:    time.Now,
	}
}

// Start launches the worker and, when interval is positive, a ticker that
// purges idempotency keys older than retention. Both stop with ctx.
func (s *Service) Start(ctx context.Context, interval, retention time.Duration) {
	go s.worker(ctx)
	if interval > 0 && retention > 0 {
		go s.schedulePurge(ctx, interval, retention)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		s.logger.Warn("job queue full", zap.String("job_type", jobType))
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.logger.Warn("job run failed", zap.String("job_type", j.Type), zap.Error(err))
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1, $2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		s.logger.Warn("job run insert failed", zap.String("job_type", j.Type), zap.Error(err))
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		s.logger.Warn("job details marshal failed", zap.Error(marshalErr))
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			s.logger.Warn("job run update failed", zap.String("job_type", j.Type), zap.Error(updErr))
		}
	}
	return details, err
}

func (s *Service) schedulePurge(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().Add(-retention)
			s.Enqueue(JobIdempotencyPurge, func(ctx context.Context) (any, error) {
				return PurgeIdempotencyKeys(ctx, s.DB, cutoff)
			})
		}
	}
}

// PurgeIdempotencyKeys deletes remembered create responses older than cutoff.
func PurgeIdempotencyKeys(ctx context.Context, q querier.Querier, cutoff time.Time) (map[string]any, error) {
	tag, err := q.Exec(ctx, "DELETE FROM idempotency_keys WHERE created_at < $1", cutoff)
	if err != nil {
		return nil, err
	}
	return map[string]any{"cutoff": cutoff.UTC(), "deleted": tag.RowsAffected()}, nil
}
