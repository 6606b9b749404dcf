package jobs

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunJobRecordsCompletedRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_runs (job_type, status)")).
		WithArgs(JobIdempotencyPurge, "running").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("run-1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM idempotency_keys WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE job_runs")).
		WithArgs("completed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := New(mock, zaptest.NewLogger(t))
	details, err := svc.runJob(context.Background(), job{Type: JobIdempotencyPurge, Run: func(ctx context.Context) (any, error) {
		return PurgeIdempotencyKeys(ctx, mock, cutoff)
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), details.(map[string]any)["deleted"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunJobRecordsFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_runs (job_type, status)")).
		WithArgs("broken", "running").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("run-2"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE job_runs")).
		WithArgs("failed", pgxmock.AnyArg(), "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := New(mock, zaptest.NewLogger(t))
	_, err = svc.runJob(context.Background(), job{Type: "broken", Run: func(context.Context) (any, error) {
		return nil, errors.New("boom")
	}})
	assert.EqualError(t, err, "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	svc := New(nil, zaptest.NewLogger(t))
	for i := 0; i < cap(svc.queue)+5; i++ {
		svc.Enqueue("noop", func(context.Context) (any, error) { return nil, nil })
	}
	assert.Len(t, svc.queue, cap(svc.queue))
}
