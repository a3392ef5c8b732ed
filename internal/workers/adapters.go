package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/queue"
	"github.com/otakon/companion/internal/services/correction"
	"github.com/otakon/companion/internal/services/grounding"
)

// Compile-time checks that the queue-backed adapters satisfy the service
// collaborator interfaces.
var (
	_ grounding.UsageStore    = (*QueuedUsageStore)(nil)
	_ correction.FeedbackSink = (*QueuedFeedbackSink)(nil)
)

// UsageReader reads the persisted grounding-usage count.
type UsageReader interface {
	GetUsage(ctx context.Context, userID, monthYear string) (int, error)
}

// UsageRepository is the direct-write persistence surface the queued store
// falls back to.
type UsageRepository interface {
	UsageReader
	UsageIncrementer
}

// QueuedUsageStore routes grounding-usage increments through the job queue
// so a chat turn never blocks on the usage table. Reads always go straight
// to the repository; when the queue is down, writes do too.
type QueuedUsageStore struct {
	repo     UsageRepository
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewQueuedUsageStore creates a queue-backed usage store. A nil jobQueue
// degrades to direct writes.
func NewQueuedUsageStore(repo UsageRepository, jobQueue queue.JobQueue, logger *zap.Logger) *QueuedUsageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuedUsageStore{repo: repo, jobQueue: jobQueue, logger: logger}
}

// GetUsage reads the current count directly from the repository.
func (s *QueuedUsageStore) GetUsage(ctx context.Context, userID, monthYear string) (int, error) {
	return s.repo.GetUsage(ctx, userID, monthYear)
}

// IncrementUsage enqueues an increment job, writing synchronously when the
// queue is unavailable.
func (s *QueuedUsageStore) IncrementUsage(ctx context.Context, userID, monthYear string) error {
	if s.jobQueue != nil {
		job := queue.NewGroundingIncrementJob(userID, monthYear)
		err := s.jobQueue.Enqueue(ctx, job)
		if err == nil {
			return nil
		}
		s.logger.Warn("failed to enqueue grounding increment, writing directly",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	if err := s.repo.IncrementUsage(ctx, userID, monthYear); err != nil {
		return fmt.Errorf("failed to increment grounding usage: %w", err)
	}
	return nil
}

// QueuedFeedbackSink routes correction audit rows through the job queue.
// Recording is best-effort: a row that cannot be enqueued or written is
// logged and dropped rather than failing the correction flow.
type QueuedFeedbackSink struct {
	writer   FeedbackWriter
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewQueuedFeedbackSink creates a queue-backed feedback sink. A nil jobQueue
// degrades to direct writes.
func NewQueuedFeedbackSink(writer FeedbackWriter, jobQueue queue.JobQueue, logger *zap.Logger) *QueuedFeedbackSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuedFeedbackSink{writer: writer, jobQueue: jobQueue, logger: logger}
}

// RecordFeedback enqueues the audit row, falling back to a direct write.
func (s *QueuedFeedbackSink) RecordFeedback(ctx context.Context, rec models.FeedbackRecord) {
	if s.jobQueue != nil {
		job := queue.NewFeedbackJob(rec)
		err := s.jobQueue.Enqueue(ctx, job)
		if err == nil {
			return
		}
		s.logger.Warn("failed to enqueue feedback record, writing directly",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
	}
	if err := s.writer.RecordFeedback(ctx, rec); err != nil {
		s.logger.Error("failed to record correction feedback",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
	}
}
