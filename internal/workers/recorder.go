package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/queue"
	"github.com/otakon/companion/internal/services/ai"
)

// UsageIncrementer persists one grounding-usage increment.
type UsageIncrementer interface {
	IncrementUsage(ctx context.Context, userID, monthYear string) error
}

// FeedbackWriter persists one correction-feedback audit row.
type FeedbackWriter interface {
	RecordFeedback(ctx context.Context, rec models.FeedbackRecord) error
}

// Recorder drains the job queue and applies each persistence job to the
// database. Grounding increments and feedback rows are both idempotent-ish
// appends, so a retried job at worst double-counts one increment.
type Recorder struct {
	usage    UsageIncrementer
	feedback FeedbackWriter
	jobQueue queue.JobQueue // for re-enqueueing jobs with delays
	logger   *zap.Logger
}

// NewRecorder creates a recorder worker.
func NewRecorder(usage UsageIncrementer, feedback FeedbackWriter, jobQueue queue.JobQueue, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		usage:    usage,
		feedback: feedback,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessJob processes a single queue message based on its job type.
func (r *Recorder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if !job.ShouldProcess() {
		// Not ready yet; put it back for a later delivery.
		if nackErr := msg.Nack(true); nackErr != nil {
			r.logger.Warn("failed to requeue deferred job", zap.Error(nackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeGroundingIncrement:
		if err := r.processGroundingIncrement(ctx, job); err != nil {
			return r.handleJobError(ctx, msg, job, err, "grounding increment")
		}

	case queue.JobTypeFeedbackRecord:
		if err := r.processFeedbackRecord(ctx, job); err != nil {
			return r.handleJobError(ctx, msg, job, err, "feedback record")
		}

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // unknown job type, send to DLQ
			r.logger.Warn("failed to nack unknown job type", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

func (r *Recorder) processGroundingIncrement(ctx context.Context, job *queue.Job) error {
	if job.MonthYear == "" {
		return fmt.Errorf("month_year is required for grounding increment job")
	}
	if err := r.usage.IncrementUsage(ctx, job.UserID, job.MonthYear); err != nil {
		return fmt.Errorf("failed to increment grounding usage: %w", err)
	}
	r.logger.Debug("recorded grounding increment",
		zap.String("user_id", job.UserID),
		zap.String("month_year", job.MonthYear))
	return nil
}

func (r *Recorder) processFeedbackRecord(ctx context.Context, job *queue.Job) error {
	if job.Feedback == nil {
		return fmt.Errorf("feedback payload is required for feedback record job")
	}
	if err := r.feedback.RecordFeedback(ctx, *job.Feedback); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	r.logger.Debug("recorded correction feedback",
		zap.String("user_id", job.UserID),
		zap.String("outcome", string(job.Feedback.Outcome)))
	return nil
}

// handleJobError retries failed jobs with a delayed re-enqueue, falling back
// to an immediate requeue when the queue is unreachable. Jobs out of retries
// go to the DLQ.
func (r *Recorder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, jobType string) error {
	if job.CanRetry() {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)

		if r.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := &queue.Job{
				ID:         job.ID,
				Type:       job.Type,
				UserID:     job.UserID,
				MonthYear:  job.MonthYear,
				Feedback:   job.Feedback,
				NotBefore:  &notBefore,
				NotAfter:   job.NotAfter,
				CreatedAt:  job.CreatedAt,
				RetryCount: job.RetryCount + 1,
				MaxRetries: job.MaxRetries,
			}

			if ackErr := msg.Ack(); ackErr != nil {
				r.logger.Warn("failed to ack job before re-enqueue", zap.Error(ackErr))
			}

			if enqueueErr := r.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				r.logger.Error("failed to re-enqueue job with delay",
					zap.String("job_id", job.ID.String()),
					zap.Error(enqueueErr))
				return fmt.Errorf("%s failed, re-enqueue failed: %w", jobType, enqueueErr)
			}

			r.logger.Info("re-enqueued failed job",
				zap.String("job_type", jobType),
				zap.String("job_id", job.ID.String()),
				zap.Duration("retry_delay", retryDelay),
				zap.Int("retry_count", job.RetryCount+1))
			return nil
		}

		// No queue handle; fall back to an immediate requeue.
		job.IncrementRetry()
		if nackErr := msg.Nack(true); nackErr != nil {
			r.logger.Warn("failed to nack job for retry", zap.Error(nackErr))
		}
		return fmt.Errorf("%s failed (will retry): %w", jobType, err)
	}

	r.logger.Error("job failed after max retries, sending to DLQ",
		zap.String("job_type", jobType),
		zap.String("job_id", job.ID.String()),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err))
	if nackErr := msg.Nack(false); nackErr != nil {
		r.logger.Warn("failed to nack job to DLQ", zap.Error(nackErr))
	}
	return fmt.Errorf("%s failed (max retries): %w", jobType, err)
}

// Run consumes queue messages until the context is cancelled.
func (r *Recorder) Run(ctx context.Context, jobQueue queue.JobQueue, prefetchCount int) error {
	messages, errors, err := jobQueue.Consume(ctx, prefetchCount)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case consumeErr, ok := <-errors:
			if !ok {
				return nil
			}
			r.logger.Warn("queue consume error", zap.Error(consumeErr))
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if procErr := r.ProcessJob(ctx, msg); procErr != nil {
				r.logger.Warn("job processing failed", zap.Error(procErr))
			}
		}
	}
}
