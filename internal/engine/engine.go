package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/seantiz/esgqa/internal/model"
	"github.com/seantiz/esgqa/internal/store"
)

var (
	// ErrInvalidArgument is returned for malformed job IDs and empty or
	// oversized questions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQuestionTooLong is the ErrInvalidArgument case for oversized questions.
	ErrQuestionTooLong = fmt.Errorf("%w: question exceeds %d characters", ErrInvalidArgument, model.MaxQuestionLength)

	// ErrNotFound is returned when a job ID is well formed but unknown.
	ErrNotFound = store.ErrNotFound
)

// Engine drives question jobs through their lifecycle.
type Engine struct {
	store     store.Store
	history   *store.History
	broker    *Broker
	scheduler *Scheduler
	generator AnswerGenerator
	opts      Options
	logger    *slog.Logger
}

// NewEngine creates a new lifecycle engine. Zero delay ranges, history size
// and Random fall back to DefaultOptions; rates are taken as given.
func NewEngine(s store.Store, logger *slog.Logger, opts Options) *Engine {
	def := DefaultOptions()
	if opts.QueueDelay == (Range{}) {
		opts.QueueDelay = def.QueueDelay
	}
	if opts.RunDelay == (Range{}) {
		opts.RunDelay = def.RunDelay
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = def.HistorySize
	}
	if opts.Random == nil {
		opts.Random = def.Random
	}

	return &Engine{
		store:     s,
		history:   store.NewHistory(opts.HistorySize),
		broker:    NewBroker(),
		scheduler: NewScheduler(),
		generator: NewTemplateGenerator(opts.Random, opts.FaultRate),
		opts:      opts,
		logger:    logger,
	}
}

// Broker returns the engine's update broker for push subscriptions.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Generator returns the answer generator shared with the upstream simulator.
func (e *Engine) Generator() AnswerGenerator {
	return e.generator
}

// Submit validates the question, stores a queued job and schedules its first
// transition. It returns before the job starts running.
func (e *Engine) Submit(ctx context.Context, question, company, userID string) (*model.Job, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(question) > model.MaxQuestionLength {
		return nil, ErrQuestionTooLong
	}

	j := &model.Job{
		ID:          model.NewJobID(),
		Question:    question,
		Company:     company,
		Status:      model.StatusQueued,
		UserID:      userID,
		SubmittedAt: time.Now().UTC(),
	}
	if err := e.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	jobsSubmittedTotal.Inc()

	id := j.ID
	delay := e.opts.QueueDelay.Pick(e.opts.Random)
	if !e.scheduler.Schedule(id, delay, func() { e.start(id) }) {
		e.logger.Warn("engine closed, job left queued", "job_id", id)
	}
	e.logger.Debug("job submitted", "job_id", id, "user_id", userID, "start_in", delay)

	return j, nil
}

// Get returns the current snapshot of a job.
func (e *Engine) Get(ctx context.Context, id string) (model.JobView, error) {
	if !model.ValidJobID(id) {
		return model.JobView{}, fmt.Errorf("%w: malformed job id %q", ErrInvalidArgument, id)
	}
	j, err := e.store.GetJob(ctx, id)
	if err != nil {
		return model.JobView{}, err
	}
	return j.View(), nil
}

// RecentAnswers returns the most recent answers, newest first. All users
// share one history.
func (e *Engine) RecentAnswers() []model.AnswerRecord {
	return e.history.List()
}

// Stats returns job counts by status.
func (e *Engine) Stats(ctx context.Context) (*store.JobStats, error) {
	return e.store.GetJobStats(ctx)
}

// Wait blocks until all scheduled transitions have fired.
func (e *Engine) Wait() {
	e.scheduler.Wait()
}

// Close cancels pending transitions. Jobs not yet terminal stay as they are.
func (e *Engine) Close() {
	e.scheduler.Stop()
}

// start moves a queued job to running and schedules its completion.
func (e *Engine) start(id string) {
	j, err := e.store.TransitionJob(context.Background(), id, model.StatusQueued, model.StatusRunning, nil)
	if err != nil {
		e.skip(id, model.StatusRunning, err)
		return
	}
	e.publish(j)

	delay := e.opts.RunDelay.Pick(e.opts.Random)
	if !e.scheduler.Schedule(id, delay, func() { e.finish(id) }) {
		e.logger.Warn("engine closed, job left running", "job_id", id)
	}
}

// finish moves a running job to done or failed.
func (e *Engine) finish(id string) {
	to := model.StatusDone
	if e.opts.Random.Float64() < e.opts.FailureRate {
		to = model.StatusFailed
	}

	j, err := e.store.TransitionJob(context.Background(), id, model.StatusRunning, to, func(j *model.Job) {
		if to == model.StatusFailed {
			j.Error = FailureMessage
			return
		}
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.Result = &model.AnswerRecord{
			Question:   j.Question,
			Company:    j.Company,
			Answer:     e.generator.Answer(j.Question, j.Company),
			Confidence: e.generator.Confidence(),
			Timestamp:  now,
		}
	})
	if err != nil {
		e.skip(id, to, err)
		return
	}

	if j.Status == model.StatusDone {
		e.history.Add(*j.Result)
	}
	e.publish(j)
}

// skip logs a transition that no longer applies. Missing or already moved
// jobs are expected and not treated as failures.
func (e *Engine) skip(id, to string, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidTransition) {
		e.logger.Debug("transition skipped", "job_id", id, "to", to, "reason", err)
		return
	}
	e.logger.Error("transition failed", "job_id", id, "to", to, "error", err)
}

func (e *Engine) publish(j *model.Job) {
	jobTransitionsTotal.WithLabelValues(j.Status).Inc()
	e.logger.Info("job transitioned", "job_id", j.ID, "status", j.Status)
	e.broker.Publish(model.JobUpdate{
		JobID:     j.ID,
		Status:    j.Status,
		Timestamp: time.Now().UTC(),
	})
}
