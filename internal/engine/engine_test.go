package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/esgqa/internal/engine"
	"github.com/seantiz/esgqa/internal/model"
	"github.com/seantiz/esgqa/internal/store"
)

func fastOptions(failureRate float64) engine.Options {
	opts := engine.DefaultOptions()
	opts.QueueDelay = engine.Range{Min: 5 * time.Millisecond, Max: 20 * time.Millisecond}
	opts.RunDelay = engine.Range{Min: 5 * time.Millisecond, Max: 20 * time.Millisecond}
	opts.FailureRate = failureRate
	opts.FaultRate = 0
	return opts
}

func newTestEngine(t *testing.T, opts engine.Options) *engine.Engine {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.NewEngine(store.NewMemoryStore(), logger, opts)
	t.Cleanup(eng.Close)
	return eng
}

// waitForStatus polls the engine until the job reaches the expected status.
func waitForStatus(t *testing.T, eng *engine.Engine, id, expected string, timeout time.Duration) model.JobView {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		v, err := eng.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v.Status == expected {
			return v
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %q within %v", id, expected, timeout)
	return model.JobView{}
}

func TestSubmitReturnsQueued(t *testing.T) {
	opts := fastOptions(0)
	opts.QueueDelay = engine.Range{Min: time.Hour, Max: time.Hour}
	eng := newTestEngine(t, opts)

	j, err := eng.Submit(context.Background(), "What are Scope 1 emissions?", "Nokia", "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !model.ValidJobID(j.ID) {
		t.Errorf("job id %q is not a UUID v4", j.ID)
	}
	if j.Status != model.StatusQueued {
		t.Errorf("Status = %q, want queued", j.Status)
	}

	v, err := eng.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Status != model.StatusQueued {
		t.Errorf("stored status = %q, want queued", v.Status)
	}
}

func TestSubmitValidation(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0))
	ctx := context.Background()

	tests := []struct {
		name     string
		question string
		wantErr  error
	}{
		{"empty", "", engine.ErrInvalidArgument},
		{"blank", "   ", engine.ErrInvalidArgument},
		{"too long", strings.Repeat("q", model.MaxQuestionLength+1), engine.ErrQuestionTooLong},
		{"too long multibyte", strings.Repeat("é", model.MaxQuestionLength+1), engine.ErrQuestionTooLong},
		{"max length", strings.Repeat("q", model.MaxQuestionLength), nil},
		{"max length multibyte", strings.Repeat("é", model.MaxQuestionLength), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Submit(ctx, tt.question, "Nokia", "user-1")
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Submit error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, engine.ErrInvalidArgument) {
				t.Errorf("Submit error = %v, want it to be ErrInvalidArgument", err)
			}
		})
	}
}

func TestGetInvalidAndUnknownID(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0))
	ctx := context.Background()

	if _, err := eng.Get(ctx, "not-a-uuid"); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("Get(not-a-uuid) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := eng.Get(ctx, model.NewJobID()); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestLifecycleDone(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0))

	j, err := eng.Submit(context.Background(), "What are Scope 1 emissions?", "Nokia", "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitForStatus(t, eng, j.ID, model.StatusDone, 5*time.Second)
	if done.Result == nil {
		t.Fatal("done job has no result")
	}
	if done.Error != "" {
		t.Errorf("done job error = %q, want empty", done.Error)
	}
	if !strings.Contains(done.Result.Answer, "Nokia") {
		t.Errorf("answer %q does not mention the company", done.Result.Answer)
	}
	if done.Result.Confidence < 0.6 || done.Result.Confidence > 1.0 {
		t.Errorf("confidence = %v, want within [0.6, 1.0]", done.Result.Confidence)
	}
	if done.Result.Question != "What are Scope 1 emissions?" || done.Result.Company != "Nokia" {
		t.Errorf("result question/company = %q/%q", done.Result.Question, done.Result.Company)
	}
	if done.CompletedAt == nil {
		t.Error("completed_at is nil")
	}

	answers := eng.RecentAnswers()
	if len(answers) != 1 || answers[0].Answer != done.Result.Answer {
		t.Errorf("RecentAnswers = %+v, want the completed answer", answers)
	}
}

func TestLifecycleFailed(t *testing.T) {
	eng := newTestEngine(t, fastOptions(1))

	j, err := eng.Submit(context.Background(), "What are Scope 1 emissions?", "Nokia", "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, eng, j.ID, model.StatusFailed, 5*time.Second)
	if failed.Error != engine.FailureMessage {
		t.Errorf("error = %q, want %q", failed.Error, engine.FailureMessage)
	}
	if failed.Result != nil {
		t.Error("failed job should not carry a result")
	}
	if failed.CompletedAt != nil {
		t.Errorf("completedAt = %v, want unset on a failed job", failed.CompletedAt)
	}
	if n := len(eng.RecentAnswers()); n != 0 {
		t.Errorf("RecentAnswers has %d entries, want 0 after a failure", n)
	}
}

func TestFailureRateDistribution(t *testing.T) {
	opts := fastOptions(0.10)
	opts.QueueDelay = engine.Range{Min: time.Millisecond, Max: 2 * time.Millisecond}
	opts.RunDelay = engine.Range{Min: time.Millisecond, Max: 2 * time.Millisecond}
	eng := newTestEngine(t, opts)

	const n = 2000
	for i := 0; i < n; i++ {
		if _, err := eng.Submit(context.Background(), "Water usage?", "Nokia", "user-1"); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	eng.Wait()

	stats, err := eng.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	failed, done := stats.CountByStatus[model.StatusFailed], stats.CountByStatus[model.StatusDone]
	if failed+done != n {
		t.Fatalf("terminal jobs = %d, want %d (by status %v)", failed+done, n, stats.CountByStatus)
	}
	rate := float64(failed) / n
	if rate < 0.07 || rate > 0.13 {
		t.Errorf("failure rate = %.3f, want about 0.10", rate)
	}
}

func TestStatusProgressionIsMonotonic(t *testing.T) {
	opts := fastOptions(0.5)
	opts.QueueDelay = engine.Range{Min: 20 * time.Millisecond, Max: 40 * time.Millisecond}
	opts.RunDelay = engine.Range{Min: 20 * time.Millisecond, Max: 40 * time.Millisecond}
	eng := newTestEngine(t, opts)

	order := map[string]int{
		model.StatusQueued:  0,
		model.StatusRunning: 1,
		model.StatusDone:    2,
		model.StatusFailed:  2,
	}

	j, err := eng.Submit(context.Background(), "q", "Nokia", "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	last := -1
	seen := map[string]bool{}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		v, err := eng.Get(context.Background(), j.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		rank, ok := order[v.Status]
		if !ok {
			t.Fatalf("unexpected status %q", v.Status)
		}
		if rank < last {
			t.Fatalf("status went backwards to %q", v.Status)
		}
		if v.Result != nil && v.Status != model.StatusDone {
			t.Fatalf("result visible while status is %q", v.Status)
		}
		if v.Error != "" && v.Status != model.StatusFailed {
			t.Fatalf("error visible while status is %q", v.Status)
		}
		last = rank
		seen[v.Status] = true
		if model.IsTerminal(v.Status) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if last != 2 {
		t.Fatal("job did not reach a terminal status")
	}
	if !seen[model.StatusQueued] {
		t.Error("never observed queued")
	}
}

func TestRecentAnswersBounded(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0))
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := eng.Submit(ctx, "q", "Nokia", "user-1"); err != nil {
			t.Fatalf("Submit[%d]: %v", i, err)
		}
	}
	eng.Wait()

	answers := eng.RecentAnswers()
	if len(answers) != store.DefaultHistorySize {
		t.Fatalf("len(RecentAnswers) = %d, want %d", len(answers), store.DefaultHistorySize)
	}
	for i := 1; i < len(answers); i++ {
		if answers[i].Timestamp.After(answers[i-1].Timestamp) {
			t.Errorf("answers not newest first at %d", i)
		}
	}
}

func TestBroadcastToAllSubscribers(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0))

	sub1 := engine.NewSubscriber()
	sub2 := engine.NewSubscriber()
	eng.Broker().Subscribe("alice", sub1)
	eng.Broker().Subscribe("bob", sub2)

	j, err := eng.Submit(context.Background(), "q", "Nokia", "alice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	eng.Wait()

	for name, sub := range map[string]*engine.Subscriber{"alice": sub1, "bob": sub2} {
		got := drain(sub)
		if len(got) != 2 {
			t.Fatalf("%s got %d updates, want 2", name, len(got))
		}
		if got[0].JobID != j.ID || got[0].Status != model.StatusRunning {
			t.Errorf("%s first update = %+v, want running for %s", name, got[0], j.ID)
		}
		if got[1].Status != model.StatusDone {
			t.Errorf("%s second update status = %q, want done", name, got[1].Status)
		}
		if got[1].Timestamp.IsZero() {
			t.Errorf("%s update has zero timestamp", name)
		}
	}
}

func TestResubscribeOnlyNewReceives(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0))

	old := engine.NewSubscriber()
	eng.Broker().Subscribe("alice", old)
	fresh := engine.NewSubscriber()
	eng.Broker().Subscribe("alice", fresh)

	if _, err := eng.Submit(context.Background(), "q", "Nokia", "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	eng.Wait()

	if n := len(drain(old)); n != 0 {
		t.Errorf("replaced subscriber got %d updates, want 0", n)
	}
	if n := len(drain(fresh)); n != 2 {
		t.Errorf("new subscriber got %d updates, want 2", n)
	}
}

func TestCloseCancelsPendingTransitions(t *testing.T) {
	opts := fastOptions(0)
	opts.QueueDelay = engine.Range{Min: time.Hour, Max: time.Hour}
	eng := newTestEngine(t, opts)

	j, err := eng.Submit(context.Background(), "q", "Nokia", "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	eng.Close()

	v, err := eng.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Status != model.StatusQueued {
		t.Errorf("Status = %q, want queued after Close", v.Status)
	}
}

func TestSubmitConcurrent(t *testing.T) {
	eng := newTestEngine(t, fastOptions(0.1))

	ids := make([]string, 20)
	errs := make(chan error, len(ids))
	for i := range ids {
		go func(i int) {
			j, err := eng.Submit(context.Background(), "q", "Nokia", "user-1")
			if err == nil {
				ids[i] = j.ID
			}
			errs <- err
		}(i)
	}
	for range ids {
		if err := <-errs; err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	eng.Wait()

	stats, err := eng.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != len(ids) {
		t.Errorf("Total = %d, want %d", stats.Total, len(ids))
	}
	terminal := stats.CountByStatus[model.StatusDone] + stats.CountByStatus[model.StatusFailed]
	if terminal != len(ids) {
		t.Errorf("terminal jobs = %d, want %d", terminal, len(ids))
	}
}

// TestEndToEndDefaultTiming runs one job with production delays.
func TestEndToEndDefaultTiming(t *testing.T) {
	if testing.Short() {
		t.Skip("uses production delays")
	}
	eng := newTestEngine(t, engine.DefaultOptions())

	j, err := eng.Submit(context.Background(), "What are Scope 1 emissions?", "Nokia", "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if j.Status != model.StatusQueued {
		t.Fatalf("Status = %q, want queued", j.Status)
	}

	waitForStatus(t, eng, j.ID, model.StatusRunning, 4*time.Second)

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		v, err := eng.Get(context.Background(), j.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		switch v.Status {
		case model.StatusDone:
			if !strings.Contains(v.Result.Answer, "Nokia") {
				t.Errorf("answer %q does not mention Nokia", v.Result.Answer)
			}
			return
		case model.StatusFailed:
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status")
}

func drain(sub *engine.Subscriber) []model.JobUpdate {
	var out []model.JobUpdate
	for {
		select {
		case u := <-sub.Updates():
			out = append(out, u)
		default:
			return out
		}
	}
}
