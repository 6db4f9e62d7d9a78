package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/store"
	"github.com/cwbudde/metaopt/internal/strategy"
)

// progressInterval throttles SSE updates to 2 per second
const progressInterval = 500 * time.Millisecond

// runJob executes a run in the background.
// Cancelling ctx stops the run after the current iteration; the partial
// result is kept. If runStore is not nil the final record is saved.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.Phase = strategy.PhaseInitializing
	})
	if err != nil {
		return err
	}

	slog.Info("Starting run",
		"job_id", jobID,
		"problem", job.Config.Problem.Name,
		"algorithm", job.Config.Algorithm,
		"iterations", job.Config.MaxIterations,
	)

	run, err := job.Config.Build(config.Hooks{
		Stop: func(int) bool { return ctx.Err() != nil },
		OnIteration: func(p strategy.Progress) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.Iterations = p.Iteration
				j.Phase = p.Phase
				j.Best = p.Best
			})
		},
	})
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Check for cancellation before starting
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID, nil)
		return ctx.Err()
	default:
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	res, err := run.Strategy.Run()
	close(progressDone)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	if res.Stopped && ctx.Err() != nil {
		markJobCancelled(jm, jobID, res)
	} else {
		endTime := time.Now()
		jm.UpdateJob(jobID, func(j *Job) {
			j.State = StateCompleted
			j.Phase = strategy.PhaseTerminated
			j.Best = res.Best
			j.Iterations = res.Iterations
			j.Result = res
			j.EndTime = &endTime
		})
		slog.Info("Run completed",
			"job_id", jobID,
			"elapsed", res.Elapsed,
			"best", res.Best.Fitness,
			"iterations", res.Iterations,
		)
	}

	if runStore != nil {
		if err := saveRecord(jm, runStore, jobID, res); err != nil {
			slog.Error("Failed to save run record", "job_id", jobID, "error", err)
		}
	}

	finishJob(jm, jobID)
	return nil
}

// monitorProgress periodically broadcasts progress events during a run
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(newProgressEvent(job))
		}
	}
}

// saveRecord persists the result of a finished run.
func saveRecord(jm *JobManager, runStore store.Store, jobID string, res *strategy.Result) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	record := store.NewRunRecord(jobID, job.Config, res)
	if err := runStore.SaveRun(record); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	jm.UpdateJob(jobID, func(j *Job) { j.Saved = true })
	slog.Info("Run record saved", "job_id", jobID, "status", record.Status)
	return nil
}

// finishJob sends the terminal event and closes all streams of the job.
func finishJob(jm *JobManager, jobID string) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}
	jm.broadcaster.Broadcast(newProgressEvent(job))
	jm.broadcaster.CleanupJob(jobID)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Phase = strategy.PhaseFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Run failed", "job_id", jobID, "error", err)
	finishJob(jm, jobID)
}

// markJobCancelled marks a job as cancelled, keeping the partial result if any.
func markJobCancelled(jm *JobManager, jobID string, res *strategy.Result) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.Phase = strategy.PhaseTerminated
		j.EndTime = &endTime
		if res != nil {
			j.Result = res
			j.Best = res.Best
			j.Iterations = res.Iterations
		}
	})
	slog.Info("Run cancelled", "job_id", jobID)
	if res == nil {
		finishJob(jm, jobID)
	}
}
