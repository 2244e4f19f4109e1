// Package scheduler runs the background sprint sweeper: ACTIVE sprints whose
// end date has passed are moved to COMPLETED.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/realtime"
	"github.com/monocle-dev/scrumboard/internal/services"
	"github.com/monocle-dev/scrumboard/internal/types"
)

const notifyTimeout = 15 * time.Second

type Scheduler struct {
	interval time.Duration
	ticker   *time.Ticker
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs one sweep immediately, then one every interval until Stop.
func (s *Scheduler) Start() {
	logging.Logger.Info("starting sprint sweeper", "interval", s.interval)

	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.ticker.Stop()

		s.runSweep()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-s.ticker.C:
				s.runSweep()
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	logging.Logger.Info("sprint sweeper stopped")
}

func (s *Scheduler) runSweep() {
	completed, err := Sweep(s.ctx, time.Now())
	if err != nil {
		logging.Logger.Error("sprint sweep failed", "err", err)
		return
	}

	if completed > 0 {
		logging.Logger.Info("completed ended sprints", "count", completed)
	}
}

// Ended reports whether sprint is past its end date at now. A date-only
// end date covers the whole day.
func Ended(sprint models.Sprint, now time.Time) bool {
	return !now.Before(sprint.EndDate.AddDate(0, 0, 1))
}

// Sweep completes every ACTIVE sprint that has ended and returns how many it
// changed. Each sprint is updated only if it is still ACTIVE, so a
// concurrent edit wins.
func Sweep(ctx context.Context, now time.Time) (int, error) {
	if db.DB == nil {
		return 0, db.ErrNotConnected
	}

	tx := db.DB.WithContext(ctx)

	var active []models.Sprint
	if err := tx.Where("status = ?", types.SprintActive).Order("id").Find(&active).Error; err != nil {
		return 0, fmt.Errorf("load active sprints: %w", err)
	}

	completed := 0
	for _, sprint := range active {
		if !Ended(sprint, now) {
			continue
		}

		result := tx.Model(&models.Sprint{}).
			Where("id = ? AND status = ?", sprint.ID, types.SprintActive).
			Update("status", types.SprintCompleted)

		if result.Error != nil {
			return completed, fmt.Errorf("complete sprint %d: %w", sprint.ID, result.Error)
		}

		if result.RowsAffected == 0 {
			continue
		}

		completed++
		sprint.Status = types.SprintCompleted

		realtime.Default.BroadcastRefresh(sprint.ProjectID, "sprint")
		notify(ctx, sprint)
	}

	return completed, nil
}

func notify(ctx context.Context, sprint models.Sprint) {
	var project models.Project
	if err := db.DB.WithContext(ctx).First(&project, sprint.ProjectID).Error; err != nil {
		logging.Logger.Warn("load project for sprint webhook", "sprint_id", sprint.ID, "err", err)
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	change := services.SprintStatusChange{Project: project, Sprint: sprint, Previous: types.SprintActive}
	if err := services.NotifySprintStatusChange(notifyCtx, change); err != nil {
		logging.Logger.Warn("sprint webhook failed", "sprint_id", sprint.ID, "err", err)
	}
}

var globalScheduler *Scheduler

// Initialize creates and starts the process-wide sweeper.
func Initialize(interval time.Duration) {
	globalScheduler = NewScheduler(interval)
	globalScheduler.Start()
}

func Shutdown() {
	if globalScheduler != nil {
		globalScheduler.Stop()
	}
}
