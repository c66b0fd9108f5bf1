// Package daemon polls open routines over the HTTP API and fires
// expiry and reminder transitions when their windows come due.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"choreline/internal/domain"
)

// Client is the API surface the daemon drives. The sdk client
// satisfies it.
type Client interface {
	OpenRoutines(ctx context.Context) ([]domain.State, error)
	RoutineAction(ctx context.Context, id int64, action string) (bool, error)
	TaskAction(ctx context.Context, routineID int64, taskID int, action string) (bool, error)
}

// Expired reports whether a routine has outlived data.expires past its
// start.
func Expired(d domain.Data, now int64) bool {
	return d.Expires != nil && d.Start != nil && *d.Start+*d.Expires < now
}

func dueReminder(start, delay, interval *int64, paused bool, notified, now int64) bool {
	if delay != nil && start != nil && *start+*delay > now {
		return false
	}
	if paused {
		return false
	}
	return interval != nil && now > notified+*interval
}

// DueReminder reports whether a routine's reminder interval has lapsed
// since the last notification. The delay window defers the first
// nudge; pausing silences everything.
func DueReminder(d domain.Data, now int64) bool {
	return dueReminder(d.Start, d.Delay, d.Interval, d.Paused, d.Notified, now)
}

// TaskDueReminder is DueReminder over a single task's own windows.
func TaskDueReminder(t domain.Task, now int64) bool {
	return dueReminder(t.Start, t.Delay, t.Interval, t.Paused, t.Notified, now)
}

type Daemon struct {
	Client Client
	Sleep  time.Duration
	Log    *slog.Logger
	Now    func() time.Time
}

func (d *Daemon) now() int64 {
	if d.Now != nil {
		return d.Now().UTC().Unix()
	}
	return time.Now().UTC().Unix()
}

// Process runs one pass over all open routines. A failure on one
// routine is logged and never blocks the rest.
func (d *Daemon) Process(ctx context.Context) {
	routines, err := d.Client.OpenRoutines(ctx)
	if err != nil {
		d.Log.Error("list open routines", "error", err)
		return
	}
	for _, routine := range routines {
		if err := d.routine(ctx, routine); err != nil {
			d.Log.Error("routine pass failed", "routine", routine.ID, "error", err)
		}
	}
}

func (d *Daemon) routine(ctx context.Context, routine domain.State) error {
	now := d.now()
	if Expired(routine.Data, now) {
		d.Log.Info("expiring routine", "routine", routine.ID)
		_, err := d.Client.RoutineAction(ctx, routine.ID, "expire")
		return err
	}
	if DueReminder(routine.Data, now) {
		d.Log.Info("reminding routine", "routine", routine.ID)
		if _, err := d.Client.RoutineAction(ctx, routine.ID, "remind"); err != nil {
			return err
		}
	}
	for _, task := range routine.Data.Tasks {
		if task.Active() {
			if TaskDueReminder(task, now) {
				d.Log.Info("reminding task", "routine", routine.ID, "task", task.ID)
				if _, err := d.Client.TaskAction(ctx, routine.ID, task.ID, "remind"); err != nil {
					return err
				}
			}
			break
		}
	}
	return nil
}

// Run polls until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.Log.Info("daemon started", "sleep", d.Sleep)
	ticker := time.NewTicker(d.Sleep)
	defer ticker.Stop()
	d.Process(ctx)
	for {
		select {
		case <-ctx.Done():
			d.Log.Info("daemon stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Process(ctx)
		}
	}
}
