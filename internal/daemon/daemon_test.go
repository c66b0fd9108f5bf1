package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"choreline/internal/domain"
)

func TestExpired(t *testing.T) {
	now := int64(1000)
	cases := []struct {
		name string
		data domain.Data
		want bool
	}{
		{"no expires", domain.Data{Start: domain.Int64(100)}, false},
		{"no start", domain.Data{Expires: domain.Int64(100)}, false},
		{"within window", domain.Data{Start: domain.Int64(950), Expires: domain.Int64(100)}, false},
		{"past window", domain.Data{Start: domain.Int64(100), Expires: domain.Int64(100)}, true},
	}
	for _, tc := range cases {
		if got := Expired(tc.data, now); got != tc.want {
			t.Errorf("%s: Expired = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDueReminder(t *testing.T) {
	now := int64(1000)
	cases := []struct {
		name string
		data domain.Data
		want bool
	}{
		{"no interval", domain.Data{Start: domain.Int64(100), Notified: 100}, false},
		{"interval lapsed", domain.Data{Start: domain.Int64(100), Notified: 100, Interval: domain.Int64(60)}, true},
		{"interval not lapsed", domain.Data{Start: domain.Int64(100), Notified: 990, Interval: domain.Int64(60)}, false},
		{"delay defers", domain.Data{Start: domain.Int64(990), Delay: domain.Int64(60), Notified: 100, Interval: domain.Int64(60)}, false},
		{"delay passed", domain.Data{Start: domain.Int64(100), Delay: domain.Int64(60), Notified: 100, Interval: domain.Int64(60)}, true},
		{"paused silences", domain.Data{Lifecycle: domain.Lifecycle{Paused: true}, Start: domain.Int64(100), Notified: 100, Interval: domain.Int64(60)}, false},
	}
	for _, tc := range cases {
		if got := DueReminder(tc.data, now); got != tc.want {
			t.Errorf("%s: DueReminder = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTaskDueReminder(t *testing.T) {
	now := int64(1000)
	task := domain.Task{Start: domain.Int64(100), Notified: 100, Interval: domain.Int64(60)}
	if !TaskDueReminder(task, now) {
		t.Fatal("task reminder should be due")
	}
	task.Paused = true
	if TaskDueReminder(task, now) {
		t.Fatal("paused task should stay quiet")
	}
}

type fakeClient struct {
	routines       []domain.State
	listErr        error
	routineActions []string
	taskActions    []string
	failRoutine    int64
}

func (f *fakeClient) OpenRoutines(ctx context.Context) ([]domain.State, error) {
	return f.routines, f.listErr
}

func (f *fakeClient) RoutineAction(ctx context.Context, id int64, action string) (bool, error) {
	if id == f.failRoutine {
		return false, errors.New("boom")
	}
	f.routineActions = append(f.routineActions, fmt.Sprintf("%d:%s", id, action))
	return true, nil
}

func (f *fakeClient) TaskAction(ctx context.Context, routineID int64, taskID int, action string) (bool, error) {
	f.taskActions = append(f.taskActions, fmt.Sprintf("%d/%d:%s", routineID, taskID, action))
	return true, nil
}

func testDaemon(client *fakeClient, now int64) *Daemon {
	return &Daemon{
		Client: client,
		Sleep:  time.Second,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return time.Unix(now, 0).UTC() },
	}
}

func TestProcessExpiresBeforeReminding(t *testing.T) {
	client := &fakeClient{routines: []domain.State{{
		ID:     1,
		Status: domain.StatusOpened,
		Data: domain.Data{
			Start:    domain.Int64(100),
			Expires:  domain.Int64(50),
			Interval: domain.Int64(10),
			Notified: 100,
		},
	}}}
	testDaemon(client, 1000).Process(context.Background())
	if len(client.routineActions) != 1 || client.routineActions[0] != "1:expire" {
		t.Fatalf("actions = %v, want just the expire", client.routineActions)
	}
}

func TestProcessRemindsRoutineAndActiveTask(t *testing.T) {
	client := &fakeClient{routines: []domain.State{{
		ID:     2,
		Status: domain.StatusOpened,
		Data: domain.Data{
			Start:    domain.Int64(100),
			Interval: domain.Int64(60),
			Notified: 100,
			Tasks: []domain.Task{
				{ID: 0, Start: domain.Int64(100), End: domain.Int64(200)},
				{ID: 1, Start: domain.Int64(200), Notified: 200, Interval: domain.Int64(60)},
				{ID: 2, Notified: 200, Interval: domain.Int64(1)},
			},
		},
	}}}
	testDaemon(client, 1000).Process(context.Background())
	if len(client.routineActions) != 1 || client.routineActions[0] != "2:remind" {
		t.Fatalf("routine actions = %v", client.routineActions)
	}
	// Only the active task gets a nudge, never the ones behind it.
	if len(client.taskActions) != 1 || client.taskActions[0] != "2/1:remind" {
		t.Fatalf("task actions = %v", client.taskActions)
	}
}

func TestProcessContinuesPastFailures(t *testing.T) {
	data := domain.Data{
		Start:    domain.Int64(100),
		Interval: domain.Int64(60),
		Notified: 100,
	}
	client := &fakeClient{
		failRoutine: 1,
		routines: []domain.State{
			{ID: 1, Status: domain.StatusOpened, Data: data},
			{ID: 2, Status: domain.StatusOpened, Data: data},
		},
	}
	testDaemon(client, 1000).Process(context.Background())
	if len(client.routineActions) != 1 || client.routineActions[0] != "2:remind" {
		t.Fatalf("second routine should still be reminded: %v", client.routineActions)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	client := &fakeClient{}
	d := testDaemon(client, 1000)
	d.Sleep = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
