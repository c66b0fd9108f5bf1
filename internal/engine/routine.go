package engine

import (
	"context"
	"fmt"

	"choreline/internal/domain"
	"choreline/internal/events"
	"choreline/internal/repo"
)

// buildRoutine expands data.todos into leading tasks (one per open todo
// of the person) and assigns sequential ids to tasks lacking one.
func (e *Engine) buildRoutine(ctx context.Context, s *domain.State) error {
	if s.Data.Todos {
		todos, err := e.Repo.ListStates(ctx, domain.KindToDo, repo.StatusFilter{
			PersonID: s.PersonID,
			Status:   string(domain.StatusOpened),
			Since:    -1,
		}, e.epoch())
		if err != nil {
			return err
		}
		tasks := make([]domain.Task, 0, len(todos)+len(s.Data.Tasks))
		for _, todo := range todos {
			text := todo.Data.Text
			if text == "" {
				text = todo.Name
			}
			tasks = append(tasks, domain.Task{Text: text, Todo: domain.Int64(todo.ID)})
		}
		s.Data.Tasks = append(tasks, s.Data.Tasks...)
	}
	for i := range s.Data.Tasks {
		if s.Data.Tasks[i].ID == 0 {
			s.Data.Tasks[i].ID = i
		}
	}
	return nil
}

// notifyTask stamps the task and its routine, persists the routine row,
// and emits a task envelope carrying both.
func (e *Engine) notifyTask(ctx context.Context, action string, task *domain.Task, routine *domain.State) error {
	now := e.epoch()
	routine.Data.Notified = now
	routine.Updated = now
	task.Notified = now

	person, err := e.personOut(ctx, routine.PersonID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateState(ctx, tx, domain.KindRoutine, *routine); err != nil {
		return fmt.Errorf("update routine %d: %w", routine.ID, err)
	}
	return e.record(ctx, tx, events.Message{
		Kind:   "task",
		Action: action,
		Payload: map[string]any{
			"task":    toMap(*task),
			"routine": toMap(*routine),
			"person":  person,
		},
	})
}

// check advances the sequencer: while a task is underway nothing moves;
// otherwise the next unstarted task starts, and with none left the
// routine completes.
func (e *Engine) check(ctx context.Context, routine *domain.State) error {
	if routine.Data.Tasks == nil {
		return nil
	}
	for i := range routine.Data.Tasks {
		if routine.Data.Tasks[i].Active() {
			return nil
		}
	}
	for i := range routine.Data.Tasks {
		task := &routine.Data.Tasks[i]
		if task.Start == nil {
			task.Start = domain.Int64(e.epoch())
			action := "start"
			if task.Paused {
				action = "pause"
			}
			return e.notifyTask(ctx, action, task, routine)
		}
	}
	_, err := e.stateTransition(ctx, domain.KindRoutine, routine, "complete")
	return err
}

// next completes the task currently underway, which lets check start
// the following one.
func (e *Engine) next(ctx context.Context, routine *domain.State) (bool, error) {
	for i := range routine.Data.Tasks {
		if routine.Data.Tasks[i].Active() {
			return e.taskTransition(ctx, routine, i, "complete")
		}
	}
	return false, nil
}

// TaskAction dispatches a transition on one task of a routine. Tasks
// are addressed by their position in the routine's list, which matches
// the id assigned at build time.
func (e *Engine) TaskAction(ctx context.Context, routineID int64, taskID int, action string) (bool, error) {
	routine, err := e.Repo.GetState(ctx, domain.KindRoutine, routineID)
	if err != nil {
		return false, err
	}
	if taskID < 0 || taskID >= len(routine.Data.Tasks) {
		return false, fmt.Errorf("task %d of routine %d: %w", taskID, routineID, repo.ErrNotFound)
	}
	return e.taskTransition(ctx, &routine, taskID, action)
}

func (e *Engine) taskTransition(ctx context.Context, routine *domain.State, taskID int, action string) (bool, error) {
	task := &routine.Data.Tasks[taskID]
	switch action {
	case "remind":
		if err := e.notifyTask(ctx, "remind", task, routine); err != nil {
			return false, err
		}
		return true, nil

	case "pause":
		if task.Paused {
			return false, nil
		}
		task.Paused = true
		return true, e.notifyTask(ctx, "pause", task, routine)

	case "unpause":
		if !task.Paused {
			return false, nil
		}
		task.Paused = false
		return true, e.notifyTask(ctx, "unpause", task, routine)

	case "skip":
		if task.Skipped {
			return false, nil
		}
		task.Skipped = true
		task.End = domain.Int64(e.epoch())
		if task.Start == nil {
			task.Start = task.End
		}
		if err := e.notifyTask(ctx, "skip", task, routine); err != nil {
			return false, err
		}
		return true, e.check(ctx, routine)

	case "unskip":
		if !task.Skipped {
			return false, nil
		}
		task.Skipped = false
		task.End = nil
		if err := e.notifyTask(ctx, "unskip", task, routine); err != nil {
			return false, err
		}
		_, err := e.stateTransition(ctx, domain.KindRoutine, routine, "uncomplete")
		return true, err

	case "complete":
		if task.End != nil {
			return false, nil
		}
		task.End = domain.Int64(e.epoch())
		if task.Start == nil {
			task.Start = task.End
		}
		if err := e.notifyTask(ctx, "complete", task, routine); err != nil {
			return false, err
		}
		if err := e.check(ctx, routine); err != nil {
			return true, err
		}
		if task.Todo != nil {
			if err := e.taskCompletesToDo(ctx, *task.Todo); err != nil {
				return true, err
			}
		}
		return true, nil

	case "uncomplete":
		if task.End == nil {
			return false, nil
		}
		task.End = nil
		if err := e.notifyTask(ctx, "uncomplete", task, routine); err != nil {
			return false, err
		}
		if _, err := e.stateTransition(ctx, domain.KindRoutine, routine, "uncomplete"); err != nil {
			return true, err
		}
		if task.Todo != nil {
			if err := e.taskUncompletesToDo(ctx, *task.Todo); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: %s for task", ErrUnknownAction, action)
}
