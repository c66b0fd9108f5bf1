package engine

import (
	"context"
	"fmt"

	"choreline/internal/domain"
	"choreline/internal/events"
	"choreline/internal/repo"
)

// notifyState stamps notified/updated, persists the row, logs the event
// in the same transaction, and publishes after commit.
func (e *Engine) notifyState(ctx context.Context, kind domain.Kind, action string, s *domain.State) error {
	now := e.epoch()
	s.Data.Notified = now
	s.Updated = now

	person, err := e.personOut(ctx, s.PersonID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateState(ctx, tx, kind, *s); err != nil {
		return fmt.Errorf("update %s %d: %w", kind, s.ID, err)
	}
	return e.record(ctx, tx, events.Message{
		Kind:   string(kind),
		Action: action,
		Payload: map[string]any{
			string(kind): toMap(*s),
			"person":     person,
		},
	})
}

// CreateState creates a todo or routine. Routines additionally collect
// tasks, stamp their start and kick the sequencer.
func (e *Engine) CreateState(ctx context.Context, kind domain.Kind, in CreateInput) (domain.State, error) {
	b, err := e.build(ctx, kind, in)
	if err != nil {
		return domain.State{}, err
	}
	s := domain.State{
		PersonID: b.PersonID,
		Name:     b.Name,
		Status:   domain.StateStatus(b.Status),
		Created:  b.Created,
		Updated:  b.Updated,
		Data:     b.Data,
	}
	if kind == domain.KindRoutine {
		if err := e.buildRoutine(ctx, &s); err != nil {
			return domain.State{}, err
		}
	}
	if err := e.Repo.InsertState(ctx, kind, &s); err != nil {
		return domain.State{}, err
	}
	if kind == domain.KindRoutine {
		s.Data.Start = domain.Int64(e.epoch())
	}
	if err := e.notifyState(ctx, kind, "create", &s); err != nil {
		return domain.State{}, err
	}
	if kind == domain.KindRoutine {
		if err := e.check(ctx, &s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// StateAction dispatches a transition on a todo or routine by id.
func (e *Engine) StateAction(ctx context.Context, kind domain.Kind, id int64, action string) (bool, error) {
	s, err := e.Repo.GetState(ctx, kind, id)
	if err != nil {
		return false, err
	}
	return e.stateTransition(ctx, kind, &s, action)
}

func (e *Engine) stateTransition(ctx context.Context, kind domain.Kind, s *domain.State, action string) (bool, error) {
	switch action {
	case "remind":
		if err := e.notifyState(ctx, kind, "remind", s); err != nil {
			return false, err
		}
		return true, nil

	case "pause":
		if s.Data.Paused {
			return false, nil
		}
		s.Data.Paused = true
		return true, e.notifyState(ctx, kind, "pause", s)

	case "unpause":
		if !s.Data.Paused {
			return false, nil
		}
		s.Data.Paused = false
		return true, e.notifyState(ctx, kind, "unpause", s)

	case "skip":
		if s.Data.Skipped {
			return false, nil
		}
		s.Data.Skipped = true
		s.Data.End = domain.Int64(e.epoch())
		s.Status = domain.StatusClosed
		return true, e.notifyState(ctx, kind, "skip", s)

	case "unskip":
		if !s.Data.Skipped {
			return false, nil
		}
		s.Data.Skipped = false
		s.Data.End = nil
		s.Status = domain.StatusOpened
		return true, e.notifyState(ctx, kind, "unskip", s)

	case "complete":
		if s.Data.End != nil && s.Status == domain.StatusClosed {
			return false, nil
		}
		s.Data.End = domain.Int64(e.epoch())
		s.Status = domain.StatusClosed
		if err := e.notifyState(ctx, kind, "complete", s); err != nil {
			return false, err
		}
		if kind == domain.KindToDo {
			if err := e.todoCompleted(ctx, *s); err != nil {
				return true, err
			}
		}
		return true, nil

	case "uncomplete":
		// Skipped and expired stay set; only their own inverse
		// clears them.
		if s.Data.End == nil && s.Status != domain.StatusClosed {
			return false, nil
		}
		s.Data.End = nil
		s.Status = domain.StatusOpened
		return true, e.notifyState(ctx, kind, "uncomplete", s)

	case "expire":
		if s.Data.Expired {
			return false, nil
		}
		s.Data.Expired = true
		s.Data.End = domain.Int64(e.epoch())
		s.Status = domain.StatusClosed
		return true, e.notifyState(ctx, kind, "expire", s)

	case "unexpire":
		if !s.Data.Expired {
			return false, nil
		}
		s.Data.Expired = false
		s.Data.End = nil
		s.Status = domain.StatusOpened
		return true, e.notifyState(ctx, kind, "unexpire", s)

	case "next":
		if kind == domain.KindRoutine {
			return e.next(ctx, s)
		}
	}
	return false, fmt.Errorf("%w: %s for %s", ErrUnknownAction, action, kind)
}

// RemindTodos stamps every open todo of a person and publishes one
// combined envelope. Data may carry "person" (name) or "person_id",
// plus an optional "speech" block passed through to subscribers.
func (e *Engine) RemindTodos(ctx context.Context, data map[string]any) (bool, error) {
	var personID int64
	if name, ok := data["person"].(string); ok && name != "" {
		person, err := e.Repo.GetPersonByName(ctx, name)
		if err != nil {
			return false, fmt.Errorf("person %q: %w", name, err)
		}
		personID = person.ID
	} else if id, ok := asInt(data["person_id"]); ok {
		personID = id
	} else {
		return false, fmt.Errorf("person is required")
	}

	person, err := e.personOut(ctx, personID)
	if err != nil {
		return false, err
	}
	todos, err := e.Repo.ListStates(ctx, domain.KindToDo, repo.StatusFilter{
		PersonID: personID,
		Status:   string(domain.StatusOpened),
		Since:    -1,
	}, e.epoch())
	if err != nil {
		return false, err
	}
	if len(todos) == 0 {
		return false, nil
	}

	now := e.epoch()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	out := make([]map[string]any, 0, len(todos))
	for i := range todos {
		todos[i].Data.Notified = now
		todos[i].Updated = now
		if err := e.Repo.UpdateState(ctx, tx, domain.KindToDo, todos[i]); err != nil {
			return false, err
		}
		out = append(out, toMap(todos[i]))
	}
	speech, _ := data["speech"].(map[string]any)
	if speech == nil {
		speech = map[string]any{}
	}
	err = e.record(ctx, tx, events.Message{
		Kind:   "todos",
		Action: "remind",
		Payload: map[string]any{
			"person": person,
			"speech": speech,
			"todos":  out,
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
