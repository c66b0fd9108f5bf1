package engine

import (
	"context"
	"fmt"

	"choreline/internal/domain"
	"choreline/internal/events"
)

// notifyValue stamps notified/updated, persists the row, logs the event
// in the same transaction, and publishes after commit.
func (e *Engine) notifyValue(ctx context.Context, kind domain.Kind, action string, v *domain.Value) error {
	now := e.epoch()
	v.Data.Notified = now
	v.Updated = now

	person, err := e.personOut(ctx, v.PersonID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateValue(ctx, tx, kind, *v); err != nil {
		return fmt.Errorf("update %s %d: %w", kind, v.ID, err)
	}
	return e.record(ctx, tx, events.Message{
		Kind:   string(kind),
		Action: action,
		Payload: map[string]any{
			string(kind): toMap(*v),
			"person":     person,
		},
	})
}

// CreateValue creates an area or act. A negative act whose data links a
// todo spawns that todo immediately.
func (e *Engine) CreateValue(ctx context.Context, kind domain.Kind, in CreateInput) (domain.Value, error) {
	b, err := e.build(ctx, kind, in)
	if err != nil {
		return domain.Value{}, err
	}
	v := domain.Value{
		PersonID: b.PersonID,
		Name:     b.Name,
		Status:   domain.ValueStatus(b.Status),
		Created:  b.Created,
		Updated:  b.Updated,
		Data:     b.Data,
	}
	if err := e.Repo.InsertValue(ctx, kind, &v); err != nil {
		return domain.Value{}, err
	}
	if err := e.notifyValue(ctx, kind, "create", &v); err != nil {
		return domain.Value{}, err
	}
	if kind == domain.KindAct && v.Status == domain.StatusNegative && domain.Truthy(v.Data.Todo) {
		if err := e.actSpawnsToDo(ctx, v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// ValueAction dispatches a transition on an area or act by id.
func (e *Engine) ValueAction(ctx context.Context, kind domain.Kind, id int64, action string) (bool, error) {
	v, err := e.Repo.GetValue(ctx, kind, id)
	if err != nil {
		return false, err
	}
	switch action {
	case "wrong":
		return e.wrong(ctx, kind, &v)
	case "right":
		return e.right(ctx, kind, &v)
	}
	return false, fmt.Errorf("%w: %s for %s", ErrUnknownAction, action, kind)
}

// wrong flips positive to negative. A wronged area that links a todo
// spawns that todo, tied back through data.area.
func (e *Engine) wrong(ctx context.Context, kind domain.Kind, v *domain.Value) (bool, error) {
	if v.Status != domain.StatusPositive {
		return false, nil
	}
	v.Status = domain.StatusNegative
	if err := e.notifyValue(ctx, kind, "wrong", v); err != nil {
		return false, err
	}
	if kind == domain.KindArea && domain.Truthy(v.Data.Todo) {
		if err := e.areaSpawnsToDo(ctx, *v); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (e *Engine) right(ctx context.Context, kind domain.Kind, v *domain.Value) (bool, error) {
	if v.Status != domain.StatusNegative {
		return false, nil
	}
	v.Status = domain.StatusPositive
	if err := e.notifyValue(ctx, kind, "right", v); err != nil {
		return false, err
	}
	return true, nil
}
