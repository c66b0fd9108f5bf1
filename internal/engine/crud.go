package engine

import (
	"context"

	"choreline/internal/domain"
)

// UpdateFields is the plain CRUD patch: fields present are replaced
// wholesale, data included. Transitions go through the action
// endpoints, not here.
type UpdateFields struct {
	PersonID *int64
	Name     *string
	Status   *string
	Created  *int64
	Data     map[string]any
}

func (e *Engine) UpdateValue(ctx context.Context, kind domain.Kind, id int64, f UpdateFields) (domain.Value, error) {
	v, err := e.Repo.GetValue(ctx, kind, id)
	if err != nil {
		return domain.Value{}, err
	}
	if f.PersonID != nil {
		v.PersonID = *f.PersonID
	}
	if f.Name != nil {
		v.Name = *f.Name
	}
	if f.Status != nil {
		if err := checkStatus(kind, *f.Status); err != nil {
			return domain.Value{}, err
		}
		v.Status = domain.ValueStatus(*f.Status)
	}
	if f.Created != nil {
		v.Created = *f.Created
	}
	if f.Data != nil {
		data, err := domain.DataFromMap(f.Data)
		if err != nil {
			return domain.Value{}, err
		}
		v.Data = data
	}
	v.Updated = e.epoch()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Value{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateValue(ctx, tx, kind, v); err != nil {
		return domain.Value{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Value{}, err
	}
	return v, nil
}

func (e *Engine) UpdateState(ctx context.Context, kind domain.Kind, id int64, f UpdateFields) (domain.State, error) {
	s, err := e.Repo.GetState(ctx, kind, id)
	if err != nil {
		return domain.State{}, err
	}
	if f.PersonID != nil {
		s.PersonID = *f.PersonID
	}
	if f.Name != nil {
		s.Name = *f.Name
	}
	if f.Status != nil {
		if err := checkStatus(kind, *f.Status); err != nil {
			return domain.State{}, err
		}
		s.Status = domain.StateStatus(*f.Status)
	}
	if f.Created != nil {
		s.Created = *f.Created
	}
	if f.Data != nil {
		data, err := domain.DataFromMap(f.Data)
		if err != nil {
			return domain.State{}, err
		}
		s.Data = data
	}
	s.Updated = e.epoch()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.State{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateState(ctx, tx, kind, s); err != nil {
		return domain.State{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.State{}, err
	}
	return s, nil
}
