// Package engine implements the chore lifecycle: entity creation from
// templates, status transitions, task sequencing, and the cascade rules
// that tie areas, acts, todos and routines together.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"choreline/internal/config"
	"choreline/internal/domain"
	"choreline/internal/events"
	"choreline/internal/repo"
)

// ErrUnknownAction rejects transition names outside the entity's set.
var ErrUnknownAction = errors.New("unknown action")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Pub    events.Publisher
	Log    *slog.Logger
	Config *config.Config
	Now    func() time.Time
}

func (e *Engine) clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) epoch() int64 {
	return e.clock().UTC().Unix()
}

// Epoch exposes the engine clock as epoch seconds.
func (e *Engine) Epoch() int64 { return e.epoch() }

// publish is fire-and-forget: a dead channel must not fail a committed
// mutation.
func (e *Engine) publish(ctx context.Context, m events.Message) {
	if e.Pub == nil {
		return
	}
	if err := e.Pub.Publish(ctx, m); err != nil && e.Log != nil {
		e.Log.Warn("event publish failed", "kind", m.Kind, "action", m.Action, "error", err)
	}
}

// record writes the event log row in tx, commits, then publishes.
func (e *Engine) record(ctx context.Context, tx *sql.Tx, m events.Message) error {
	if err := e.Events.Append(ctx, tx, m); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.publish(ctx, m)
	return nil
}

func toMap(v any) map[string]any {
	raw, _ := json.Marshal(v)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func (e *Engine) personOut(ctx context.Context, personID int64) (map[string]any, error) {
	person, err := e.Repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("person %d: %w", personID, err)
	}
	return toMap(person), nil
}

// CreateInput collects everything a caller may supply when creating a
// status entity. Template (inline payload) wins over TemplateID; Data
// merges over both.
type CreateInput struct {
	PersonID   int64
	Person     string
	Name       string
	Status     string
	Created    int64
	TemplateID int64
	Template   map[string]any
	Data       map[string]any
}

type built struct {
	PersonID int64
	Name     string
	Status   string
	Created  int64
	Updated  int64
	Data     domain.Data
}

// build merges template, data and explicit fields in that order, then
// promotes the control fields out of the data blob.
func (e *Engine) build(ctx context.Context, kind domain.Kind, in CreateInput) (built, error) {
	var b built
	merged := map[string]any{}

	if in.Template != nil {
		for k, v := range in.Template {
			merged[k] = v
		}
	} else if in.TemplateID != 0 {
		tmpl, err := e.Repo.GetTemplate(ctx, in.TemplateID)
		if err != nil {
			return b, fmt.Errorf("template %d: %w", in.TemplateID, err)
		}
		for k, v := range tmpl.Data {
			merged[k] = v
		}
		if _, ok := merged["name"]; !ok {
			merged["name"] = tmpl.Name
		}
	}
	for k, v := range in.Data {
		merged[k] = v
	}

	personName := in.Person
	if personName == "" {
		if s, ok := merged["person"].(string); ok {
			personName = s
		}
	}
	b.PersonID = in.PersonID
	if personName != "" {
		person, err := e.Repo.GetPersonByName(ctx, personName)
		if err != nil {
			return b, fmt.Errorf("person %q: %w", personName, err)
		}
		b.PersonID = person.ID
	} else if b.PersonID == 0 {
		if raw, ok := merged["person_id"]; ok {
			if id, ok := asInt(raw); ok {
				b.PersonID = id
			}
		}
	}
	if b.PersonID == 0 {
		return b, fmt.Errorf("person is required")
	}

	b.Name = in.Name
	if b.Name == "" {
		if s, ok := merged["name"].(string); ok {
			b.Name = s
		}
	}
	if b.Name == "" {
		return b, fmt.Errorf("name is required")
	}

	b.Status = in.Status
	if b.Status == "" {
		if s, ok := merged["status"].(string); ok {
			b.Status = s
		}
	}
	if b.Status == "" {
		b.Status = defaultStatus(kind)
	}
	if err := checkStatus(kind, b.Status); err != nil {
		return b, err
	}

	now := e.epoch()
	b.Created = in.Created
	if b.Created == 0 {
		if ts, ok := asInt(merged["created"]); ok {
			b.Created = ts
		} else {
			b.Created = now
		}
	}
	b.Updated = now
	if ts, ok := asInt(merged["updated"]); ok {
		b.Updated = ts
	}

	for _, key := range []string{"person", "person_id", "name", "status", "created", "updated"} {
		delete(merged, key)
	}

	data, err := domain.DataFromMap(merged)
	if err != nil {
		return b, err
	}
	b.Data = data
	return b, nil
}

func defaultStatus(kind domain.Kind) string {
	switch kind {
	case domain.KindArea, domain.KindAct:
		return string(domain.StatusPositive)
	default:
		return string(domain.StatusOpened)
	}
}

func checkStatus(kind domain.Kind, status string) error {
	switch kind {
	case domain.KindArea, domain.KindAct:
		if status != string(domain.StatusPositive) && status != string(domain.StatusNegative) {
			return fmt.Errorf("status %q invalid for %s", status, kind)
		}
	case domain.KindToDo, domain.KindRoutine:
		if status != string(domain.StatusOpened) && status != string(domain.StatusClosed) {
			return fmt.Errorf("status %q invalid for %s", status, kind)
		}
	}
	return nil
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
