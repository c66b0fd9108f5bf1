package engine

import (
	"context"
	"fmt"

	"choreline/internal/domain"
)

// Cascades run after the primary transition has committed and
// published; a cascade failure surfaces to the caller but never rolls
// the primary change back.

// spawnInput resolves the three forms a todo/act link may take: a map
// is an inline template payload, a number is a template id, and a bare
// flag synthesizes the payload from the owning entity itself.
func spawnInput(link any, ownerName string, ownerData domain.Data, marker string) (CreateInput, error) {
	var in CreateInput
	switch v := link.(type) {
	case map[string]any:
		tmpl := make(map[string]any, len(v))
		for k, val := range v {
			tmpl[k] = val
		}
		in.Template = tmpl
		return in, nil
	case bool, nil:
		// fall through to synthesis below
	default:
		if id, ok := asInt(link); ok {
			in.TemplateID = id
			return in, nil
		}
	}
	if !domain.Truthy(link) {
		return in, fmt.Errorf("link is not set")
	}
	tmpl := ownerData.Map()
	delete(tmpl, "todo")
	delete(tmpl, "act")
	delete(tmpl, "notified")
	delete(tmpl, "tasks")
	if _, ok := tmpl["name"]; !ok {
		tmpl["name"] = ownerName
	}
	if marker != "" {
		tmpl[marker] = true
	}
	in.Template = tmpl
	return in, nil
}

// areaSpawnsToDo runs when a linked area goes wrong: the spawned todo
// carries data.area so completing it rights the area again.
func (e *Engine) areaSpawnsToDo(ctx context.Context, area domain.Value) error {
	in, err := spawnInput(area.Data.Todo, area.Name, area.Data, "")
	if err != nil {
		return fmt.Errorf("area %d todo link: %w", area.ID, err)
	}
	in.PersonID = area.PersonID
	in.Data = map[string]any{"area": area.ID}
	if _, err := e.CreateState(ctx, domain.KindToDo, in); err != nil {
		return fmt.Errorf("area %d spawn todo: %w", area.ID, err)
	}
	return nil
}

// actSpawnsToDo runs when a negative act links a todo: the marker makes
// completing the spawned todo record the positive act.
func (e *Engine) actSpawnsToDo(ctx context.Context, act domain.Value) error {
	in, err := spawnInput(act.Data.Todo, act.Name, act.Data, "act")
	if err != nil {
		return fmt.Errorf("act %d todo link: %w", act.ID, err)
	}
	in.PersonID = act.PersonID
	if _, err := e.CreateState(ctx, domain.KindToDo, in); err != nil {
		return fmt.Errorf("act %d spawn todo: %w", act.ID, err)
	}
	return nil
}

// todoCompleted rights the linked area and records the linked act as
// done positively.
func (e *Engine) todoCompleted(ctx context.Context, todo domain.State) error {
	if todo.Data.Area != nil {
		if _, err := e.ValueAction(ctx, domain.KindArea, *todo.Data.Area, "right"); err != nil {
			return fmt.Errorf("todo %d right area %d: %w", todo.ID, *todo.Data.Area, err)
		}
	}
	if domain.Truthy(todo.Data.Act) {
		in, err := spawnInput(todo.Data.Act, todo.Name, todo.Data, "")
		if err != nil {
			return fmt.Errorf("todo %d act link: %w", todo.ID, err)
		}
		in.PersonID = todo.PersonID
		in.Status = string(domain.StatusPositive)
		if _, err := e.CreateValue(ctx, domain.KindAct, in); err != nil {
			return fmt.Errorf("todo %d spawn act: %w", todo.ID, err)
		}
	}
	return nil
}

func (e *Engine) taskCompletesToDo(ctx context.Context, todoID int64) error {
	if _, err := e.StateAction(ctx, domain.KindToDo, todoID, "complete"); err != nil {
		return fmt.Errorf("task completes todo %d: %w", todoID, err)
	}
	return nil
}

func (e *Engine) taskUncompletesToDo(ctx context.Context, todoID int64) error {
	if _, err := e.StateAction(ctx, domain.KindToDo, todoID, "uncomplete"); err != nil {
		return fmt.Errorf("task uncompletes todo %d: %w", todoID, err)
	}
	return nil
}
