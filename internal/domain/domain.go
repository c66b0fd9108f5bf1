package domain

import (
	"encoding/json"
	"fmt"
)

// Kind identifies an entity table.
type Kind string

const (
	KindPerson   Kind = "person"
	KindTemplate Kind = "template"
	KindArea     Kind = "area"
	KindAct      Kind = "act"
	KindToDo     Kind = "todo"
	KindRoutine  Kind = "routine"
)

// ValueKinds are the kinds whose status is positive/negative.
var ValueKinds = []Kind{KindArea, KindAct}

// StateKinds are the kinds whose status is opened/closed.
var StateKinds = []Kind{KindToDo, KindRoutine}

// ValueStatus is the binary status of an Area or Act.
type ValueStatus string

const (
	StatusPositive ValueStatus = "positive"
	StatusNegative ValueStatus = "negative"
)

// StateStatus is the open/closed status of a ToDo or Routine.
type StateStatus string

const (
	StatusOpened StateStatus = "opened"
	StatusClosed StateStatus = "closed"
)

type Person struct {
	ID   int64          `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

type Template struct {
	ID   int64          `json:"id"`
	Name string         `json:"name"`
	Kind Kind           `json:"kind" enum:"area,act,todo,routine"`
	Data map[string]any `json:"data"`
}

// Value is an Area or Act row.
type Value struct {
	ID       int64       `json:"id"`
	PersonID int64       `json:"person_id"`
	Name     string      `json:"name"`
	Status   ValueStatus `json:"status" enum:"positive,negative"`
	Created  int64       `json:"created"`
	Updated  int64       `json:"updated"`
	Data     Data        `json:"data"`
}

// State is a ToDo or Routine row.
type State struct {
	ID       int64       `json:"id"`
	PersonID int64       `json:"person_id"`
	Name     string      `json:"name"`
	Status   StateStatus `json:"status" enum:"opened,closed"`
	Created  int64       `json:"created"`
	Updated  int64       `json:"updated"`
	Data     Data        `json:"data"`
}

// Lifecycle holds the closure markers of a state entity. Skipped and
// Expired stay set after uncomplete; only their own inverse clears them.
type Lifecycle struct {
	Paused  bool   `json:"paused,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Expired bool   `json:"expired,omitempty"`
	End     *int64 `json:"end,omitempty"`
}

// Task is one ordered step embedded in a Routine's data. Tasks are never
// persisted on their own; the whole Routine row is rewritten.
type Task struct {
	ID       int    `json:"id"`
	Text     string `json:"text,omitempty"`
	Todo     *int64 `json:"todo,omitempty"`
	Start    *int64 `json:"start,omitempty"`
	End      *int64 `json:"end,omitempty"`
	Paused   bool   `json:"paused,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Notified int64  `json:"notified,omitempty"`
	Delay    *int64 `json:"delay,omitempty"`
	Interval *int64 `json:"interval,omitempty"`

	Extra map[string]any `json:"-"`
}

// Active reports whether the task is the one currently underway.
func (t Task) Active() bool {
	return t.Start != nil && t.End == nil
}

// Data is the open payload column of every entity. Known fields are
// typed; anything else a caller or template puts there survives in Extra.
type Data struct {
	Lifecycle

	Start    *int64 `json:"start,omitempty"`
	Delay    *int64 `json:"delay,omitempty"`
	Interval *int64 `json:"interval,omitempty"`
	Expires  *int64 `json:"expires,omitempty"`
	Notified int64  `json:"notified,omitempty"`

	Text string `json:"text,omitempty"`

	// Linkage. Area is always an id. Todo and Act may be an id, a
	// template payload map, or a boolean flag.
	Area *int64 `json:"area,omitempty"`
	Todo any    `json:"todo,omitempty"`
	Act  any    `json:"act,omitempty"`

	Todos bool   `json:"todos,omitempty"`
	Tasks []Task `json:"tasks,omitempty"`

	Extra map[string]any `json:"-"`
}

func (d Data) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range d.Extra {
		out[k] = v
	}
	setBool(out, "paused", d.Paused)
	setBool(out, "skipped", d.Skipped)
	setBool(out, "expired", d.Expired)
	setInt(out, "end", d.End)
	setInt(out, "start", d.Start)
	setInt(out, "delay", d.Delay)
	setInt(out, "interval", d.Interval)
	setInt(out, "expires", d.Expires)
	if d.Notified != 0 {
		out["notified"] = d.Notified
	}
	if d.Text != "" {
		out["text"] = d.Text
	}
	if d.Area != nil {
		out["area"] = *d.Area
	}
	if d.Todo != nil {
		out["todo"] = d.Todo
	}
	if d.Act != nil {
		out["act"] = d.Act
	}
	setBool(out, "todos", d.Todos)
	if d.Tasks != nil {
		out["tasks"] = d.Tasks
	}
	return json.Marshal(out)
}

func (d *Data) UnmarshalJSON(raw []byte) error {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	parsed, err := DataFromMap(m)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DataFromMap builds typed Data from an open map, keeping unknown keys
// in Extra.
func DataFromMap(m map[string]any) (Data, error) {
	var d Data
	for key, v := range m {
		var err error
		switch key {
		case "paused":
			d.Paused = truthy(v)
		case "skipped":
			d.Skipped = truthy(v)
		case "expired":
			d.Expired = truthy(v)
		case "end":
			d.End, err = intPtr(v)
		case "start":
			d.Start, err = intPtr(v)
		case "delay":
			d.Delay, err = intPtr(v)
		case "interval":
			d.Interval, err = intPtr(v)
		case "expires":
			d.Expires, err = intPtr(v)
		case "notified":
			var p *int64
			if p, err = intPtr(v); err == nil && p != nil {
				d.Notified = *p
			}
		case "text":
			d.Text = fmt.Sprint(v)
		case "area":
			d.Area, err = intPtr(v)
		case "todo":
			d.Todo = v
		case "act":
			d.Act = v
		case "todos":
			d.Todos = truthy(v)
		case "tasks":
			d.Tasks, err = tasksFromAny(v)
		default:
			if d.Extra == nil {
				d.Extra = map[string]any{}
			}
			d.Extra[key] = v
		}
		if err != nil {
			return Data{}, fmt.Errorf("data field %s: %w", key, err)
		}
	}
	return d, nil
}

// Map flattens the typed data back to the open map form used in event
// payloads.
func (d Data) Map() map[string]any {
	raw, _ := json.Marshal(d)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func (t Task) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range t.Extra {
		out[k] = v
	}
	out["id"] = t.ID
	if t.Text != "" {
		out["text"] = t.Text
	}
	setInt(out, "todo", t.Todo)
	setInt(out, "start", t.Start)
	setInt(out, "end", t.End)
	setBool(out, "paused", t.Paused)
	setBool(out, "skipped", t.Skipped)
	if t.Notified != 0 {
		out["notified"] = t.Notified
	}
	setInt(out, "delay", t.Delay)
	setInt(out, "interval", t.Interval)
	return json.Marshal(out)
}

func (t *Task) UnmarshalJSON(raw []byte) error {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	parsed, err := taskFromMap(m)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func taskFromMap(m map[string]any) (Task, error) {
	var t Task
	for key, v := range m {
		var err error
		switch key {
		case "id":
			var p *int64
			if p, err = intPtr(v); err == nil && p != nil {
				t.ID = int(*p)
			}
		case "text":
			t.Text = fmt.Sprint(v)
		case "todo":
			t.Todo, err = intPtr(v)
		case "start":
			t.Start, err = intPtr(v)
		case "end":
			t.End, err = intPtr(v)
		case "paused":
			t.Paused = truthy(v)
		case "skipped":
			t.Skipped = truthy(v)
		case "notified":
			var p *int64
			if p, err = intPtr(v); err == nil && p != nil {
				t.Notified = *p
			}
		case "delay":
			t.Delay, err = intPtr(v)
		case "interval":
			t.Interval, err = intPtr(v)
		default:
			if t.Extra == nil {
				t.Extra = map[string]any{}
			}
			t.Extra[key] = v
		}
		if err != nil {
			return Task{}, fmt.Errorf("task field %s: %w", key, err)
		}
	}
	return t, nil
}

func tasksFromAny(v any) ([]Task, error) {
	if typed, ok := v.([]Task); ok {
		return typed, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("tasks must be a list")
	}
	tasks := make([]Task, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("task %d must be a map", i)
		}
		t, err := taskFromMap(m)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func setBool(out map[string]any, key string, v bool) {
	if v {
		out[key] = true
	}
}

func setInt(out map[string]any, key string, v *int64) {
	if v != nil {
		out[key] = *v
	}
}

// Truthy reports whether an open JSON value counts as set, matching
// loose boolean semantics for flags carried in data blobs.
func Truthy(v any) bool { return truthy(v) }

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case int64:
		return x != 0
	case int:
		return x != 0
	case string:
		return x != "" && x != "false" && x != "0"
	case nil:
		return false
	default:
		return true
	}
}

func intPtr(v any) (*int64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		n := int64(x)
		return &n, nil
	case int64:
		return &x, nil
	case int:
		n := int64(x)
		return &n, nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
}

// Int64 returns a pointer for literal timestamps and ids.
func Int64(v int64) *int64 { return &v }
