package domain

import (
	"encoding/json"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	raw := []byte(`{"paused":true,"end":100,"text":"mow lawn","area":3,"todo":true,"color":"green","tasks":[{"id":0,"text":"edge","start":50},{"text":"rake","mood":"ugh"}]}`)
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Paused || d.End == nil || *d.End != 100 {
		t.Fatalf("lifecycle fields wrong: %+v", d.Lifecycle)
	}
	if d.Text != "mow lawn" {
		t.Fatalf("text = %q", d.Text)
	}
	if d.Area == nil || *d.Area != 3 {
		t.Fatalf("area = %v", d.Area)
	}
	if !Truthy(d.Todo) {
		t.Fatalf("todo flag lost")
	}
	if d.Extra["color"] != "green" {
		t.Fatalf("extra key lost: %v", d.Extra)
	}
	if len(d.Tasks) != 2 {
		t.Fatalf("tasks = %d", len(d.Tasks))
	}
	if d.Tasks[0].Start == nil || *d.Tasks[0].Start != 50 {
		t.Fatalf("task start = %v", d.Tasks[0].Start)
	}
	if d.Tasks[1].Extra["mood"] != "ugh" {
		t.Fatalf("task extra lost: %v", d.Tasks[1].Extra)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("remap: %v", err)
	}
	for _, key := range []string{"paused", "end", "text", "area", "todo", "color", "tasks"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("key %s dropped on marshal: %v", key, m)
		}
	}
	if _, ok := m["skipped"]; ok {
		t.Fatalf("unset flag serialized: %v", m)
	}
}

func TestDataMapOmitsZeroes(t *testing.T) {
	m := Data{Text: "water plants"}.Map()
	if len(m) != 1 || m["text"] != "water plants" {
		t.Fatalf("map = %v", m)
	}
}

func TestTaskActive(t *testing.T) {
	var task Task
	if task.Active() {
		t.Fatal("unstarted task active")
	}
	task.Start = Int64(10)
	if !task.Active() {
		t.Fatal("started task not active")
	}
	task.End = Int64(20)
	if task.Active() {
		t.Fatal("ended task active")
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, 1, int64(2), 3.0, "yes", map[string]any{}} {
		if !Truthy(v) {
			t.Fatalf("expected truthy: %v", v)
		}
	}
	for _, v := range []any{false, 0, int64(0), 0.0, "", "false", "0", nil} {
		if Truthy(v) {
			t.Fatalf("expected falsy: %v", v)
		}
	}
}

func TestDataFromMapRejectsBadTypes(t *testing.T) {
	if _, err := DataFromMap(map[string]any{"end": "soon"}); err == nil {
		t.Fatal("expected error for string end")
	}
	if _, err := DataFromMap(map[string]any{"tasks": "nope"}); err == nil {
		t.Fatal("expected error for scalar tasks")
	}
}
