package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"choreline/internal/config"
	"choreline/internal/db"
	"choreline/internal/domain"
	"choreline/internal/engine"
	"choreline/internal/events"
	"choreline/internal/migrate"
	"choreline/internal/repo"
	chorelinesdk "choreline/sdk/go"
)

type testServer struct {
	URL    string
	Engine *engine.Engine
	SDK    *chorelinesdk.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	e := &engine.Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn},
		Events: events.Writer{Now: clock},
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.Default(),
		Now:    clock,
	}
	handler, err := New(Config{Engine: e})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	url := "http://" + ln.Addr().String()
	return &testServer{URL: url, Engine: e, SDK: chorelinesdk.New(url)}
}

func (s *testServer) seedPerson(t *testing.T, name string) domain.Person {
	t.Helper()
	person := domain.Person{Name: name, Data: map[string]any{}}
	if err := s.Engine.Repo.InsertPerson(context.Background(), &person); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	return person
}

func patchJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPatch, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestToDoLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	person := srv.seedPerson(t, "sam")
	ctx := context.Background()

	var todo domain.State
	err := srv.SDK.Create(ctx, domain.KindToDo, map[string]any{
		"person_id": person.ID,
		"name":      "dishes",
		"data":      map[string]any{"text": "do the dishes"},
	}, &todo)
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}
	if todo.ID == 0 || todo.Status != domain.StatusOpened {
		t.Fatalf("created todo: %+v", todo)
	}

	updated, err := srv.SDK.Action(ctx, domain.KindToDo, todo.ID, "complete")
	if err != nil || !updated {
		t.Fatalf("complete: updated=%v err=%v", updated, err)
	}
	updated, err = srv.SDK.Action(ctx, domain.KindToDo, todo.ID, "complete")
	if err != nil || updated {
		t.Fatalf("second complete: updated=%v err=%v", updated, err)
	}

	got, err := srv.SDK.GetState(ctx, domain.KindToDo, todo.ID)
	if err != nil || got.Status != domain.StatusClosed {
		t.Fatalf("after complete: %v %v", got.Status, err)
	}

	items, err := srv.SDK.ListStates(ctx, domain.KindToDo, chorelinesdk.ListFilter{
		PersonID: person.ID,
		Status:   string(domain.StatusClosed),
	})
	if err != nil || len(items) != 1 {
		t.Fatalf("list closed: %d err=%v", len(items), err)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)
	person := srv.seedPerson(t, "sam")

	resp, err := http.Get(srv.URL + "/todo/999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}

	var todo domain.State
	if err := srv.SDK.Create(context.Background(), domain.KindToDo, map[string]any{
		"person_id": person.ID,
		"name":      "mop",
	}, &todo); err != nil {
		t.Fatalf("create todo: %v", err)
	}
	badResp, _ := patchJSON(t, srv.URL+"/todo/"+strconv.FormatInt(todo.ID, 10)+"/zap", nil)
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d", badResp.StatusCode)
	}
}

func TestRoutineAndTaskOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	person := srv.seedPerson(t, "sam")
	ctx := context.Background()

	var routine domain.State
	err := srv.SDK.Create(ctx, domain.KindRoutine, map[string]any{
		"person_id": person.ID,
		"name":      "bedtime",
		"data": map[string]any{
			"tasks": []any{
				map[string]any{"text": "brush teeth"},
				map[string]any{"text": "lights out"},
			},
		},
	}, &routine)
	if err != nil {
		t.Fatalf("create routine: %v", err)
	}
	if len(routine.Data.Tasks) != 2 || !routine.Data.Tasks[0].Active() {
		t.Fatalf("sequencer did not start: %+v", routine.Data.Tasks)
	}

	updated, err := srv.SDK.TaskAction(ctx, routine.ID, 0, "complete")
	if err != nil || !updated {
		t.Fatalf("task complete: updated=%v err=%v", updated, err)
	}
	got, err := srv.SDK.GetState(ctx, domain.KindRoutine, routine.ID)
	if err != nil {
		t.Fatalf("get routine: %v", err)
	}
	if !got.Data.Tasks[1].Active() {
		t.Fatalf("second task should be underway: %+v", got.Data.Tasks)
	}

	open, err := srv.SDK.OpenRoutines(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("open routines: %d err=%v", len(open), err)
	}

	if _, err := srv.SDK.TaskAction(ctx, routine.ID, 9, "complete"); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestBulkRemindOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	person := srv.seedPerson(t, "sam")
	ctx := context.Background()

	var todo domain.State
	if err := srv.SDK.Create(ctx, domain.KindToDo, map[string]any{
		"person_id": person.ID,
		"name":      "homework",
	}, &todo); err != nil {
		t.Fatalf("create todo: %v", err)
	}

	updated, err := srv.SDK.RemindTodos(ctx, map[string]any{"person": "sam"})
	if err != nil || !updated {
		t.Fatalf("bulk remind: updated=%v err=%v", updated, err)
	}

	resp, body := patchJSON(t, srv.URL+"/todo", map[string]any{"todos": map[string]any{"person": "nobody"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown person status = %d body=%v", resp.StatusCode, body)
	}
}
