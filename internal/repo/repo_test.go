package repo_test

import (
	"context"
	"errors"
	"testing"

	"choreline/internal/db"
	"choreline/internal/domain"
	"choreline/internal/migrate"
	"choreline/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func seedPerson(t *testing.T, r repo.Repo, ctx context.Context, name string) domain.Person {
	t.Helper()
	person := domain.Person{Name: name, Data: map[string]any{}}
	if err := r.InsertPerson(ctx, &person); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	return person
}

func TestPersonCRUD(t *testing.T) {
	r, ctx := newTestRepo(t)
	person := seedPerson(t, r, ctx, "sam")
	if person.ID == 0 {
		t.Fatal("insert did not assign id")
	}

	got, err := r.GetPersonByName(ctx, "sam")
	if err != nil || got.ID != person.ID {
		t.Fatalf("by name: %v %v", got, err)
	}

	person.Data = map[string]any{"color": "blue"}
	if err := r.UpdatePerson(ctx, person); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = r.GetPerson(ctx, person.ID)
	if err != nil || got.Data["color"] != "blue" {
		t.Fatalf("after update: %v %v", got.Data, err)
	}

	if err := r.DeletePerson(ctx, person.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetPerson(ctx, person.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.DeletePerson(ctx, person.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestStateRowRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	person := seedPerson(t, r, ctx, "sam")

	s := domain.State{
		PersonID: person.ID,
		Name:     "dishes",
		Status:   domain.StatusOpened,
		Created:  1000,
		Updated:  1000,
		Data: domain.Data{
			Text:  "do the dishes",
			Tasks: []domain.Task{{ID: 0, Text: "rinse"}, {ID: 1, Text: "load"}},
			Extra: map[string]any{"room": "kitchen"},
		},
	}
	if err := r.InsertState(ctx, domain.KindToDo, &s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetState(ctx, domain.KindToDo, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Data.Text != "do the dishes" || len(got.Data.Tasks) != 2 {
		t.Fatalf("data lost: %+v", got.Data)
	}
	if got.Data.Extra["room"] != "kitchen" {
		t.Fatalf("extra lost: %v", got.Data.Extra)
	}

	// Whole-row rewrite inside a transaction.
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	got.Status = domain.StatusClosed
	got.Data.End = domain.Int64(2000)
	got.Updated = 2000
	if err := r.UpdateState(ctx, tx, domain.KindToDo, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err = r.GetState(ctx, domain.KindToDo, s.ID)
	if err != nil || got.Status != domain.StatusClosed || got.Data.End == nil {
		t.Fatalf("after rewrite: %+v %v", got, err)
	}
}

func TestListFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	sam := seedPerson(t, r, ctx, "sam")
	alex := seedPerson(t, r, ctx, "alex")
	now := int64(100 * 86400)

	insert := func(personID int64, name string, status domain.StateStatus, updated int64) {
		t.Helper()
		s := domain.State{PersonID: personID, Name: name, Status: status, Created: updated, Updated: updated}
		if err := r.InsertState(ctx, domain.KindToDo, &s); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	insert(sam.ID, "fresh", domain.StatusOpened, now-3600)
	insert(sam.ID, "closed", domain.StatusClosed, now-3600)
	insert(sam.ID, "stale", domain.StatusOpened, now-30*86400)
	insert(alex.ID, "other", domain.StatusOpened, now-3600)

	// Default window is seven days.
	items, err := r.ListStates(ctx, domain.KindToDo, repo.StatusFilter{PersonID: sam.ID}, now)
	if err != nil || len(items) != 2 {
		t.Fatalf("default window: %d err=%v", len(items), err)
	}

	items, err = r.ListStates(ctx, domain.KindToDo, repo.StatusFilter{PersonID: sam.ID, Since: -1}, now)
	if err != nil || len(items) != 3 {
		t.Fatalf("unbounded: %d err=%v", len(items), err)
	}

	items, err = r.ListStates(ctx, domain.KindToDo, repo.StatusFilter{PersonID: sam.ID, Status: string(domain.StatusOpened)}, now)
	if err != nil || len(items) != 1 || items[0].Name != "fresh" {
		t.Fatalf("status filter: %+v err=%v", items, err)
	}

	items, err = r.ListStates(ctx, domain.KindToDo, repo.StatusFilter{Name: "other"}, now)
	if err != nil || len(items) != 1 || items[0].PersonID != alex.ID {
		t.Fatalf("name filter: %+v err=%v", items, err)
	}

	items, err = r.ListStates(ctx, domain.KindToDo, repo.StatusFilter{PersonID: sam.ID, Since: 60}, now)
	if err != nil || len(items) != 3 {
		t.Fatalf("wide window: %d err=%v", len(items), err)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	r, ctx := newTestRepo(t)
	if _, err := r.GetState(ctx, domain.Kind("gremlin"), 1); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := r.ListValues(ctx, domain.Kind("person"), repo.StatusFilter{}, 0); err == nil {
		t.Fatal("person is not a status kind")
	}
}
