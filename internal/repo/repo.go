package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"choreline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// SinceDefault is the lookback window, in days, applied to status
// entity lists when no explicit window is given.
const SinceDefault = 7

// StatusFilter narrows status entity lists. Since is in days; zero
// means the default window, negative means no window at all.
type StatusFilter struct {
	PersonID int64
	Status   string
	Name     string
	Since    int
}

func validKind(kind domain.Kind) error {
	switch kind {
	case domain.KindArea, domain.KindAct, domain.KindToDo, domain.KindRoutine:
		return nil
	}
	return fmt.Errorf("unknown status kind %q", kind)
}

func marshalData(data domain.Data) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(raw), nil
}

func unmarshalData(raw string) (domain.Data, error) {
	var data domain.Data
	if raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return data, fmt.Errorf("unmarshal data: %w", err)
	}
	return data, nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(raw), nil
}

func unmarshalMap(raw string) (map[string]any, error) {
	m := map[string]any{}
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return m, nil
}

func (r Repo) InsertPerson(ctx context.Context, p *domain.Person) error {
	payload, err := marshalMap(p.Data)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO person(name,data) VALUES (?,?)`, p.Name, payload)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (r Repo) GetPerson(ctx context.Context, id int64) (domain.Person, error) {
	var p domain.Person
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,data FROM person WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &payload)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Data, err = unmarshalMap(payload)
	return p, err
}

func (r Repo) GetPersonByName(ctx context.Context, name string) (domain.Person, error) {
	var p domain.Person
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,data FROM person WHERE name=?`, name).
		Scan(&p.ID, &p.Name, &payload)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Data, err = unmarshalMap(payload)
	return p, err
}

func (r Repo) ListPersons(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,data FROM person ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Person
	for rows.Next() {
		var p domain.Person
		var payload string
		if err := rows.Scan(&p.ID, &p.Name, &payload); err != nil {
			return nil, err
		}
		if p.Data, err = unmarshalMap(payload); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePerson(ctx context.Context, p domain.Person) error {
	payload, err := marshalMap(p.Data)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE person SET name=?,data=? WHERE id=?`, p.Name, payload, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeletePerson(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM person WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTemplate(ctx context.Context, t *domain.Template) error {
	payload, err := marshalMap(t.Data)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO template(name,kind,data) VALUES (?,?,?)`,
		t.Name, t.Kind, payload)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id int64) (domain.Template, error) {
	var t domain.Template
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,kind,data FROM template WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Kind, &payload)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Data, err = unmarshalMap(payload)
	return t, err
}

func (r Repo) ListTemplates(ctx context.Context, kind domain.Kind) ([]domain.Template, error) {
	query := `SELECT id,name,kind,data FROM template`
	var args []any
	if kind != "" {
		query += ` WHERE kind=?`
		args = append(args, kind)
	}
	query += ` ORDER BY kind, name`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Template
	for rows.Next() {
		var t domain.Template
		var payload string
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &payload); err != nil {
			return nil, err
		}
		if t.Data, err = unmarshalMap(payload); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTemplate(ctx context.Context, t domain.Template) error {
	payload, err := marshalMap(t.Data)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE template SET name=?,kind=?,data=? WHERE id=?`,
		t.Name, t.Kind, payload, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM template WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertValue(ctx context.Context, kind domain.Kind, v *domain.Value) error {
	if err := validKind(kind); err != nil {
		return err
	}
	payload, err := marshalData(v.Data)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(person_id,name,status,created,updated,data) VALUES (?,?,?,?,?,?)`, kind),
		v.PersonID, v.Name, v.Status, v.Created, v.Updated, payload)
	if err != nil {
		return err
	}
	v.ID, err = res.LastInsertId()
	return err
}

func (r Repo) GetValue(ctx context.Context, kind domain.Kind, id int64) (domain.Value, error) {
	var v domain.Value
	if err := validKind(kind); err != nil {
		return v, err
	}
	var payload string
	err := r.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id,person_id,name,status,created,updated,data FROM %s WHERE id=?`, kind), id).
		Scan(&v.ID, &v.PersonID, &v.Name, &v.Status, &v.Created, &v.Updated, &payload)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	v.Data, err = unmarshalData(payload)
	return v, err
}

func (r Repo) ListValues(ctx context.Context, kind domain.Kind, f StatusFilter, now int64) ([]domain.Value, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	where, args := statusWhere(f, now)
	rows, err := r.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT id,person_id,name,status,created,updated,data FROM %s %s ORDER BY created DESC, id DESC`, kind, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Value
	for rows.Next() {
		var v domain.Value
		var payload string
		if err := rows.Scan(&v.ID, &v.PersonID, &v.Name, &v.Status, &v.Created, &v.Updated, &payload); err != nil {
			return nil, err
		}
		if v.Data, err = unmarshalData(payload); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) UpdateValue(ctx context.Context, tx *sql.Tx, kind domain.Kind, v domain.Value) error {
	if err := validKind(kind); err != nil {
		return err
	}
	payload, err := marshalData(v.Data)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET person_id=?,name=?,status=?,created=?,updated=?,data=? WHERE id=?`, kind),
		v.PersonID, v.Name, v.Status, v.Created, v.Updated, payload, v.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteValue(ctx context.Context, kind domain.Kind, id int64) error {
	if err := validKind(kind); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, kind), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertState(ctx context.Context, kind domain.Kind, s *domain.State) error {
	if err := validKind(kind); err != nil {
		return err
	}
	payload, err := marshalData(s.Data)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(person_id,name,status,created,updated,data) VALUES (?,?,?,?,?,?)`, kind),
		s.PersonID, s.Name, s.Status, s.Created, s.Updated, payload)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (r Repo) GetState(ctx context.Context, kind domain.Kind, id int64) (domain.State, error) {
	var s domain.State
	if err := validKind(kind); err != nil {
		return s, err
	}
	var payload string
	err := r.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id,person_id,name,status,created,updated,data FROM %s WHERE id=?`, kind), id).
		Scan(&s.ID, &s.PersonID, &s.Name, &s.Status, &s.Created, &s.Updated, &payload)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Data, err = unmarshalData(payload)
	return s, err
}

func (r Repo) ListStates(ctx context.Context, kind domain.Kind, f StatusFilter, now int64) ([]domain.State, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	where, args := statusWhere(f, now)
	rows, err := r.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT id,person_id,name,status,created,updated,data FROM %s %s ORDER BY created DESC, id DESC`, kind, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.State
	for rows.Next() {
		var s domain.State
		var payload string
		if err := rows.Scan(&s.ID, &s.PersonID, &s.Name, &s.Status, &s.Created, &s.Updated, &payload); err != nil {
			return nil, err
		}
		if s.Data, err = unmarshalData(payload); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateState(ctx context.Context, tx *sql.Tx, kind domain.Kind, s domain.State) error {
	if err := validKind(kind); err != nil {
		return err
	}
	payload, err := marshalData(s.Data)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET person_id=?,name=?,status=?,created=?,updated=?,data=? WHERE id=?`, kind),
		s.PersonID, s.Name, s.Status, s.Created, s.Updated, payload, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteState(ctx context.Context, kind domain.Kind, id int64) error {
	return r.DeleteValue(ctx, kind, id)
}

// statusWhere builds the shared filter clause for value and state
// lists. Since counts days back from now over the updated column.
func statusWhere(f StatusFilter, now int64) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.PersonID != 0 {
		clauses = append(clauses, "person_id=?")
		args = append(args, f.PersonID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Name != "" {
		clauses = append(clauses, "name=?")
		args = append(args, f.Name)
	}
	since := f.Since
	if since == 0 {
		since = SinceDefault
	}
	if since > 0 {
		clauses = append(clauses, "updated>?")
		args = append(args, now-int64(since)*86400)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
