package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "b1", "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
	if err := s.Set(ctx, "b1", "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Get(ctx, "b1", "k"); err != nil || v != "v" {
		t.Errorf("Get = %q, %v", v, err)
	}
	if _, err := s.Get(ctx, "b2", "k"); !errors.Is(err, ErrNotFound) {
		t.Error("preferences leaked across browsers")
	}
	if err := s.Delete(ctx, "b1", "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "b1", "k"); !errors.Is(err, ErrNotFound) {
		t.Error("Delete did not remove value")
	}
}

func TestBool(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := Bool(ctx, s, "b", KeySkipExportConfirm, false)
	if err != nil || got {
		t.Errorf("Bool missing = %v, %v", got, err)
	}

	if err := SetBool(ctx, s, "b", KeySkipExportConfirm, true); err != nil {
		t.Fatal(err)
	}
	got, err = Bool(ctx, s, "b", KeySkipExportConfirm, false)
	if err != nil || !got {
		t.Errorf("Bool = %v, %v; want true", got, err)
	}

	_ = s.Set(ctx, "b", "garbled", "maybe")
	if got, _ := Bool(ctx, s, "b", "garbled", true); !got {
		t.Error("malformed value should read as default")
	}
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

type fakeDB struct {
	execs []string
	row   fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	s := NewPostgresStore(db)
	if _, err := s.Get(ctx, "b", "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get no rows = %v, want ErrNotFound", err)
	}

	db.row = fakeRow{value: "true"}
	if got, err := Bool(ctx, s, "b", "k", false); err != nil || !got {
		t.Errorf("Bool = %v, %v", got, err)
	}

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "b", "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "b", "k"); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 3 {
		t.Errorf("execs = %d, want 3", len(db.execs))
	}

	db.row = fakeRow{err: errors.New("conn closed")}
	if _, err := s.Get(ctx, "b", "k"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get failure = %v", err)
	}
}
