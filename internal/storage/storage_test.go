package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "plannerbot/pkg/logx"
)

func openTestStore(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	return st
}

func TestStoreDrivers(t *testing.T) {
	tests := []struct {
		driver string
		path   func(dir string) string
	}{
		{driver: "memory", path: func(string) string { return "" }},
		{driver: "file", path: func(dir string) string { return filepath.Join(dir, "store") }},
		{driver: "sqlite", path: func(dir string) string { return filepath.Join(dir, "planner.db") }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openTestStore(t, tt.driver, tt.path(t.TempDir()))
			defer st.Close()

			if _, ok, err := st.Get(ctx, "scheduled_reminders"); err != nil || ok {
				t.Fatalf("Get on empty store = ok:%v err:%v, want miss", ok, err)
			}
			if err := st.Set(ctx, "scheduled_reminders", []byte(`[{"id":"a"}]`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := st.Set(ctx, "scheduled_reminders", []byte(`[]`)); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, ok, err := st.Get(ctx, "scheduled_reminders")
			if err != nil || !ok {
				t.Fatalf("Get after Set = ok:%v err:%v", ok, err)
			}
			if string(v) != "[]" {
				t.Fatalf("value = %q, want []", v)
			}
			if err := st.Set(ctx, "../escape", []byte("x")); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("Set with path key err = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestDurableDriversSurviveReopen(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "store.db")

			st := openTestStore(t, driver, path)
			if err := st.Set(ctx, "notification_settings", []byte(`{"enabled":false}`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			st = openTestStore(t, driver, path)
			defer st.Close()
			v, ok, err := st.Get(ctx, "notification_settings")
			if err != nil || !ok {
				t.Fatalf("Get after reopen = ok:%v err:%v", ok, err)
			}
			if string(v) != `{"enabled":false}` {
				t.Fatalf("value = %q", v)
			}
		})
	}
}

func TestFileStoreRemovesStaleTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	stale := filepath.Join(dir, "scheduled_reminders.json.tmp")
	if err := os.WriteFile(stale, []byte("[{"), 0o600); err != nil {
		t.Fatal(err)
	}
	st := openTestStore(t, "file", dir)
	defer st.Close()
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale temp file still present: %v", err)
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	t.Parallel()
	st := NewMemory()
	_ = st.Close()
	if err := st.Set(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Set after Close err = %v, want ErrClosed", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
