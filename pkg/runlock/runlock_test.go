package runlock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

// fakeDB grants a lock key to one holder at a time.
type fakeDB struct {
	mu      sync.Mutex
	holders map[string]string
	execs   []string
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if strings.Contains(sql, "INSERT INTO app_locks") {
		if holder, ok := f.holders[key]; ok && holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holders[key] = token
		return fakeRow{key: key}
	}
	if f.holders[key] != token {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{key: key}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	key, token := args[0].(string), args[1].(string)
	if f.holders[key] == token {
		delete(f.holders, key)
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func TestClient_SecondHolderIsBusy(t *testing.T) {
	db := &fakeDB{holders: map[string]string{}}
	c := New(db, Options{TTL: time.Minute})

	err := c.WithLease(context.Background(), IndexKey, func(ctx context.Context) error {
		return c.WithLease(ctx, IndexKey, func(context.Context) error {
			t.Fatalf("nested lease was granted")
			return nil
		})
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("WithLease() error = %v, want ErrBusy", err)
	}
	if len(db.holders) != 0 {
		t.Fatalf("lease not released: %v", db.holders)
	}
}

func TestClient_ReleasesAfterError(t *testing.T) {
	db := &fakeDB{holders: map[string]string{}}
	c := New(db, Options{TTL: time.Minute, TokenPrefix: "worker-"})
	boom := errors.New("boom")

	var token string
	err := c.WithLease(context.Background(), IndexKey, func(ctx context.Context) error {
		token = db.holders[IndexKey]
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithLease() error = %v, want %v", err, boom)
	}
	if !strings.HasPrefix(token, "worker-") {
		t.Fatalf("token %q lacks prefix", token)
	}
	if len(db.execs) != 1 || len(db.holders) != 0 {
		t.Fatalf("lease not released: execs=%d holders=%v", len(db.execs), db.holders)
	}
}

func TestClient_WaitsForHolder(t *testing.T) {
	db := &fakeDB{holders: map[string]string{IndexKey: "other"}}
	c := New(db, Options{TTL: time.Minute, Wait: true, WaitInterval: 5 * time.Millisecond})

	go func() {
		time.Sleep(20 * time.Millisecond)
		db.mu.Lock()
		delete(db.holders, IndexKey)
		db.mu.Unlock()
	}()

	ran := false
	err := c.WithLease(context.Background(), IndexKey, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WithLease() = %v, ran = %v", err, ran)
	}
}

func TestLocal(t *testing.T) {
	l := NewLocal()
	err := l.WithLease(context.Background(), IndexKey, func(ctx context.Context) error {
		return l.WithLease(ctx, IndexKey, func(context.Context) error { return nil })
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("nested WithLease() error = %v, want ErrBusy", err)
	}
	if err := l.WithLease(context.Background(), IndexKey, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("WithLease() after release error = %v", err)
	}
}

func TestSleepWithJitter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithJitter(ctx, time.Hour, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepWithJitter() error = %v", err)
	}
}
