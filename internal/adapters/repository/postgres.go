package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

const (
	defaultNotifyChannel = "medsafety_changes"
	minReconnectInterval = 2 * time.Second
	maxReconnectInterval = time.Minute
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// NotificationListener is the subset of *pq.Listener that Watch uses.
type NotificationListener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// ListenerFactory opens a LISTEN connection. onDisconnect is called when the
// connection drops.
type ListenerFactory func(dsn string, onDisconnect func(error)) NotificationListener

func pqListenerFactory(dsn string, onDisconnect func(error)) NotificationListener {
	return pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if ev == pq.ListenerEventDisconnected || ev == pq.ListenerEventConnectionAttemptFailed {
				if err == nil {
					err = ErrWatchClosed
				}
				onDisconnect(err)
			}
		})
}

// PostgresStore keeps documents as JSONB rows in one table and announces
// committed writes with pg_notify.
type PostgresStore struct {
	db          *sql.DB
	dsn         string
	channel     string
	newListener ListenerFactory
	now         func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithNotifyChannel overrides the LISTEN/NOTIFY channel name.
func WithNotifyChannel(channel string) PostgresOption {
	return func(s *PostgresStore) {
		if channel != "" {
			s.channel = channel
		}
	}
}

// WithListenerFactory replaces how LISTEN connections are opened.
func WithListenerFactory(f ListenerFactory) PostgresOption {
	return func(s *PostgresStore) {
		if f != nil {
			s.newListener = f
		}
	}
}

// NewPostgresStore wraps an open database. dsn is reused for LISTEN connections.
func NewPostgresStore(db *sql.DB, dsn string, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:          db,
		dsn:         dsn,
		channel:     defaultNotifyChannel,
		newListener: pqListenerFactory,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPostgres connects, pings and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &StorageError{Backend: "postgres", Op: "connect", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &StorageError{Backend: "postgres", Op: "connect", Err: err}
	}
	s := NewPostgresStore(db, dsn, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, &StorageError{Backend: "postgres", Op: "migrate", Err: err}
	}
	return s, nil
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc json.RawMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (collection, id) DO UPDATE
			SET body = EXCLUDED.body, updated_at = now()`,
			collection, id, []byte(doc)); err != nil {
			return err
		}
		return s.notify(ctx, tx, collection, model.OpSet, id)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, collection string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`,
			collection, pq.Array(ids))
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		for _, id := range ids {
			if err := s.notify(ctx, tx, collection, model.OpDelete, id); err != nil {
				return err
			}
		}
		return nil
	})
	return int(n), err
}

func (s *PostgresStore) Replace(ctx context.Context, collection string, docs map[string]json.RawMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1`, collection); err != nil {
			return err
		}
		for id, d := range docs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO documents (collection, id, body, updated_at) VALUES ($1, $2, $3, now())`,
				collection, id, []byte(d)); err != nil {
				return err
			}
		}
		return s.notify(ctx, tx, collection, model.OpReset, "")
	})
}

// Watch opens a LISTEN connection. A dropped connection is reported once
// as a terminal Event; the listener is not left reconnecting.
func (s *PostgresStore) Watch(ctx context.Context, collection string) (<-chan Event, error) {
	lost := make(chan error, 1)
	l := s.newListener(s.dsn, func(err error) {
		select {
		case lost <- err:
		default:
		}
	})
	if err := l.Listen(s.channel); err != nil {
		_ = l.Close()
		return nil, err
	}

	out := make(chan Event, 1)
	go func() {
		defer close(out)
		defer func() { _ = l.Close() }()

		fail := func(err error) {
			select {
			case out <- Event{Err: &StorageError{Backend: s.Name(), Op: "watch", Err: err}}:
			case <-ctx.Done():
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-lost:
				fail(err)
				return
			case n, ok := <-l.NotificationChannel():
				if !ok {
					fail(ErrWatchClosed)
					return
				}
				if n == nil {
					// pq sends nil after a reconnect; notifications may have been missed.
					fail(ErrWatchClosed)
					return
				}
				var c model.Change
				if err := json.Unmarshal([]byte(n.Extra), &c); err != nil || c.Collection != collection {
					continue
				}
				select {
				case out <- Event{Change: c}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) notify(ctx context.Context, tx *sql.Tx, collection string, op model.ChangeOp, id string) error {
	payload, err := json.Marshal(model.Change{Collection: collection, Op: op, ID: id, At: s.now().UTC()})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload))
	return err
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
