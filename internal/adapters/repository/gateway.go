package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"
)

// Gateway offers one contract over the reports and users collections
// whichever backend is active. Every mutation is durable in the backend
// when the call returns; nothing is cached.
type Gateway struct {
	backend Backend
	now     func() time.Time
	newID   func() string
	log     logger.Logger

	// localMu serializes read-modify-write cycles on the local blobs.
	localMu sync.Mutex
}

// NewGateway builds a Gateway over backend.
func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend returns the backend chosen at construction.
func (g *Gateway) Backend() Backend { return g.backend }

// SaveReport persists r, minting an id and creation stamps when absent.
// The stored record is returned. No validation happens here.
func (g *Gateway) SaveReport(ctx context.Context, r model.Report) (model.Report, error) {
	r = r.Clone()
	stamp := model.FormatInstant(g.now())
	if r.ID == "" {
		r.ID = g.newID()
	}
	if r.Timestamp == "" {
		r.Timestamp = stamp
	}
	if r.CreatedAt == "" {
		r.CreatedAt = r.Timestamp
	}

	err := g.do("save_report", func() error {
		doc, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return g.set(ctx, model.CollectionReports, r.ID, doc)
	})
	if err != nil {
		return model.Report{}, err
	}
	metrics.RecordReportSaved()
	return r, nil
}

// GetAllReports returns every report, newest timestamp first. Fields with
// the wrong JSON type are coerced or left empty and logged; only documents
// that are not JSON objects are skipped.
func (g *Gateway) GetAllReports(ctx context.Context) ([]model.Report, error) {
	var out []model.Report
	err := g.do("get_all_reports", func() error {
		docs, err := g.list(ctx, model.CollectionReports)
		if err != nil {
			return err
		}
		out = decodeAll[model.Report](ctx, g.log, model.CollectionReports, docs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	model.SortNewestFirst(out)
	metrics.UpdateReportsTotal(len(out))
	return out, nil
}

// GetReport returns one report or ErrNotFound.
func (g *Gateway) GetReport(ctx context.Context, id string) (model.Report, error) {
	var r model.Report
	err := g.do("get_report", func() error {
		doc, err := g.get(ctx, model.CollectionReports, id)
		if err != nil {
			return err
		}
		var problems []string
		r, problems, err = decodeDocument[model.Report](doc)
		if err != nil {
			return fmt.Errorf("report %s: %w", id, err)
		}
		logProblems(ctx, g.log, model.CollectionReports, id, problems)
		return nil
	})
	return r, err
}

// UpdateReport merges patch into the stored report and stamps updatedAt.
// The id cannot be changed. Returns ErrNotFound for an unknown id and
// ErrInvalidPatch when a field has the wrong JSON type.
func (g *Gateway) UpdateReport(ctx context.Context, id string, patch map[string]any) (model.Report, error) {
	var (
		updated  model.Report
		patchErr error
	)
	err := g.do("update_report", func() error {
		return g.modify(ctx, model.CollectionReports, id, func(doc json.RawMessage) (json.RawMessage, error) {
			current, problems, err := decodeDocument[model.Report](doc)
			if err != nil {
				return nil, fmt.Errorf("report %s: %w", id, err)
			}
			logProblems(ctx, g.log, model.CollectionReports, id, problems)
			if updated, patchErr = mergeReport(current, patch); patchErr != nil {
				return nil, nil
			}
			updated.UpdatedAt = model.FormatInstant(g.now())
			return json.Marshal(updated)
		})
	})
	if patchErr != nil {
		return model.Report{}, patchErr
	}
	if err != nil {
		return model.Report{}, err
	}
	return updated, nil
}

// DeleteReport removes a report. A missing id is a no-op.
func (g *Gateway) DeleteReport(ctx context.Context, id string) error {
	_, err := g.BulkDeleteReports(ctx, []string{id})
	return err
}

// BulkDeleteReports removes every listed report and returns how many existed.
func (g *Gateway) BulkDeleteReports(ctx context.Context, ids []string) (int, error) {
	var n int
	err := g.do("delete_reports", func() error {
		var err error
		n, err = g.del(ctx, model.CollectionReports, ids...)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordReportsDeleted(n)
	return n, nil
}

// GetAllUsers returns every user account.
func (g *Gateway) GetAllUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	err := g.do("get_all_users", func() error {
		docs, err := g.list(ctx, model.CollectionUsers)
		if err != nil {
			return err
		}
		out = decodeAll[model.User](ctx, g.log, model.CollectionUsers, docs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.UpdateUsersTotal(len(out))
	return out, nil
}

// SaveUser persists u, minting an id when absent.
func (g *Gateway) SaveUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = g.newID()
	}
	if u.CreatedAt == "" {
		u.CreatedAt = model.FormatInstant(g.now())
	}
	err := g.do("save_user", func() error {
		doc, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return g.set(ctx, model.CollectionUsers, u.ID, doc)
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// DeleteUser removes a user by id. Deleting an unknown id is not an error.
func (g *Gateway) DeleteUser(ctx context.Context, id string) error {
	var n int
	err := g.do("delete_user", func() error {
		var err error
		n, err = g.del(ctx, model.CollectionUsers, id)
		return err
	})
	if err == nil && n > 0 {
		metrics.RecordUserDeleted()
	}
	return err
}

// Restore replaces both collections. Records without an id get one. The
// replacement is not atomic: reports are written first, and a failure while
// writing users leaves the new reports beside the old users.
func (g *Gateway) Restore(ctx context.Context, reports []model.Report, users []model.User) error {
	reportDocs := make([]json.RawMessage, 0, len(reports))
	for _, r := range reports {
		if r.ID == "" {
			r.ID = g.newID()
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return err
		}
		reportDocs = append(reportDocs, doc)
	}
	userDocs := make([]json.RawMessage, 0, len(users))
	for _, u := range users {
		if u.ID == "" {
			u.ID = g.newID()
		}
		doc, err := json.Marshal(u)
		if err != nil {
			return err
		}
		userDocs = append(userDocs, doc)
	}

	if err := g.do("restore_reports", func() error {
		return g.replace(ctx, model.CollectionReports, reportDocs)
	}); err != nil {
		return err
	}
	return g.do("restore_users", func() error {
		return g.replace(ctx, model.CollectionUsers, userDocs)
	})
}

// WatchReports streams committed changes to the reports collection.
// The local backend has no push mechanism and returns ErrPushUnsupported.
func (g *Gateway) WatchReports(ctx context.Context) (<-chan Event, error) {
	if !g.backend.SupportsPush() {
		return nil, ErrPushUnsupported
	}
	ch, err := g.backend.remote.Watch(ctx, model.CollectionReports)
	if err != nil {
		metrics.RecordStorageError(g.backend.Name(), "watch_reports")
		return nil, storageErr(g.backend.Name(), "watch_reports", err)
	}
	return ch, nil
}

// Close releases the remote client, if any.
func (g *Gateway) Close() error {
	if g.backend.kind == KindRemote {
		return g.backend.remote.Close()
	}
	return nil
}

// do times one backend call and turns backend failures into StorageError.
// ErrNotFound passes through untouched.
func (g *Gateway) do(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	name := g.backend.Name()
	metrics.RecordStorageOp(name, op, float64(time.Since(start).Microseconds())/1000.0)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	metrics.RecordStorageError(name, op)
	return storageErr(name, op, err)
}

func decodeAll[T any](ctx context.Context, log logger.Logger, collection string, docs []json.RawMessage) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, problems, err := decodeDocument[T](d)
		if err != nil {
			log.Warn(ctx, "skipping undecodable document",
				logger.String("collection", collection),
				logger.String("id", docID(d)),
				logger.Error(err))
			continue
		}
		logProblems(ctx, log, collection, docID(d), problems)
		out = append(out, v)
	}
	return out
}

// logProblems warns once per field that had to be coerced or emptied.
func logProblems(ctx context.Context, log logger.Logger, collection, id string, problems []string) {
	for _, p := range problems {
		log.Warn(ctx, "mistyped document field",
			logger.String("collection", collection),
			logger.String("id", id),
			logger.String("problem", p))
	}
}
