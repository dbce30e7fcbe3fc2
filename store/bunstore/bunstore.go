// Package bunstore implements the DocumentStore collaborator on top of Bun
// with a single documents table: schemaless JSON payloads keyed by
// (collection, doc_key).
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	featmy "github.com/AFJoao/FEATMY-V2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:doc"`

	Collection string    `bun:"collection,pk"`
	Key        string    `bun:"doc_key,pk"`
	Data       []byte    `bun:"data,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

// Store is a DocumentStore backed by a bun.DB.
type Store struct {
	db    *bun.DB
	clock func() time.Time
}

var _ featmy.DocumentStore = (*Store)(nil)

// New wraps an existing bun.DB.
func New(db *bun.DB) *Store {
	return &Store{
		db:    db,
		clock: time.Now,
	}
}

// Open connects to a SQLite database (file path or ":memory:") and returns a
// ready Store.
func Open(dsn string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	return New(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

// DB exposes the underlying bun handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Init creates the documents table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*documentRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create documents table")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, key string) (featmy.Document, error) {
	return s.getTx(ctx, s.db, collection, key)
}

func (s *Store) getTx(ctx context.Context, tx bun.IDB, collection, key string) (featmy.Document, error) {
	row := &documentRow{}
	err := tx.NewSelect().
		Model(row).
		Where("?TableAlias.collection = ?", collection).
		Where("?TableAlias.doc_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, featmy.NewRecordNotFound(collection, key)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read document")
	}

	doc := featmy.Document{}
	if err := json.Unmarshal(row.Data, &doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode stored document")
	}
	return doc, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, doc featmy.Document) error {
	return s.setTx(ctx, s.db, collection, key, doc)
}

func (s *Store) setTx(ctx context.Context, tx bun.IDB, collection, key string, doc featmy.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode document")
	}

	row := &documentRow{
		Collection: collection,
		Key:        key,
		Data:       raw,
		UpdatedAt:  s.clock(),
	}

	_, err = tx.NewInsert().
		Model(row).
		On("CONFLICT (collection, doc_key) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write document")
	}
	return nil
}

// Update merges fields into an existing document, failing if it is absent.
func (s *Store) Update(ctx context.Context, collection, key string, fields featmy.Document) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		doc, err := s.getTx(ctx, tx, collection, key)
		if err != nil {
			return err
		}
		for k, v := range fields {
			doc[k] = v
		}
		return s.setTx(ctx, tx, collection, key, doc)
	})
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.NewDelete().
		Model((*documentRow)(nil)).
		Where("?TableAlias.collection = ?", collection).
		Where("?TableAlias.doc_key = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete document")
	}
	return nil
}

// Query returns the documents in a collection matching every field-equality
// predicate. Filtering happens after decode; the documents table stays
// dialect-agnostic with no reliance on JSON path operators.
func (s *Store) Query(ctx context.Context, collection string, filters featmy.Document) ([]featmy.Document, error) {
	var rows []documentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.collection = ?", collection).
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query documents")
	}

	var out []featmy.Document
	for _, row := range rows {
		doc := featmy.Document{}
		if err := json.Unmarshal(row.Data, &doc); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode stored document")
		}
		if matchesFilters(doc, filters) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *Store) AppendToArray(ctx context.Context, collection, key, field string, value any) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		doc, err := s.getTx(ctx, tx, collection, key)
		if err != nil {
			return err
		}

		items := asSlice(doc[field])
		for _, item := range items {
			if equalValues(item, value) {
				return nil
			}
		}
		doc[field] = append(items, value)
		return s.setTx(ctx, tx, collection, key, doc)
	})
}

func (s *Store) RemoveFromArray(ctx context.Context, collection, key, field string, value any) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		doc, err := s.getTx(ctx, tx, collection, key)
		if err != nil {
			return err
		}

		items := asSlice(doc[field])
		next := make([]any, 0, len(items))
		for _, item := range items {
			if !equalValues(item, value) {
				next = append(next, item)
			}
		}
		doc[field] = next
		return s.setTx(ctx, tx, collection, key, doc)
	})
}

func matchesFilters(doc, filters featmy.Document) bool {
	for field, want := range filters {
		if !equalValues(doc[field], want) {
			return false
		}
	}
	return true
}

func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	return items
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(rawA) == string(rawB)
}
