package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no record exists under the id.
var ErrNotFound = errors.New("record not found")

// Record is the persistable-entity capability every stored struct
// implements. The store serializes records as JSON and addresses them by
// (type, id); access control on the records is the host's concern.
type Record interface {
	RecordType() string
	RecordID() string
	OwnerID() string
}

// Sort orders query results by a JSON field.
type Sort struct {
	Field string
	Desc  bool
}

// Query selects records of one type by predicate, with optional ordering
// and paging. A nil predicate matches every record of the type.
type Query struct {
	Type      string
	Predicate *Predicate
	Sort      []Sort
	Limit     int
	Offset    int
}

// RecordStore is the external record storage contract: batch save, batch
// delete and predicate query with server-side evaluation.
type RecordStore interface {
	// Save upserts the given records atomically with respect to process
	// crashes (all writes are synced before Save returns).
	Save(ctx context.Context, recs ...Record) error
	// Delete removes records of one type by id. Missing ids are ignored.
	Delete(ctx context.Context, typ string, ids ...string) error
	// Get fetches one record by id into out. Returns ErrNotFound when
	// absent.
	Get(ctx context.Context, typ, id string, out interface{}) error
	// Query returns the raw JSON of matching records in sort order.
	Query(ctx context.Context, q Query) ([]json.RawMessage, error)
	// NextSeq increments and returns the named monotonic counter. Used
	// for per-conversation message sequence numbers.
	NextSeq(ctx context.Context, name string) (int64, error)
}
