package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	"chatd/pkg/logger"
)

// Pebble is a RecordStore backed by an embedded Pebble database. Records
// are stored as JSON under `rec:<type>:<id>`; queries are prefix scans
// with predicate evaluation over the decoded value. Suitable for a
// single-process deployment; the interface is the seam for swapping in a
// remote record service.
type Pebble struct {
	db *pebble.DB

	// seqMu serializes counter read-modify-write for NextSeq.
	seqMu sync.Mutex
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Pebble, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Pebble{db: db}, nil
}

// Close closes the underlying database.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	logger.Info("pebble_closed")
	return err
}

func recordKey(typ, id string) []byte {
	return []byte(fmt.Sprintf("rec:%s:%s", typ, id))
}

func seqKey(name string) []byte {
	return []byte("seq:" + name)
}

// Save upserts records in one synced batch so a crash cannot lose an
// acknowledged mutation or apply half of it.
func (p *Pebble) Save(ctx context.Context, recs ...Record) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, rec := range recs {
		if rec.RecordID() == "" {
			return fmt.Errorf("record of type %s has empty id", rec.RecordType())
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s record: %w", rec.RecordType(), err)
		}
		if err := batch.Set(recordKey(rec.RecordType(), rec.RecordID()), data, nil); err != nil {
			return err
		}
		opsTotal.WithLabelValues("save", rec.RecordType()).Inc()
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("save_records_failed", "count", len(recs), "error", err)
		return err
	}
	return nil
}

// Delete removes records by id; absent ids are not an error.
func (p *Pebble) Delete(ctx context.Context, typ string, ids ...string) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, id := range ids {
		if err := batch.Delete(recordKey(typ, id), nil); err != nil {
			return err
		}
		opsTotal.WithLabelValues("delete", typ).Inc()
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("delete_records_failed", "type", typ, "count", len(ids), "error", err)
		return err
	}
	return nil
}

// Get fetches one record by id into out.
func (p *Pebble) Get(ctx context.Context, typ, id string, out interface{}) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := p.db.Get(recordKey(typ, id))
	if err == pebble.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	opsTotal.WithLabelValues("get", typ).Inc()
	return json.Unmarshal(v, out)
}

// Query scans the type's prefix, evaluates the predicate against each
// decoded record, then sorts and pages the survivors.
func (p *Pebble) Query(ctx context.Context, q Query) ([]json.RawMessage, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("rec:" + q.Type + ":")
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	type hit struct {
		raw    json.RawMessage
		fields map[string]interface{}
	}
	var hits []hit
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		var fields map[string]interface{}
		if err := json.Unmarshal(v, &fields); err != nil {
			logger.Error("query_invalid_record_json", "key", string(iter.Key()), "error", err)
			return nil, fmt.Errorf("invalid record JSON at %s: %w", string(iter.Key()), err)
		}
		if q.Predicate != nil && !q.Predicate.Match(fields) {
			continue
		}
		hits = append(hits, hit{raw: v, fields: fields})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	opsTotal.WithLabelValues("query", q.Type).Inc()

	if len(q.Sort) > 0 {
		sort.SliceStable(hits, func(i, j int) bool {
			for _, s := range q.Sort {
				c, ok := compare(hits[i].fields[s.Field], hits[j].fields[s.Field])
				if !ok || c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(hits) {
			hits = nil
		} else {
			hits = hits[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(hits) {
		hits = hits[:q.Limit]
	}

	out := make([]json.RawMessage, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.raw)
	}
	return out, nil
}

// NextSeq increments the named counter and returns its new value. The
// counter key is read-modify-written under a mutex and synced, so values
// are strictly increasing across the process lifetime and restarts.
func (p *Pebble) NextSeq(ctx context.Context, name string) (int64, error) {
	if p.db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	p.seqMu.Lock()
	defer p.seqMu.Unlock()

	key := seqKey(name)
	var cur uint64
	v, closer, err := p.db.Get(key)
	if err == nil {
		if len(v) == 8 {
			cur = binary.BigEndian.Uint64(v)
		}
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return 0, err
	}
	cur++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, cur)
	if err := p.db.Set(key, buf, pebble.Sync); err != nil {
		logger.Error("next_seq_failed", "name", name, "error", err)
		return 0, err
	}
	return int64(cur), nil
}
