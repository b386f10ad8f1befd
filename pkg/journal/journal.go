// Package journal persists every outbound event to an append-only pebble
// log. Durability is additive: the core is correct without it, and journal
// failures never reject a participant's request.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/vexlab/vexchange/pkg/api"
)

// keys: e:<8-byte-big-endian-seq>
func kEvent(seq uint64) []byte {
	k := make([]byte, 2+8)
	copy(k, "e:")
	binary.BigEndian.PutUint64(k[2:], seq)
	return k
}

type Journal struct {
	db *pebble.DB

	mu   sync.Mutex
	next uint64
}

// Open opens (or creates) the journal at path and resumes the sequence
// after the last persisted event.
func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db}

	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: kEvent(0),
		UpperBound: []byte("e;"), // just past the "e:" prefix
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal iterator: %w", err)
	}
	if iter.Last() && iter.Valid() {
		j.next = binary.BigEndian.Uint64(iter.Key()[2:]) + 1
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Publish appends one outbound envelope. Implements api.EventSink.
func (j *Journal) Publish(ctx context.Context, env api.Outbound) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	j.mu.Lock()
	seq := j.next
	j.next++
	j.mu.Unlock()

	if err := j.db.Set(kEvent(seq), data, pebble.Sync); err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}
	return nil
}

// Len reports how many events have been appended in this journal's lifetime.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Range replays persisted events in sequence order, decoding each envelope.
// fn returning an error stops the replay.
func (j *Journal) Range(fn func(seq uint64, env api.Outbound) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: kEvent(0),
		UpperBound: []byte("e;"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key()[2:])
		var env api.Outbound
		if err := json.Unmarshal(iter.Value(), &env); err != nil {
			return fmt.Errorf("decode event %d: %w", seq, err)
		}
		if err := fn(seq, env); err != nil {
			return err
		}
	}
	return iter.Error()
}

var _ api.EventSink = (*Journal)(nil)
