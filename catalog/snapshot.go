package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/snowflake-labs/segment"
)

// ErrNoSnapshot is returned when loading from a store which was never saved to.
var ErrNoSnapshot = errors.New("no catalog snapshot saved")

var (
	attrPrefix = []byte("attr/")
	// attrUpper is the exclusive upper bound of attribute keys:  '0' sorts
	// directly after '/'.
	attrUpper = []byte("attr0")
	metaKey   = []byte("meta")
)

// snapshotMeta records when a snapshot was saved.
type snapshotMeta struct {
	SavedAt time.Time `json:"saved_at"`
	Count   int       `json:"count"`
}

// SnapshotStore persists a catalog to a pebble database, allowing attributes to be
// listed without a warehouse connection.
type SnapshotStore struct {
	db *pebble.DB
}

// OpenSnapshotStore opens or creates a store within dir.  opts may be nil.
func OpenSnapshotStore(dir string, opts *pebble.Options) (*SnapshotStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("error opening catalog snapshot: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with defs.  The previous snapshot is removed and
// the new snapshot is written within a single batch, so readers never observe a
// partial snapshot.
func (s *SnapshotStore) Save(ctx context.Context, defs []segment.AttributeDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(attrPrefix, attrUpper, nil); err != nil {
		return err
	}
	for n, d := range defs {
		val, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("error encoding attribute %s: %w", d.Key(), err)
		}
		if err := b.Set(attrKey(n), val, nil); err != nil {
			return err
		}
	}

	meta, err := json.Marshal(snapshotMeta{SavedAt: time.Now().UTC(), Count: len(defs)})
	if err != nil {
		return err
	}
	if err := b.Set(metaKey, meta, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// Load returns the saved definitions in the order they were saved.
func (s *SnapshotStore) Load(ctx context.Context) ([]segment.AttributeDefinition, error) {
	meta, err := s.meta()
	if err != nil {
		return nil, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: attrPrefix,
		UpperBound: attrUpper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	defs := make([]segment.AttributeDefinition, 0, meta.Count)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var d segment.AttributeDefinition
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			return nil, fmt.Errorf("error decoding attribute %s: %w", iter.Key(), err)
		}
		defs = append(defs, d)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return defs, nil
}

// SavedAt returns when the snapshot was last saved.
func (s *SnapshotStore) SavedAt() (time.Time, error) {
	meta, err := s.meta()
	if err != nil {
		return time.Time{}, err
	}
	return meta.SavedAt, nil
}

// ListAttributes lists the saved definitions, implementing Provider.
func (s *SnapshotStore) ListAttributes(ctx context.Context, category string) ([]segment.AttributeDefinition, error) {
	defs, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return StaticProvider(defs).ListAttributes(ctx, category)
}

func (s *SnapshotStore) meta() (snapshotMeta, error) {
	val, closer, err := s.db.Get(metaKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return snapshotMeta{}, ErrNoSnapshot
	}
	if err != nil {
		return snapshotMeta{}, err
	}
	defer closer.Close()

	var meta snapshotMeta
	if err := json.Unmarshal(val, &meta); err != nil {
		return snapshotMeta{}, fmt.Errorf("error decoding snapshot metadata: %w", err)
	}
	return meta, nil
}

func attrKey(n int) []byte {
	return fmt.Appendf(nil, "%s%08d", attrPrefix, n)
}
