package db

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	recordsBucket = "records"
	gsi1Bucket    = "gsi1"
)

// keySep separates key parts inside bbolt keys. Key values never contain it.
const keySep = 0x00

// Bolt is a bbolt-backed Store. Primary keys live in one bucket, ordered by
// (pk, sk); the secondary index lives in a second bucket whose keys are
// (gsi1pk, gsi1sk, pk, sk) and whose values point back at the primary key.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) a bbolt store at path.
func OpenBolt(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(gsi1Bucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

func primaryBytes(key Key) []byte {
	b := make([]byte, 0, len(key.PK)+len(key.SK)+1)
	b = append(b, key.PK...)
	b = append(b, keySep)
	return append(b, key.SK...)
}

func indexBytes(idx Key, primary Key) []byte {
	b := make([]byte, 0, len(idx.PK)+len(idx.SK)+len(primary.PK)+len(primary.SK)+3)
	b = append(b, idx.PK...)
	b = append(b, keySep)
	b = append(b, idx.SK...)
	b = append(b, keySep)
	return append(b, primaryBytes(primary)...)
}

func (b *Bolt) Get(ctx context.Context, key Key) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	var item Item
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(recordsBucket)).Get(primaryBytes(key))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		item, err = decodeItem(raw)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (b *Bolt) Put(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putTx(tx, item)
	})
}

// putTx writes item and keeps its index entry in step with the record.
func putTx(tx *bbolt.Tx, item Item) error {
	records := tx.Bucket([]byte(recordsBucket))
	index := tx.Bucket([]byte(gsi1Bucket))
	key := item.Key()

	if raw := records.Get(primaryBytes(key)); raw != nil {
		old, err := decodeItem(raw)
		if err != nil {
			return err
		}
		if err := deleteIndexTx(index, old); err != nil {
			return err
		}
	}

	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	if err := records.Put(primaryBytes(key), data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if idx, ok := indexKeyOf(item); ok {
		if err := index.Put(indexBytes(idx, key), primaryBytes(key)); err != nil {
			return fmt.Errorf("writing index: %w", err)
		}
	}
	return nil
}

func deleteIndexTx(index *bbolt.Bucket, item Item) error {
	idx, ok := indexKeyOf(item)
	if !ok {
		return nil
	}
	return index.Delete(indexBytes(idx, item.Key()))
}

func (b *Bolt) Update(ctx context.Context, key Key, patch Patch) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	var updated Item
	err := b.db.Update(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(recordsBucket)).Get(primaryBytes(key))
		if raw == nil {
			return ErrNotFound
		}
		current, err := decodeItem(raw)
		if err != nil {
			return err
		}
		updated, err = applyPatch(current, patch)
		if err != nil {
			return err
		}
		return putTx(tx, updated)
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

func (b *Bolt) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return deleteTx(tx, key)
	})
}

func deleteTx(tx *bbolt.Tx, key Key) error {
	records := tx.Bucket([]byte(recordsBucket))
	raw := records.Get(primaryBytes(key))
	if raw == nil {
		return nil
	}
	old, err := decodeItem(raw)
	if err != nil {
		return err
	}
	if err := deleteIndexTx(tx.Bucket([]byte(gsi1Bucket)), old); err != nil {
		return err
	}
	return records.Delete(primaryBytes(key))
}

func (b *Bolt) Query(ctx context.Context, q Query) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	partition := append([]byte(q.Partition), keySep)
	start := partition
	if q.Sort.Op != SortAny {
		start = append(append([]byte{}, partition...), q.Sort.Value...)
	}

	items := make([]Item, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(recordsBucket))
		bucket := records
		if q.Index == IndexGSI1 {
			bucket = tx.Bucket([]byte(gsi1Bucket))
		}

		c := bucket.Cursor()
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, partition); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := k[len(partition):]
			sk := string(rest)
			if q.Index == IndexGSI1 {
				if i := bytes.IndexByte(rest, keySep); i >= 0 {
					sk = string(rest[:i])
				}
			}
			if pastRange(q.Sort, sk) {
				break
			}
			if !q.Sort.Match(sk) {
				continue
			}

			raw := v
			if q.Index == IndexGSI1 {
				raw = records.Get(v)
				if raw == nil {
					continue
				}
			}
			item, err := decodeItem(raw)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// pastRange reports whether an ascending scan has moved beyond every key the
// condition can match.
func pastRange(c SortCondition, sk string) bool {
	switch c.Op {
	case SortEqual:
		return sk > c.Value
	case SortBeginsWith:
		return sk > c.Value && !strings.HasPrefix(sk, c.Value)
	case SortBetween:
		return sk > c.Upper
	default:
		return false
	}
}

func (b *Bolt) DeleteExpired(ctx context.Context, now int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var expired []Key
		err := tx.Bucket([]byte(recordsBucket)).ForEach(func(k, v []byte) error {
			item, err := decodeItem(v)
			if err != nil {
				return err
			}
			if item.ExpiresAt > 0 && item.ExpiresAt <= now {
				expired = append(expired, item.Key())
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range expired {
			if err := deleteTx(tx, key); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}

// Close closes the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
