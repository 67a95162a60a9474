package db

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. Records are value types, so stored items
// never alias caller memory.
type Memory struct {
	mu    sync.RWMutex
	items map[Key]Item
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[Key]Item)}
}

func (m *Memory) Get(ctx context.Context, key Key) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (m *Memory) Put(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.Key()] = item
	return nil
}

func (m *Memory) Update(ctx context.Context, key Key, patch Patch) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return Item{}, ErrNotFound
	}
	updated, err := applyPatch(item, patch)
	if err != nil {
		return Item{}, err
	}
	m.items[key] = updated
	return updated, nil
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		addr Key
		item Item
	}
	var hits []hit
	for _, item := range m.items {
		addr, ok := partitionAndSort(item, q.Index)
		if !ok || addr.PK != q.Partition || !q.Sort.Match(addr.SK) {
			continue
		}
		hits = append(hits, hit{addr: addr, item: item})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].addr.SK != hits[j].addr.SK {
			return hits[i].addr.SK < hits[j].addr.SK
		}
		a, b := hits[i].item.Key(), hits[j].item.Key()
		if a.PK != b.PK {
			return a.PK < b.PK
		}
		return a.SK < b.SK
	})

	out := make([]Item, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.item)
	}
	return out, nil
}

func (m *Memory) DeleteExpired(ctx context.Context, now int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, item := range m.items {
		if item.ExpiresAt > 0 && item.ExpiresAt <= now {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Close() error {
	return nil
}
