// Package db is the keyed-record store every repository is built on.
//
// All entity types share one physical keyspace. Each record type owns
// disjoint key prefixes (see keys.go) for both the primary key and the
// secondary index, so a query on one prefix never sees another type.
package db

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Key is the two-part composite primary key.
type Key struct {
	PK string `json:"pk"`
	SK string `json:"sk"`
}

// Item is a stored record plus its storage-level expiry.
type Item struct {
	Record Record
	// ExpiresAt is an absolute epoch-seconds expiry; zero means permanent.
	ExpiresAt int64
}

// Key returns the primary key derived from the record.
func (i Item) Key() Key {
	return i.Record.PrimaryKey()
}

// Index identifies which key pair a query runs against.
type Index int

const (
	IndexPrimary Index = iota
	IndexGSI1
)

func (i Index) String() string {
	if i == IndexGSI1 {
		return "gsi1"
	}
	return "primary"
}

// SortOp selects how a query constrains the sort key.
type SortOp int

const (
	SortAny SortOp = iota
	SortEqual
	SortBeginsWith
	SortBetween
)

// SortCondition constrains the sort key of a query.
type SortCondition struct {
	Op    SortOp
	Value string
	// Upper is the inclusive upper bound for SortBetween.
	Upper string
}

func AnySort() SortCondition { return SortCondition{Op: SortAny} }
func EqualTo(v string) SortCondition { return SortCondition{Op: SortEqual, Value: v} }
func BeginsWith(prefix string) SortCondition { return SortCondition{Op: SortBeginsWith, Value: prefix} }
func Between(lo, hi string) SortCondition { return SortCondition{Op: SortBetween, Value: lo, Upper: hi} }

// Match reports whether sk satisfies the condition.
func (c SortCondition) Match(sk string) bool {
	switch c.Op {
	case SortEqual:
		return sk == c.Value
	case SortBeginsWith:
		return strings.HasPrefix(sk, c.Value)
	case SortBetween:
		return sk >= c.Value && sk <= c.Upper
	default:
		return true
	}
}

// Query selects records of one partition of an index, ordered ascending by
// sort key.
type Query struct {
	Index     Index
	Partition string
	Sort      SortCondition
}

// Store defines the keyed-record operations.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key Key) (Item, error)

	// Put overwrites the record at its primary key.
	Put(ctx context.Context, item Item) error

	// Update applies patch to an existing record and returns the result.
	// It returns ErrNotFound when the key is absent.
	Update(ctx context.Context, key Key, patch Patch) (Item, error)

	// Delete removes a record. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Query returns every matching record, paging internally.
	Query(ctx context.Context, q Query) ([]Item, error)

	// DeleteExpired removes items whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now int64) (int, error)

	// Close releases the backend.
	Close() error
}

// indexKeyOf returns the GSI1 key of an item, if it has one.
func indexKeyOf(item Item) (Key, bool) {
	return item.Record.IndexKey()
}

// partitionAndSort returns the key pair an item is addressed by under idx.
func partitionAndSort(item Item, idx Index) (Key, bool) {
	if idx == IndexGSI1 {
		return indexKeyOf(item)
	}
	return item.Key(), true
}

func validateItem(item Item) error {
	if item.Record == nil {
		return errors.New("item record is required")
	}
	key := item.Key()
	if strings.TrimSpace(key.PK) == "" || strings.TrimSpace(key.SK) == "" {
		return errors.New("item key is incomplete")
	}
	return nil
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*Bolt)(nil)
	_ Store = (*Memory)(nil)
)
