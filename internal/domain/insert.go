package domain

import "github.com/google/uuid"

// Outcome reports what a duplicate-tolerant insert did with one item.
type Outcome int

const (
	// OutcomeCreated means the item is now persisted with its own ID.
	OutcomeCreated Outcome = iota
	// OutcomeDuplicate means a record with the same natural key already
	// existed, so the item was not written.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ItemResult pairs an attempted item with its outcome.
type ItemResult[T any] struct {
	Item    T
	Outcome Outcome
}

// InsertResult holds one ItemResult per attempted item, in input order.
type InsertResult[T any] []ItemResult[T]

// Created returns the items that were written.
func (r InsertResult[T]) Created() []T {
	return r.filter(OutcomeCreated)
}

// Duplicates returns the items dropped for colliding with an existing key.
func (r InsertResult[T]) Duplicates() []T {
	return r.filter(OutcomeDuplicate)
}

func (r InsertResult[T]) filter(o Outcome) []T {
	var out []T
	for _, ir := range r {
		if ir.Outcome == o {
			out = append(out, ir.Item)
		}
	}
	return out
}

// Classify builds an InsertResult from the IDs a store reports as written.
// Every item whose ID is absent from created is a duplicate.
func Classify[T any](items []T, id func(T) uuid.UUID, created map[uuid.UUID]bool) InsertResult[T] {
	res := make(InsertResult[T], len(items))
	for i, it := range items {
		res[i] = ItemResult[T]{Item: it, Outcome: OutcomeDuplicate}
		if created[id(it)] {
			res[i].Outcome = OutcomeCreated
		}
	}
	return res
}
