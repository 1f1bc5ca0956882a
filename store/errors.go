// Package store implements the four in-memory stores (agents, tasks,
// conversations, workspaces) described in spec.md §4.1: entity maps with
// invariants enforced on mutation, snapshot-consistent listing, and
// critical-event emission ordered strictly after the commit that produced
// it.
package store

import "errors"

// ErrNotFound is returned by Get/Delete when no entity exists for the given
// id.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a mutation would violate an invariant from
// spec.md §3 (e.g. deleting an agent with in-flight tasks, or a task
// dependency edge that would create a cycle).
var ErrConflict = errors.New("store: conflict")

// ErrInvalidEntity is returned when a caller attempts to save an entity
// missing required fields (e.g. no id, workspace).
var ErrInvalidEntity = errors.New("store: invalid entity")
