// Package store is the contract between the state core and the remote
// document store. The store owns canonical state; everything else holds
// read-only copies delivered as full snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

const (
	Users = "users"
	Teams = "teams"
	Tasks = "tasks"
)

var ErrInvalidFilter = errors.New("invalid filter")

type Op int

const (
	OpEqual Op = iota
	OpArrayContains
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpArrayContains:
		return "array-contains"
	default:
		return "unknown"
	}
}

// Filter is a single-field predicate. Only string values are supported.
type Filter struct {
	Field string
	Op    Op
	Value string
}

func Equal(field, value string) *Filter {
	return &Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field, value string) *Filter {
	return &Filter{Field: field, Op: OpArrayContains, Value: value}
}

func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Field == "" {
		return fmt.Errorf("%w: field is required", ErrInvalidFilter)
	}
	if f.Op != OpEqual && f.Op != OpArrayContains {
		return fmt.Errorf("%w: unsupported operator %d", ErrInvalidFilter, f.Op)
	}
	return nil
}

// String is stable and used as part of mirror identity. A nil filter is "".
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s %s %q", f.Field, f.Op, f.Value)
}

// Match evaluates the filter against decoded document fields.
func (f *Filter) Match(fields map[string]any) bool {
	if f == nil {
		return true
	}
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		s, ok := v.(string)
		return ok && s == f.Value
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		return slices.ContainsFunc(arr, func(e any) bool {
			s, ok := e.(string)
			return ok && s == f.Value
		})
	}
	return false
}

// Document is one stored document: its store-assigned id and its fields
// as a JSON object.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Snapshot is either the full current matching document set or a
// terminal subscription error.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription delivers snapshots in commit order. Close stops delivery
// synchronously: once it returns no further snapshot is sent.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Close()
}

type Store interface {
	Subscribe(ctx context.Context, collection string, filter *Filter) (Subscription, error)
	// Add writes a new document and returns its store-assigned id.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Set merges fields into the document, creating it when absent.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
}
