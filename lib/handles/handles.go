// Package handles maintains a table of live Go values keyed by opaque
// numeric handles. A handle can be stored anywhere a uint64 fits (other
// registries, configs, foreign callbacks) and later resolved back to a
// typed value. Values stay alive until they are explicitly undefined or
// their reference count drops to zero; forgetting to release an entry
// keeps it for the life of the process.
package handles

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/JustinKnueppel/go-result"
)

// Handle identifies one table entry. Handles are never reused within a
// table and carry no type information.
type Handle uint64

var (
	ErrBadHandle = errors.New("handle is not defined")
	ErrWrongType = errors.New("stored value has a different type")
)

type entry struct {
	value    any
	typeName string
	defined  time.Time
	refs     int
}

// Table is an explicitly owned registry of values. The zero value is not
// usable; construct with NewTable.
type Table struct {
	mu      sync.RWMutex
	entries map[Handle]*entry
	next    Handle
}

func NewTable() *Table {
	return &Table{entries: make(map[Handle]*entry)}
}

// Define registers a value and returns a fresh non-zero handle for it.
// The entry starts with a reference count of 1.
func (t *Table) Define(v any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.entries[h] = &entry{
		value:    v,
		typeName: typeName(v),
		defined:  time.Now(),
		refs:     1,
	}
	return h
}

// Get returns a snapshot of the value behind h. Resolving an undefined
// handle or asking for the wrong type is a reported error, never a
// crash.
func Get[T any](t *Table, h Handle) result.Result[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	if !ok {
		return result.Err[T](errors.Join(ErrBadHandle, fmt.Errorf("handle %d", h)))
	}
	v, ok := e.value.(T)
	if !ok {
		return result.Err[T](errors.Join(ErrWrongType, fmt.Errorf("handle %d holds %s", h, e.typeName)))
	}
	return result.Ok(v)
}

// Update applies f to the value behind h while the table lock is held,
// stores the result back, and returns the updated value. No reference to
// the stored value escapes the lock.
func Update[T any](t *Table, h Handle, f func(*T)) result.Result[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return result.Err[T](errors.Join(ErrBadHandle, fmt.Errorf("handle %d", h)))
	}
	v, ok := e.value.(T)
	if !ok {
		return result.Err[T](errors.Join(ErrWrongType, fmt.Errorf("handle %d holds %s", h, e.typeName)))
	}
	f(&v)
	e.value = v
	return result.Ok(v)
}

// Undefine removes the entry regardless of its reference count and
// reports whether it existed. If the value implements io.Closer it is
// closed.
func (t *Table) Undefine(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remove(h)
}

// Retain increments the reference count of h.
func (t *Table) Retain(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if ok {
		e.refs++
	}
	return ok
}

// Release decrements the reference count of h and undefines the entry
// once the count reaches zero.
func (t *Table) Release(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return false
	}
	e.refs--
	if e.refs <= 0 {
		t.remove(h)
	}
	return true
}

func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// EntryInfo describes one live entry for auditing.
type EntryInfo struct {
	Handle   Handle
	TypeName string
	Age      time.Duration
	Refs     int
}

// Audit returns the entries that have been defined for longer than
// olderThan. Audit(0) lists everything.
func (t *Table) Audit(olderThan time.Duration) []EntryInfo {
	now := time.Now()
	t.mu.RLock()
	defer t.mu.RUnlock()
	var infos []EntryInfo
	for h, e := range t.entries {
		age := now.Sub(e.defined)
		if age >= olderThan {
			infos = append(infos, EntryInfo{
				Handle:   h,
				TypeName: e.typeName,
				Age:      age,
				Refs:     e.refs,
			})
		}
	}
	return infos
}

// Drain undefines every entry, closing values that implement io.Closer,
// and returns how many were removed.
func (t *Table) Drain() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	for h := range t.entries {
		t.remove(h)
	}
	return n
}

// caller must hold t.mu
func (t *Table) remove(h Handle) bool {
	e, ok := t.entries[h]
	if !ok {
		return false
	}
	delete(t.entries, h)
	if c, ok := e.value.(io.Closer); ok {
		c.Close()
	}
	return true
}

func typeName(v any) string {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return "<nil>"
	}
	return rt.String()
}
