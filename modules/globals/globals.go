// Package globals is a process-wide keyed registry of values. Keys map
// to entries in a handles.Table; the store owns the name index and
// drains every entry it still holds when stopped, so nothing it manages
// outlives it silently.
package globals

import (
	"errors"
	"fmt"
	"sync"

	"global-store/lib/handles"
	"global-store/lib/logger"
	"global-store/lib/utils"
	"global-store/modules/aggregate"

	"github.com/JustinKnueppel/go-result"
	"github.com/chebyrash/promise"
	"github.com/go-viper/mapstructure/v2"
	"github.com/moznion/go-optional"
)

var ErrNotFound = errors.New("Failed to find key")

// ===== types =====

type Store struct {
	mu    sync.RWMutex
	index map[string]handles.Handle

	table *handles.Table
	log   logger.Logger
}

var _ aggregate.Plugin = &Store{}

// ===== constructor =====

// New creates a store backed by table. A nil table gets a private one; a
// nil log discards debug output.
func New(table *handles.Table, log logger.Logger) *Store {
	if table == nil {
		table = handles.NewTable()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Store{
		index: make(map[string]handles.Handle),
		table: table,
		log:   log,
	}
}

// ===== implementing plugin interface =====

// Init implements aggregate.Plugin.
func (s *Store) Init() error {
	return nil
}

// Start implements aggregate.Plugin.
func (s *Store) Start() *promise.Promise[any] {
	return utils.PromiseResolve[any](nil)
}

// Stop implements aggregate.Plugin. Every entry still indexed is
// undefined, running io.Closer teardown where values implement it.
func (s *Store) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, h := range s.index {
		s.table.Undefine(h)
		delete(s.index, key)
	}
	s.log.Debug("store drained")
	return nil
}

// ===== operations =====

// Set registers v under key and returns its handle. Setting an existing
// key releases the previous entry instead of orphaning it.
func (s *Store) Set(key string, v any) handles.Handle {
	h := s.table.Define(v)
	s.mu.Lock()
	old, replaced := s.index[key]
	s.index[key] = h
	s.mu.Unlock()
	if replaced {
		s.table.Undefine(old)
		s.log.Debug("replaced value under key", key)
	}
	return h
}

// Drop removes key and undefines its entry, reporting whether the key
// existed. Dropping an absent key is a no-op.
func (s *Store) Drop(key string) bool {
	s.mu.Lock()
	h, ok := s.index[key]
	delete(s.index, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.table.Undefine(h)
}

// Fetch returns a snapshot of the value under key.
func Fetch[T any](s *Store, key string) result.Result[T] {
	h, ok := s.lookup(key)
	if !ok {
		return result.Err[T](errors.Join(ErrNotFound, fmt.Errorf("key %q", key)))
	}
	return handles.Get[T](s.table, h)
}

// Update applies f to the value under key while the backing table's lock
// is held and returns the updated value.
func Update[T any](s *Store, key string, f func(*T)) result.Result[T] {
	h, ok := s.lookup(key)
	if !ok {
		return result.Err[T](errors.Join(ErrNotFound, fmt.Errorf("key %q", key)))
	}
	return handles.Update(s.table, h, f)
}

// FetchInto decodes the value under key into out, which should be a
// pointer to a struct. Map-shaped values are reconstructed field by
// field, so data that arrived as map[string]any can come back typed.
func (s *Store) FetchInto(key string, out any) error {
	h, ok := s.lookup(key)
	if !ok {
		return errors.Join(ErrNotFound, fmt.Errorf("key %q", key))
	}
	res := handles.Get[any](s.table, h)
	if res.IsErr() {
		return res.UnwrapErr()
	}
	return mapstructure.Decode(res.Unwrap(), out)
}

// Peek reports the handle currently indexed under key without touching
// the value.
func (s *Store) Peek(key string) optional.Option[handles.Handle] {
	h, ok := s.lookup(key)
	if !ok {
		return optional.None[handles.Handle]()
	}
	return optional.Some(h)
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	return keys
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func (s *Store) lookup(key string) (handles.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.index[key]
	return h, ok
}
