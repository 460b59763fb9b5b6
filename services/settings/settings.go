// Package settings keeps small non-volatile key/value settings grouped by
// namespace ("network", "display", "audio", ...).
//
// The whole store is one canonical CBOR map of namespace -> key -> value and
// is written back through a Backend after every mutation.
package settings

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("settings: cbor encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("settings: cbor decoder mode: %v", err))
	}
}

type image map[string]map[string]any

// Backend persists the encoded image.
type Backend interface {
	// Load returns nil, nil when nothing has been stored yet.
	Load() ([]byte, error)
	Save(data []byte) error
}

type Store struct {
	mu      sync.Mutex
	backend Backend
	data    image
}

// Open loads the image from b. A nil backend keeps everything in memory.
func Open(b Backend) (*Store, error) {
	if b == nil {
		b = &MemBackend{}
	}
	s := &Store{backend: b, data: image{}}
	raw, err := b.Load()
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := decMode.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("settings: decode: %w", err)
		}
		if s.data == nil {
			s.data = image{}
		}
	}
	return s, nil
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Store {
	s, _ := Open(&MemBackend{})
	return s
}

// Namespace returns a view over one namespace.
func (s *Store) Namespace(ns string) *Settings { return &Settings{store: s, ns: ns} }

// caller holds lock
func (s *Store) commit() error {
	raw, err := encMode.Marshal(s.data)
	if err != nil {
		return err
	}
	return s.backend.Save(raw)
}

func (s *Store) get(ns, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[ns][key]
	return v, ok
}

func (s *Store) set(ns, key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.data[ns]
	if m == nil {
		m = map[string]any{}
		s.data[ns] = m
	}
	m[key] = v
	return s.commit()
}

func (s *Store) erase(ns, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[ns]
	if !ok {
		return nil
	}
	if key == "" {
		delete(s.data, ns)
	} else {
		delete(m, key)
	}
	return s.commit()
}

// Settings is a namespaced view. Getters fall back to def when the key is
// missing or holds a value of another type.
type Settings struct {
	store *Store
	ns    string
}

func (s *Settings) Namespace() string { return s.ns }

func (s *Settings) String(key, def string) string {
	if v, ok := s.store.get(s.ns, key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

func (s *Settings) SetString(key, v string) error { return s.store.set(s.ns, key, v) }

func (s *Settings) Int(key string, def int) int {
	v, ok := s.store.get(s.ns, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return def
	}
}

func (s *Settings) SetInt(key string, v int) error { return s.store.set(s.ns, key, int64(v)) }

func (s *Settings) Bool(key string, def bool) bool {
	if v, ok := s.store.get(s.ns, key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (s *Settings) SetBool(key string, v bool) error { return s.store.set(s.ns, key, v) }

// Erase removes one key.
func (s *Settings) Erase(key string) error {
	if key == "" {
		return nil
	}
	return s.store.erase(s.ns, key)
}

// EraseAll removes the whole namespace.
func (s *Settings) EraseAll() error { return s.store.erase(s.ns, "") }
