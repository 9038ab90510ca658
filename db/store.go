package db

import (
	"fmt"
	"strings"
	"sync"

	"athena/types"

	"go.uber.org/zap"
)

// Backend persists the durable scopes
type Backend interface {
	Load(k Key) (types.Value, bool, error)
	Save(k Key, v types.Value) error
	Delete(k Key) error
	Close() error
}

// Store routes script variables to their scope. Temporary scopes live in
// memory; persistent scopes go to the backend.
type Store struct {
	mu       sync.RWMutex
	backend  Backend
	temps    map[Key]types.Value
	params   map[int]map[int64]types.Value // actor -> param -> value
	accounts map[int]int                   // character -> account
	log      *zap.Logger
}

// NewStore creates a store over backend; a nil backend keeps everything
// in memory
func NewStore(backend Backend, log *zap.Logger) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		temps:    make(map[Key]types.Value),
		params:   make(map[int]map[int64]types.Value),
		accounts: make(map[int]int),
		log:      log,
	}
}

// BindAccount records the account a character belongs to
func (s *Store) BindAccount(character, account int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[character] = account
}

// key builds the storage key for name as seen by actor. ok is false when
// the scope needs an actor and none is attached.
func (s *Store) key(actor int, name string, index int) (Key, bool) {
	k := Key{Scope: ScopeOf(name), Name: strings.ToLower(name), Index: index}
	if !k.Scope.PerActor() {
		return k, true
	}
	if actor == 0 {
		return k, false
	}
	k.Owner = actor
	if k.Scope == ScopeAccount || k.Scope == ScopeGlobalAccount {
		s.mu.RLock()
		if acct, ok := s.accounts[actor]; ok {
			k.Owner = acct
		}
		s.mu.RUnlock()
	}
	return k, true
}

// Get reads a variable. Reading a per-actor scope without an actor logs
// and yields the zero value.
func (s *Store) Get(actor int, name string, index int) (types.Value, error) {
	k, ok := s.key(actor, name, index)
	if !ok {
		s.log.Warn("variable read without an attached actor",
			zap.String("name", name), zap.String("scope", k.Scope.String()))
		return types.Zero(name), nil
	}

	var (
		v     types.Value
		found bool
		err   error
	)
	if k.Scope.Persistent() {
		v, found, err = s.backend.Load(k)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
	} else {
		s.mu.RLock()
		v, found = s.temps[k]
		s.mu.RUnlock()
	}
	if !found {
		return types.Zero(name), nil
	}
	return coerce(name, v), nil
}

// Set writes a variable. Zero values delete the slot.
func (s *Store) Set(actor int, name string, index int, v types.Value) error {
	k, ok := s.key(actor, name, index)
	if !ok {
		s.log.Warn("variable write without an attached actor",
			zap.String("name", name), zap.String("scope", k.Scope.String()))
		return nil
	}
	v = coerce(name, v)

	if k.Scope.Persistent() {
		if isZero(v) {
			return s.backend.Delete(k)
		}
		if err := s.backend.Save(k, v); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if isZero(v) {
		delete(s.temps, k)
	} else {
		s.temps[k] = v
	}
	return nil
}

// Param reads an actor attribute; no actor reads 0
func (s *Store) Param(actor int, param int64) (types.Value, error) {
	if actor == 0 {
		s.log.Warn("param read without an attached actor", zap.Int64("param", param))
		return types.NewInt(0), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.params[actor][param]; ok {
		return v, nil
	}
	return types.NewInt(0), nil
}

// SetParam writes an actor attribute
func (s *Store) SetParam(actor int, param int64, v types.Value) error {
	if actor == 0 {
		s.log.Warn("param write without an attached actor", zap.Int64("param", param))
		return nil
	}
	n, ok := types.ToInt(v)
	if !ok {
		return types.Errorf(types.E_TYPE, "param %d takes a number", param)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params[actor] == nil {
		s.params[actor] = make(map[int64]types.Value)
	}
	s.params[actor][param] = types.NewInt(n)
	return nil
}

// DropActor forgets an actor's temporary variables and params
func (s *Store) DropActor(actor int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.temps {
		if k.Scope == ScopeActorTemp && k.Owner == actor {
			delete(s.temps, k)
		}
	}
	delete(s.params, actor)
}

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// coerce converts v to the kind name holds
func coerce(name string, v types.Value) types.Value {
	if IsStringName(name) {
		str, _ := types.ToStr(v)
		return types.NewStr(str)
	}
	n, _ := types.ToInt(v)
	return types.NewInt(n)
}

func isZero(v types.Value) bool {
	switch x := v.(type) {
	case types.IntValue:
		return x.Val == 0
	case types.StrValue:
		return x.String() == ""
	}
	return false
}
