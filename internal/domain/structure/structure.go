package structure

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// ─────────────────────────────────────────────────────────────────────────────
// Structure aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Structure owns its chains and its style overlay. At most one writer runs
// at a time (Update); geometry readers hold the shared lock (View).
// Domain events recorded during Update are delivered to subscribers after
// the write lock has been released, in the order they were recorded.
type Structure struct {
	mu     sync.RWMutex
	id     uuid.UUID
	name   string
	chains []*Chain
	byID   map[string]*Chain
	styles *Styles

	remapper IDRemapper

	writing  atomic.Bool
	eventsMu sync.Mutex
	pending  []DomainEvent

	subsMu      sync.RWMutex
	nextSubID   int
	subscribers []subscriber
}

type subscriber struct {
	id int
	fn func(DomainEvent)
}

// entryNamespace scopes identities derived from entry ids.
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("molscene:structure-entry"))

// EntryID derives a structure identity from an external entry id such as a
// PDB code. Every process loading the same entry gets the same identity, so
// shared cache entries and invalidation events refer to the same structure.
func EntryID(entry string) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte(entry))
}

// NewStructure returns an empty structure with a fresh identity.
func NewStructure(name string) *Structure {
	return NewStructureWithID(uuid.New(), name)
}

// NewStructureWithID returns an empty structure with the given identity. A
// nil id is replaced by a fresh one.
func NewStructureWithID(id uuid.UUID, name string) *Structure {
	if id == uuid.Nil {
		id = uuid.New()
	}
	s := &Structure{
		id:   id,
		name: name,
		byID: make(map[string]*Chain),
	}
	s.styles = newStyles(s)
	return s
}

// ID returns the structure identity.
func (s *Structure) ID() uuid.UUID { return s.id }

// Name returns the display name.
func (s *Structure) Name() string { return s.name }

// Kind returns stypes.KindStructure.
func (s *Structure) Kind() stypes.ComponentKind { return stypes.KindStructure }

// ComponentID identifies the structure itself.
func (s *Structure) ComponentID() ComponentID {
	return ComponentID{Kind: stypes.KindStructure, Structure: s.id, Index: -1}
}

// Styles returns the style overlay owned by the structure.
func (s *Structure) Styles() *Styles { return s.styles }

// AddChain attaches c. Chain ids must be unique within a structure.
func (s *Structure) AddChain(c *Chain) error {
	if c == nil {
		return errors.InvalidArgument("chain must not be nil")
	}
	if c.structure != nil {
		return errors.InvalidArgument("chain already belongs to a structure").WithDetail("chain=" + c.id)
	}
	if _, dup := s.byID[c.id]; dup {
		return errors.New(errors.CodeConflict, "duplicate chain id").WithDetail("chain=" + c.id)
	}
	c.structure = s
	s.chains = append(s.chains, c)
	s.byID[c.id] = c
	s.record(ChainAddedEvent{Structure: s.id, ChainID: c.id})
	return nil
}

// Chain looks up a chain by id.
func (s *Structure) Chain(id string) (*Chain, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeChainNotFound, "chain not found").WithDetail("chain=" + id)
	}
	return c, nil
}

// Chains returns the chains in insertion order.
func (s *Structure) Chains() []*Chain {
	out := make([]*Chain, len(s.chains))
	copy(out, s.chains)
	return out
}

// SetIDRemapper installs the collaborator used for display ids.
func (s *Structure) SetIDRemapper(r IDRemapper) { s.remapper = r }

func (s *Structure) remappedID(chainID string, residueID int) (string, bool) {
	if s.remapper == nil {
		return "", false
	}
	return s.remapper.DisplayID(chainID, residueID)
}

// DisplayID returns the remapped residue id, or the residue id itself.
func (s *Structure) DisplayID(chainID string, residueID int) string {
	if id, ok := s.remappedID(chainID, residueID); ok {
		return id
	}
	return strconv.Itoa(residueID)
}

func (s *Structure) String() string {
	return fmt.Sprintf("%s (%s, %d chains)", s.name, s.id, len(s.chains))
}

// ─────────────────────────────────────────────────────────────────────────────
// Locking
// ─────────────────────────────────────────────────────────────────────────────

// Update runs fn with exclusive access. Events recorded by fn are dispatched
// once the lock is released, even if fn returns an error.
func (s *Structure) Update(fn func() error) error {
	err := s.locked(fn)
	s.flush()
	return err
}

func (s *Structure) locked(fn func() error) error {
	s.mu.Lock()
	s.writing.Store(true)
	defer func() {
		s.writing.Store(false)
		s.mu.Unlock()
	}()
	return fn()
}

// View runs fn with shared access. fn must not mutate the structure.
func (s *Structure) View(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

// Subscribe registers fn for domain events and returns a function that
// removes the registration. Listeners run synchronously on the goroutine
// that completed the change and must not call Update.
func (s *Structure) Subscribe(fn func(DomainEvent)) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// record queues e while an Update is running and dispatches it immediately
// otherwise.
func (s *Structure) record(e DomainEvent) {
	if s.writing.Load() {
		s.eventsMu.Lock()
		s.pending = append(s.pending, e)
		s.eventsMu.Unlock()
		return
	}
	s.dispatch(e)
}

func (s *Structure) flush() {
	s.eventsMu.Lock()
	events := s.pending
	s.pending = nil
	s.eventsMu.Unlock()
	for _, e := range events {
		s.dispatch(e)
	}
}

func (s *Structure) dispatch(e DomainEvent) {
	s.subsMu.RLock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subsMu.RUnlock()
	for _, sub := range subs {
		sub.fn(e)
	}
}
