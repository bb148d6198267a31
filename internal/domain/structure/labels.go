package structure

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Id remapping
// ─────────────────────────────────────────────────────────────────────────────

// IDRemapper maps a (chain id, residue id) pair to an alternate display
// identifier, for example an NDB numbering. It is used for labels only.
type IDRemapper interface {
	DisplayID(chainID string, residueID int) (string, bool)
}

type remapKey struct {
	chainID   string
	residueID int
}

// MapRemapper is an in-memory IDRemapper.
type MapRemapper struct {
	mu sync.RWMutex
	m  map[remapKey]string
}

// NewMapRemapper returns an empty remapper.
func NewMapRemapper() *MapRemapper {
	return &MapRemapper{m: make(map[remapKey]string)}
}

// Set registers a display id.
func (m *MapRemapper) Set(chainID string, residueID int, displayID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[remapKey{chainID, residueID}] = displayID
}

// DisplayID implements IDRemapper.
func (m *MapRemapper) DisplayID(chainID string, residueID int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.m[remapKey{chainID, residueID}]
	return id, ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Label formatters
// ─────────────────────────────────────────────────────────────────────────────

// LabelFormatter renders the text label of an atom. Formatters are
// stateless; s may be nil for detached atoms.
type LabelFormatter interface {
	Name() string
	Format(s *Structure, a *Atom) string
}

// AtomNameLabel labels an atom with its name.
type AtomNameLabel struct{}

func (AtomNameLabel) Name() string { return "atom-name" }

func (AtomNameLabel) Format(_ *Structure, a *Atom) string {
	if a == nil {
		return ""
	}
	return a.Name
}

// AtomCompoundLabel labels an atom with its compound code, prefixed by the
// remapped residue id when one is known.
type AtomCompoundLabel struct{}

func (AtomCompoundLabel) Name() string { return "atom-compound" }

func (AtomCompoundLabel) Format(s *Structure, a *Atom) string {
	if a == nil {
		return ""
	}
	if s != nil {
		if id, ok := s.remappedID(a.ChainID, a.ResidueID); ok {
			return id + " " + a.CompoundCode
		}
	}
	return a.CompoundCode
}

// ResidueLabel labels an atom with "<compound> <chain><residue>", using the
// remapped residue id when available.
type ResidueLabel struct{}

func (ResidueLabel) Name() string { return "residue" }

func (ResidueLabel) Format(s *Structure, a *Atom) string {
	if a == nil {
		return ""
	}
	id := strconv.Itoa(a.ResidueID)
	if s != nil {
		id = s.DisplayID(a.ChainID, a.ResidueID)
	}
	return fmt.Sprintf("%s %s%s", a.CompoundCode, a.ChainID, id)
}

// LabelRegistry holds formatter instances by name. Build one at startup and
// pass it to consumers.
type LabelRegistry struct {
	formatters map[string]LabelFormatter
}

// NewLabelRegistry registers the given formatters.
func NewLabelRegistry(formatters ...LabelFormatter) *LabelRegistry {
	reg := &LabelRegistry{formatters: make(map[string]LabelFormatter, len(formatters))}
	for _, f := range formatters {
		reg.Register(f)
	}
	return reg
}

// DefaultLabelRegistry registers the built-in formatters.
func DefaultLabelRegistry() *LabelRegistry {
	return NewLabelRegistry(AtomNameLabel{}, AtomCompoundLabel{}, ResidueLabel{})
}

// Register adds or replaces a formatter under its name.
func (r *LabelRegistry) Register(f LabelFormatter) {
	if f == nil {
		return
	}
	r.formatters[f.Name()] = f
}

// Get looks up a formatter.
func (r *LabelRegistry) Get(name string) (LabelFormatter, bool) {
	f, ok := r.formatters[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *LabelRegistry) Names() []string {
	names := make([]string, 0, len(r.formatters))
	for n := range r.formatters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
