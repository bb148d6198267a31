package structure

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// Styles is the per-structure overlay of visibility and selection state.
// Every effective change bumps the revision and records a StyleChangedEvent.
// Geometry builds never read Styles directly; they take a Snapshot.
type Styles struct {
	mu       sync.RWMutex
	owner    *Structure
	revision uint64
	hidden   map[ComponentID]struct{}
	selected map[ComponentID]struct{}
}

func newStyles(owner *Structure) *Styles {
	return &Styles{
		owner:    owner,
		hidden:   make(map[ComponentID]struct{}),
		selected: make(map[ComponentID]struct{}),
	}
}

// Revision returns the current style revision.
func (s *Styles) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// SetVisible shows or hides a component. Hiding a chain hides all of its
// fragments and residues.
func (s *Styles) SetVisible(id ComponentID, visible bool) {
	s.apply(id, s.hidden, !visible)
}

// SetSelected marks or unmarks a component as selected.
func (s *Styles) SetSelected(id ComponentID, selected bool) {
	s.apply(id, s.selected, selected)
}

// ClearSelection deselects everything.
func (s *Styles) ClearSelection() {
	s.mu.Lock()
	if len(s.selected) == 0 {
		s.mu.Unlock()
		return
	}
	s.selected = make(map[ComponentID]struct{})
	s.revision++
	rev := s.revision
	s.mu.Unlock()
	var id ComponentID
	if s.owner != nil {
		id = s.owner.ComponentID()
	}
	s.notify(id, rev)
}

func (s *Styles) apply(id ComponentID, set map[ComponentID]struct{}, member bool) {
	s.mu.Lock()
	_, present := set[id]
	if present == member {
		s.mu.Unlock()
		return
	}
	if member {
		set[id] = struct{}{}
	} else {
		delete(set, id)
	}
	s.revision++
	rev := s.revision
	s.mu.Unlock()
	s.notify(id, rev)
}

func (s *Styles) notify(id ComponentID, rev uint64) {
	if s.owner == nil {
		return
	}
	s.owner.record(StyleChangedEvent{Structure: s.owner.id, Component: id, Revision: rev})
}

// Snapshot returns an immutable copy of the overlay.
func (s *Styles) Snapshot() StyleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StyleSnapshot{
		revision: s.revision,
		hidden:   make(map[ComponentID]struct{}, len(s.hidden)),
		selected: make(map[ComponentID]struct{}, len(s.selected)),
	}
	for k := range s.hidden {
		snap.hidden[k] = struct{}{}
	}
	for k := range s.selected {
		snap.selected[k] = struct{}{}
	}
	return snap
}

// StyleSnapshot is a read-only view of Styles at one revision. The zero
// value shows everything and selects nothing.
type StyleSnapshot struct {
	revision uint64
	hidden   map[ComponentID]struct{}
	selected map[ComponentID]struct{}
}

// Revision returns the revision the snapshot was taken at.
func (s StyleSnapshot) Revision() uint64 { return s.revision }

// IsVisible reports whether id and every enclosing component are visible.
func (s StyleSnapshot) IsVisible(id ComponentID) bool {
	for _, c := range lineage(id) {
		if _, ok := s.hidden[c]; ok {
			return false
		}
	}
	return true
}

// IsSelected reports whether id or an enclosing component is selected.
func (s StyleSnapshot) IsSelected(id ComponentID) bool {
	for _, c := range lineage(id) {
		if _, ok := s.selected[c]; ok {
			return true
		}
	}
	return false
}

// Digest summarizes the state that affects chainID's geometry: hidden and
// selected components of that chain plus structure-wide entries. Unlike the
// revision, equal overlays give equal digests in every process.
func (s StyleSnapshot) Digest(chainID string) string {
	var lines []string
	collect := func(tag string, set map[ComponentID]struct{}) {
		for id := range set {
			if id.Kind == stypes.KindStructure || id.ChainID == chainID {
				lines = append(lines, tag+id.String())
			}
		}
	}
	collect("h:", s.hidden)
	collect("s:", s.selected)
	if len(lines) == 0 {
		return "plain"
	}
	sort.Strings(lines)
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// lineage returns id followed by its enclosing chain and structure ids.
func lineage(id ComponentID) []ComponentID {
	out := []ComponentID{id}
	switch id.Kind {
	case stypes.KindAtom, stypes.KindBond, stypes.KindResidue, stypes.KindFragment:
		out = append(out, id.ChainComponent())
		fallthrough
	case stypes.KindChain:
		out = append(out, ComponentID{Kind: stypes.KindStructure, Structure: id.Structure, Index: -1})
	}
	return out
}
