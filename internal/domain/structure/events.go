package structure

import (
	"fmt"

	"github.com/google/uuid"

	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// ─────────────────────────────────────────────────────────────────────────────
// Component identity
// ─────────────────────────────────────────────────────────────────────────────

// ComponentID identifies one node of a structure hierarchy for styling and
// geometry caching. Index is the residue position within the chain for
// residues, the first residue position for fragments, and -1 for chains and
// structures.
type ComponentID struct {
	Kind      stypes.ComponentKind
	Structure uuid.UUID
	ChainID   string
	Index     int
}

// String renders the id as "<structure>/<chain>/<kind>/<index>".
func (c ComponentID) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", c.Structure, c.ChainID, c.Kind, c.Index)
}

// ChainComponent returns the id of the chain that contains c. Structure ids
// are returned unchanged.
func (c ComponentID) ChainComponent() ComponentID {
	if c.Kind == stypes.KindStructure {
		return c
	}
	return ComponentID{Kind: stypes.KindChain, Structure: c.Structure, ChainID: c.ChainID, Index: -1}
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain Events
// ─────────────────────────────────────────────────────────────────────────────

// DomainEvent is implemented by every change notification a Structure emits.
type DomainEvent interface {
	EventType() string
	StructureID() uuid.UUID
}

// AtomsChangedEvent is emitted when atoms are added to or removed from a
// residue that belongs to a chain, or when residues are added to or removed
// from a chain.
type AtomsChangedEvent struct {
	Structure uuid.UUID
	ChainID   string
}

func (e AtomsChangedEvent) EventType() string      { return "structure.atoms_changed" }
func (e AtomsChangedEvent) StructureID() uuid.UUID { return e.Structure }

// ConformationChangedEvent is emitted when a residue's secondary structure
// assignment changes.
type ConformationChangedEvent struct {
	Structure    uuid.UUID
	ChainID      string
	ResidueIndex int
	From, To     stypes.ConformationType
}

func (e ConformationChangedEvent) EventType() string      { return "structure.conformation_changed" }
func (e ConformationChangedEvent) StructureID() uuid.UUID { return e.Structure }

// StyleChangedEvent is emitted whenever the style overlay is mutated.
type StyleChangedEvent struct {
	Structure uuid.UUID
	Component ComponentID
	Revision  uint64
}

func (e StyleChangedEvent) EventType() string      { return "structure.style_changed" }
func (e StyleChangedEvent) StructureID() uuid.UUID { return e.Structure }

// ChainAddedEvent is emitted when a chain is attached to a structure.
type ChainAddedEvent struct {
	Structure uuid.UUID
	ChainID   string
}

func (e ChainAddedEvent) EventType() string      { return "structure.chain_added" }
func (e ChainAddedEvent) StructureID() uuid.UUID { return e.Structure }
