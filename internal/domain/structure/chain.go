package structure

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/turtacn/molscene/pkg/errors"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// Chain owns an ordered sequence of residues. Insertion order is sequence
// order. The chain keeps its fragment segmentation current on every
// mutation so readers never observe a stale or half-built segmentation.
type Chain struct {
	id        string
	residues  []*Residue
	fragments []*Fragment
	structure *Structure
}

// NewChain returns an empty chain.
func NewChain(id string) *Chain {
	return &Chain{id: id}
}

// ID returns the chain identifier.
func (c *Chain) ID() string { return c.id }

// Kind returns stypes.KindChain.
func (c *Chain) Kind() stypes.ComponentKind { return stypes.KindChain }

// Structure returns the owning structure, or nil when detached.
func (c *Chain) Structure() *Structure { return c.structure }

// ComponentID identifies the chain within its structure.
func (c *Chain) ComponentID() ComponentID {
	id := ComponentID{Kind: stypes.KindChain, ChainID: c.id, Index: -1}
	if c.structure != nil {
		id.Structure = c.structure.id
	}
	return id
}

// AddResidue appends r to the chain.
func (c *Chain) AddResidue(r *Residue) error {
	if r == nil {
		return errors.InvalidArgument("residue must not be nil")
	}
	if r.chain != nil {
		return errors.New(errors.ErrCodeResidueAttached, "residue already belongs to a chain").
			WithDetail(fmt.Sprintf("chain=%s", r.chain.id))
	}
	r.chain = c
	r.index = len(c.residues)
	c.residues = append(c.residues, r)
	c.segment()
	c.emit(AtomsChangedEvent{Structure: c.structureID(), ChainID: c.id})
	return nil
}

// RemoveResidue detaches the residue at index.
func (c *Chain) RemoveResidue(index int) error {
	if index < 0 || index >= len(c.residues) {
		return errors.IndexOutOfRange("residue index out of range").
			WithDetail(fmt.Sprintf("index=%d count=%d", index, len(c.residues)))
	}
	r := c.residues[index]
	copy(c.residues[index:], c.residues[index+1:])
	c.residues[len(c.residues)-1] = nil
	c.residues = c.residues[:len(c.residues)-1]
	r.chain = nil
	r.fragment = nil
	r.index = NoIndex
	for i := index; i < len(c.residues); i++ {
		c.residues[i].index = i
	}
	c.segment()
	c.emit(AtomsChangedEvent{Structure: c.structureID(), ChainID: c.id})
	return nil
}

// Residue returns the residue at index.
func (c *Chain) Residue(index int) (*Residue, error) {
	if index < 0 || index >= len(c.residues) {
		return nil, errors.IndexOutOfRange("residue index out of range").
			WithDetail(fmt.Sprintf("index=%d count=%d", index, len(c.residues)))
	}
	return c.residues[index], nil
}

// Residues returns a copy of the residues in sequence order.
func (c *Chain) Residues() []*Residue {
	out := make([]*Residue, len(c.residues))
	copy(out, c.residues)
	return out
}

// ResidueCount returns the number of residues.
func (c *Chain) ResidueCount() int { return len(c.residues) }

// Fragments returns the current segmentation in chain order.
func (c *Chain) Fragments() []*Fragment {
	out := make([]*Fragment, len(c.fragments))
	copy(out, c.fragments)
	return out
}

// IsPolymer reports whether the chain contains any amino or nucleic acid.
func (c *Chain) IsPolymer() bool {
	for _, r := range c.residues {
		if r.classification.IsPolymer() {
			return true
		}
	}
	return false
}

// Sequence returns the one-letter sequence of the polymer residues.
func (c *Chain) Sequence() string {
	buf := make([]byte, 0, len(c.residues))
	for _, r := range c.residues {
		if r.classification.IsPolymer() {
			buf = append(buf, OneLetterCode(r.compoundCode))
		}
	}
	return string(buf)
}

// segment rebuilds fragments as maximal runs of equal conformation.
func (c *Chain) segment() {
	c.fragments = make([]*Fragment, 0, len(c.fragments))
	var cur *Fragment
	for i, r := range c.residues {
		if cur == nil || r.conformation != cur.conformation {
			cur = &Fragment{
				chain:        c,
				index:        len(c.fragments),
				start:        i,
				conformation: r.conformation,
			}
			c.fragments = append(c.fragments, cur)
		}
		cur.residues = append(cur.residues, r)
		r.fragment = cur
	}
}

func (c *Chain) structureID() uuid.UUID {
	if c.structure == nil {
		return uuid.Nil
	}
	return c.structure.id
}

func (c *Chain) emit(e DomainEvent) {
	if c.structure != nil {
		c.structure.record(e)
	}
}
