// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/scorereduce/pairing"
	"github.com/grailbio/scorereduce/topk"
)

// Summary is the finalized reduction of one read, or of one read pair in
// paired mode.
type Summary struct {
	// Mates holds the per-mate records. Only Mates[0] is set in single-end
	// mode.
	Mates [2]topk.Record
	// Pair is the joint record. Valid iff Paired.
	Pair   pairing.Record
	Paired bool
}

// Context is the sink of a reduction. Reduce calls Report exactly once per
// read slot, after every candidate of the batch has been folded in. Report
// may be called concurrently for different slots. s is only valid for the
// duration of the call.
type Context interface {
	Report(read uint32, s *Summary)
}

// ContextFunc adapts a function to the Context interface.
type ContextFunc func(read uint32, s *Summary)

// Report calls f(read, s).
func (f ContextFunc) Report(read uint32, s *Summary) { f(read, s) }

// ReadState is the lifecycle stage of one read slot within a batch.
type ReadState uint8

const (
	// AwaitingCandidates is the initial state, and the state a read
	// returns to when it is scheduled for a rescue pass.
	AwaitingCandidates ReadState = iota
	// Reducing means candidates are being folded.
	Reducing
	// Reduced means the read's records are final but not yet reported.
	Reduced
	// Reported is terminal for the batch.
	Reported
)

func (s ReadState) String() string {
	switch s {
	case AwaitingCandidates:
		return "awaiting-candidates"
	case Reducing:
		return "reducing"
	case Reduced:
		return "reduced"
	case Reported:
		return "reported"
	}
	return fmt.Sprintf("ReadState(%d)", uint8(s))
}

// lifecycle is implemented by contexts that track per-slot states. Reduce
// advances all slots of the batch before folding and before reporting.
type lifecycle interface {
	advance(nReads int, to ReadState) error
}

// slots tracks the state of every read slot of a context.
type slots struct {
	states []ReadState
}

func newSlots(n int) slots { return slots{states: make([]ReadState, n)} }

func (s *slots) advance(nReads int, to ReadState) error {
	if nReads > len(s.states) {
		return errors.E(errors.Invalid,
			fmt.Sprintf("reduce: context holds %d reads, batch has %d", len(s.states), nReads))
	}
	for i, st := range s.states[:nReads] {
		if st != to-1 {
			return errors.E(errors.Invalid,
				fmt.Sprintf("reduce: read %d is %v, cannot move to %v", i, st, to))
		}
	}
	for i := range s.states[:nReads] {
		s.states[i] = to
	}
	return nil
}

func (s *slots) report(read uint32) {
	if int(read) >= len(s.states) {
		log.Panicf("reduce: read %d reported to a context of %d reads", read, len(s.states))
	}
	switch s.states[read] {
	case Reduced:
	case Reported:
		log.Panicf("reduce: read %d reported twice", read)
	default:
		log.Panicf("reduce: read %d reported while %v", read, s.states[read])
	}
	s.states[read] = Reported
}

// State returns the lifecycle stage of a read slot.
func (s *slots) State(read uint32) ReadState { return s.states[read] }

func (s *slots) resetAll() {
	for i := range s.states {
		s.states[i] = AwaitingCandidates
	}
}

// SingleEnd collects per-read records into Records, indexed by read slot.
type SingleEnd struct {
	Records []topk.Record
	slots
}

// NewSingleEnd creates a context for batches of up to n reads.
func NewSingleEnd(n int) *SingleEnd {
	return &SingleEnd{
		Records: make([]topk.Record, n),
		slots:   newSlots(n),
	}
}

// Report implements Context.
func (c *SingleEnd) Report(read uint32, s *Summary) {
	c.report(read)
	c.Records[read] = s.Mates[0]
}

// Reset clears all records so the context can serve another batch.
func (c *SingleEnd) Reset() {
	for i := range c.Records {
		c.Records[i].Reset()
	}
	c.resetAll()
}

// PairedEnd collects per-mate records, joint records and rescue markers,
// indexed by pair slot.
type PairedEnd struct {
	Mates [2][]topk.Record
	Pairs []pairing.Record
	// Rescue[i] is set if pair i found no concordant pairing but has a
	// mapped mate.
	Rescue []bool
	slots
}

// NewPairedEnd creates a context for batches of up to n read pairs.
func NewPairedEnd(n int) *PairedEnd {
	return &PairedEnd{
		Mates:  [2][]topk.Record{make([]topk.Record, n), make([]topk.Record, n)},
		Pairs:  make([]pairing.Record, n),
		Rescue: make([]bool, n),
		slots:  newSlots(n),
	}
}

// Report implements Context.
func (c *PairedEnd) Report(read uint32, s *Summary) {
	c.report(read)
	c.Mates[0][read] = s.Mates[0]
	c.Mates[1][read] = s.Mates[1]
	c.Pairs[read] = s.Pair
	c.Rescue[read] = s.Pair.NeedsRescue()
}

// PrepareRescue returns the slots whose rescue marker is set and moves
// them back to AwaitingCandidates. The caller reduces a rescue batch for
// them into a fresh context and hands it back through ApplyRescue.
func (c *PairedEnd) PrepareRescue() []uint32 {
	var rescue []uint32
	for i, r := range c.Rescue {
		if r && c.states[i] == Reported {
			rescue = append(rescue, uint32(i))
			c.states[i] = AwaitingCandidates
		}
	}
	return rescue
}

// ApplyRescue copies the results of a rescue pass back into c. Slot
// reads[i] of c receives slot i of r. Every listed slot of c must be
// awaiting candidates, and every slot of r must have been reported.
func (c *PairedEnd) ApplyRescue(reads []uint32, r *PairedEnd) error {
	for i, read := range reads {
		if int(read) >= len(c.states) || c.states[read] != AwaitingCandidates {
			return errors.E(errors.Precondition, fmt.Sprintf("reduce: read %d is not awaiting rescue", read))
		}
		if i >= len(r.states) || r.states[i] != Reported {
			return errors.E(errors.Precondition, fmt.Sprintf("reduce: rescue slot %d was not reported", i))
		}
	}
	for i, read := range reads {
		c.Mates[0][read] = r.Mates[0][i]
		c.Mates[1][read] = r.Mates[1][i]
		c.Pairs[read] = r.Pairs[i]
		c.Rescue[read] = r.Rescue[i]
		c.states[read] = Reported
	}
	return nil
}

// Reset clears all results so the context can serve another batch.
func (c *PairedEnd) Reset() {
	for i := range c.Pairs {
		c.Mates[0][i].Reset()
		c.Mates[1][i].Reset()
		c.Pairs[i] = pairing.Record{}
		c.Rescue[i] = false
	}
	c.resetAll()
}
