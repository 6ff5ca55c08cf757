// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package topk tracks the best and second-best distinct-position alignments
// of a single read.
//
// A Record is folded one candidate at a time with Add, and partial records
// built from disjoint candidate subsets are merged with Combine. Both
// operations produce a record that depends only on the multiset of
// candidates seen, never on their order or on how they were split, so
// records can be built by any number of workers and merged in any tree
// shape.
package topk

import (
	"fmt"
)

// Hit is one scored placement of a read on the reference.
type Hit struct {
	// Score of the alignment. Larger is better.
	Score int32
	// Pos is the leftmost reference coordinate of the alignment.
	Pos uint64
	// Reverse is true if the read aligned to the reverse strand.
	Reverse bool
}

// Before reports whether h ranks ahead of o. Hits are ordered by
// decreasing score, then increasing position, then forward strand before
// reverse strand.
func (h Hit) Before(o Hit) bool {
	if h.Score != o.Score {
		return h.Score > o.Score
	}
	if h.Pos != o.Pos {
		return h.Pos < o.Pos
	}
	return !h.Reverse && o.Reverse
}

func (h Hit) String() string {
	strand := '+'
	if h.Reverse {
		strand = '-'
	}
	return fmt.Sprintf("(%d,%d%c)", h.Score, h.Pos, strand)
}

// Record is the running top-2 summary of one read. The zero value is an
// empty record.
//
// Invariants: best ranks ahead of second, and the two slots always hold
// different positions. Each slot holds the highest-ranked hit seen at its
// position.
type Record struct {
	best, second       Hit
	hasBest, hasSecond bool

	// nTied counts candidates with score == best.Score, and nAtBest counts
	// those of them at best.Pos.
	nTied, nAtBest uint64

	nSeen     uint64
	nRejected uint32
}

// Add folds one candidate into the record.
func (r *Record) Add(h Hit) {
	r.nSeen++
	r.add(h, 1, 1)
}

// Reject records a candidate that was discarded as anomalous. It counts
// toward Seen but never toward the slots.
func (r *Record) Reject() {
	r.nSeen++
	r.nRejected++
}

// add folds h into r. nTied is the number of candidates with h.Score that
// h stands for, and nAtBest how many of them sit at h.Pos. A raw candidate
// stands for itself (1, 1); the best hit of a partial record stands for
// that record's tie counts.
func (r *Record) add(h Hit, nTied, nAtBest uint64) {
	if !r.hasBest {
		r.best, r.hasBest = h, true
		r.nTied, r.nAtBest = nTied, nAtBest
		return
	}

	switch {
	case h.Score > r.best.Score:
		r.nTied, r.nAtBest = nTied, nAtBest
	case h.Score == r.best.Score:
		r.nTied += nTied
		if h.Pos == r.best.Pos {
			r.nAtBest += nAtBest
		} else if h.Pos < r.best.Pos {
			// h is about to become best. No earlier candidate with this
			// score can sit at h.Pos, or it would already be best.
			r.nAtBest = nAtBest
		}
	}

	if h.Pos == r.best.Pos {
		if h.Before(r.best) {
			r.best = h
		}
		return
	}
	if h.Before(r.best) {
		r.second, r.hasSecond = r.best, true
		r.best = h
		return
	}
	if !r.hasSecond || h.Before(r.second) {
		r.second, r.hasSecond = h, true
	}
}

// Combine merges two partial records of the same read. Combine is
// associative and commutative.
func Combine(a, b Record) Record {
	c := a
	if b.hasBest {
		c.add(b.best, b.nTied, b.nAtBest)
	}
	if b.hasSecond {
		// b's ties are already accounted for by b.best.
		c.add(b.second, 0, 0)
	}
	c.nSeen += b.nSeen
	c.nRejected += b.nRejected
	return c
}

// Best returns the best hit, and false if the record is empty.
func (r *Record) Best() (Hit, bool) { return r.best, r.hasBest }

// Second returns the best hit at a position other than Best's, and false
// if there is none.
func (r *Record) Second() (Hit, bool) { return r.second, r.hasSecond }

// Empty is true if no candidate has reached the slots.
func (r *Record) Empty() bool { return !r.hasBest }

// TieCount is the number of candidates scoring exactly Best().Score at a
// position other than Best().Pos.
func (r *Record) TieCount() uint64 {
	if !r.hasBest {
		return 0
	}
	return r.nTied - r.nAtBest
}

// Seen is the number of candidates folded into the record, including
// dominated and rejected ones.
func (r *Record) Seen() uint64 { return r.nSeen }

// Rejected is the number of anomalous candidates discarded for this read.
func (r *Record) Rejected() uint32 { return r.nRejected }

// Reset empties the record so it can be reused for another pass.
func (r *Record) Reset() { *r = Record{} }

func (r Record) String() string {
	if !r.hasBest {
		return fmt.Sprintf("{empty seen:%d}", r.nSeen)
	}
	second := "none"
	if r.hasSecond {
		second = r.second.String()
	}
	return fmt.Sprintf("{best:%v second:%s ties:%d seen:%d rejected:%d}",
		r.best, second, r.TieCount(), r.nSeen, r.nRejected)
}
