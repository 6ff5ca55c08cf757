// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"fmt"

	"github.com/grailbio/scorereduce/topk"
)

// NoMate marks a candidate from an unpaired read.
const NoMate int8 = -1

// Candidate is one scored alignment produced by the extension stage.
type Candidate struct {
	// ReadID is the read slot within the batch, in [0, Batch.NumReads).
	ReadID uint32
	// Mate is 0 or 1 for the two ends of a pair, NoMate otherwise. It is
	// ignored in single-end mode.
	Mate    int8
	Score   int32
	Pos     uint64
	Reverse bool
}

// Hit drops the read identity of c.
func (c *Candidate) Hit() topk.Hit {
	return topk.Hit{Score: c.Score, Pos: c.Pos, Reverse: c.Reverse}
}

func (c Candidate) String() string {
	return fmt.Sprintf("%d/%d:%v", c.ReadID, c.Mate, c.Hit())
}

// Batch is the input of one reduction. The caller owns it; Reduce only
// reads it, so Candidates must not be modified until Reduce returns.
type Batch struct {
	// NumReads is the number of read (or pair) slots. Every slot is
	// reported exactly once, even if it has no candidates.
	NumReads int
	// Candidates in arbitrary order.
	Candidates []Candidate
}

// key identifies the record a candidate folds into.
type key uint64

func makeKey(read uint32, mate int) key { return key(read)<<1 | key(mate) }

func (k key) read() uint32 { return uint32(k >> 1) }

func (k key) mate() int { return int(k & 1) }
