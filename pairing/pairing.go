// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pairing derives the joint alignment of a read pair from the
// finalized top-2 records of its two mates.
//
// Each mate contributes its best and second hits, so at most four
// combinations are scored. A combination is concordant when both mates are
// mapped, their start positions lie within [MinFragLen, MaxFragLen] of each
// other, and their strands match the configured Orientation. The best
// concordant combination and the best combination overall are reported.
// A mate with no hits is replaced by an unmapped end scored with
// UnmappedPenalty, which can never be concordant.
package pairing

import (
	"fmt"
	"math"

	"github.com/grailbio/scorereduce/topk"
)

// Opts are the pairing constraints of one batch.
type Opts struct {
	MinFragLen uint64
	MaxFragLen uint64 `validate:"gtefield=MinFragLen"`
	// Orientation of a concordant pair.
	Orientation Orientation `validate:"lte=2"`
	// UnmappedPenalty is the score substituted for a mate with no hits.
	UnmappedPenalty int32
}

// DefaultOpts are typical bounds for a short-insert FR library.
var DefaultOpts = Opts{
	MinFragLen:      0,
	MaxFragLen:      500,
	Orientation:     FR,
	UnmappedPenalty: -60,
}

// Concordant reports whether two mapped mate hits satisfy the fragment
// length and orientation constraints.
func (o *Opts) Concordant(a, b topk.Hit) bool {
	var dist uint64
	if a.Pos <= b.Pos {
		dist = b.Pos - a.Pos
	} else {
		dist = a.Pos - b.Pos
	}
	if dist < o.MinFragLen || dist > o.MaxFragLen {
		return false
	}
	return o.Orientation.Compatible(a, b)
}

// End is one mate's side of a joint alignment.
type End struct {
	Hit topk.Hit
	// Mapped is false for a mate with no candidates. Hit is then zero.
	Mapped bool
}

func (e End) String() string {
	if !e.Mapped {
		return "unmapped"
	}
	return e.Hit.String()
}

// Joint is one combination of mate hits.
type Joint struct {
	// Score is the sum of the mate scores, clamped to the int32 range.
	Score int32
	A, B  End
	// Saturated is set when Score was clamped. Downstream quality
	// estimation should discount such pairs.
	Saturated bool
	// Concordant is set if the combination satisfies the pairing
	// constraints.
	Concordant bool
}

func (j Joint) String() string {
	s := fmt.Sprintf("%d:%v/%v", j.Score, j.A, j.B)
	if j.Concordant {
		s += " concordant"
	}
	if j.Saturated {
		s += " saturated"
	}
	return s
}

// before ranks joint combinations: higher score, then lower A position,
// then lower B position, then forward before reverse for A and B.
func (j *Joint) before(o *Joint) bool {
	if j.Score != o.Score {
		return j.Score > o.Score
	}
	if j.A.Hit.Pos != o.A.Hit.Pos {
		return j.A.Hit.Pos < o.A.Hit.Pos
	}
	if j.B.Hit.Pos != o.B.Hit.Pos {
		return j.B.Hit.Pos < o.B.Hit.Pos
	}
	if j.A.Hit.Reverse != o.A.Hit.Reverse {
		return !j.A.Hit.Reverse
	}
	return !j.B.Hit.Reverse && o.B.Hit.Reverse
}

// Record is the joint top summary of one read pair.
type Record struct {
	// Concordant is the best concordant combination. Valid iff
	// HasConcordant.
	Concordant    Joint
	HasConcordant bool
	// Discordant is the best combination regardless of concordance. It is
	// populated whenever at least one mate has a hit.
	Discordant    Joint
	HasDiscordant bool
}

// NeedsRescue is true if some mate mapped but no concordant pairing was
// found, so the pipeline should re-seed around the mapped mate.
func (r *Record) NeedsRescue() bool {
	return r.HasDiscordant && !r.HasConcordant
}

// Best returns the combination to report for the pair: the concordant one
// if any, else the discordant one.
func (r *Record) Best() (Joint, bool) {
	if r.HasConcordant {
		return r.Concordant, true
	}
	return r.Discordant, r.HasDiscordant
}

func (r Record) String() string {
	if !r.HasDiscordant {
		return "{unmapped}"
	}
	if !r.HasConcordant {
		return fmt.Sprintf("{discordant:%v}", r.Discordant)
	}
	return fmt.Sprintf("{concordant:%v discordant:%v}", r.Concordant, r.Discordant)
}

// saturatingAdd returns a+b clamped to the int32 range, and true if it
// was clamped.
func saturatingAdd(a, b int32) (int32, bool) {
	s := int64(a) + int64(b)
	if s > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if s < math.MinInt32 {
		return math.MinInt32, true
	}
	return int32(s), false
}

// ends lists the candidate ends of one mate: its best and second hits, or
// a single unmapped end.
func ends(r *topk.Record, buf *[2]End) []End {
	best, ok := r.Best()
	if !ok {
		buf[0] = End{}
		return buf[:1]
	}
	buf[0] = End{Hit: best, Mapped: true}
	if second, ok := r.Second(); ok {
		buf[1] = End{Hit: second, Mapped: true}
		return buf[:2]
	}
	return buf[:1]
}

// Combine derives the joint record of a pair from its mates' records.
func Combine(a, b *topk.Record, opts *Opts) Record {
	var rec Record
	if a.Empty() && b.Empty() {
		return rec
	}
	var abuf, bbuf [2]End
	for _, ea := range ends(a, &abuf) {
		for _, eb := range ends(b, &bbuf) {
			sa, sb := opts.UnmappedPenalty, opts.UnmappedPenalty
			if ea.Mapped {
				sa = ea.Hit.Score
			}
			if eb.Mapped {
				sb = eb.Hit.Score
			}
			j := Joint{A: ea, B: eb}
			j.Score, j.Saturated = saturatingAdd(sa, sb)
			j.Concordant = ea.Mapped && eb.Mapped && opts.Concordant(ea.Hit, eb.Hit)

			if !rec.HasDiscordant || j.before(&rec.Discordant) {
				rec.Discordant, rec.HasDiscordant = j, true
			}
			if j.Concordant && (!rec.HasConcordant || j.before(&rec.Concordant)) {
				rec.Concordant, rec.HasConcordant = j, true
			}
		}
	}
	return rec
}
