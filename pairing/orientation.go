// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pairing

import (
	"fmt"
	"strings"

	"github.com/grailbio/scorereduce/topk"
)

// Orientation is the expected relative strand layout of the two mates of a
// concordant pair.
type Orientation uint8

const (
	// FR expects the left mate on the forward strand and the right mate on
	// the reverse strand (standard paired-end libraries).
	FR Orientation = iota
	// FF expects both mates on the same strand with mate A upstream on the
	// forward strand, or mate B upstream on the reverse strand.
	FF
	// RF expects the left mate on the reverse strand and the right mate on
	// the forward strand (mate-pair libraries).
	RF
)

// ParseOrientation parses "fr", "ff" or "rf", ignoring case.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "fr":
		return FR, nil
	case "ff":
		return FF, nil
	case "rf":
		return RF, nil
	}
	return FR, fmt.Errorf("unknown pair orientation %q, want fr, ff or rf", s)
}

func (o Orientation) String() string {
	switch o {
	case FR:
		return "fr"
	case FF:
		return "ff"
	case RF:
		return "rf"
	}
	return fmt.Sprintf("Orientation(%d)", uint8(o))
}

// layout is the strand layout of a pair ordered by position.
type layout uint8

const (
	ff layout = iota // Forward, Forward
	fr               // Forward, Reverse
	rf               // Reverse, Forward
	rr               // Reverse, Reverse
)

func layoutOf(leftReversed, rightReversed bool) layout {
	if leftReversed {
		if rightReversed {
			return rr
		}
		return rf
	}
	if rightReversed {
		return fr
	}
	return ff
}

// accepts reports whether a pair with the given layout satisfies o. aLeft
// is true if mate A is the left read.
func (o Orientation) accepts(l layout, aLeft bool) bool {
	switch o {
	case FR:
		return l == fr
	case RF:
		return l == rf
	case FF:
		return (l == ff && aLeft) || (l == rr && !aLeft)
	}
	return false
}

// Compatible reports whether mate hits a and b are laid out as o requires.
// When both mates start at the same position either one may be the left
// read.
func (o Orientation) Compatible(a, b topk.Hit) bool {
	if a.Pos <= b.Pos && o.accepts(layoutOf(a.Reverse, b.Reverse), true) {
		return true
	}
	return b.Pos <= a.Pos && o.accepts(layoutOf(b.Reverse, a.Reverse), false)
}
