// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package candidates reads candidate alignments into reduce.Batch values
// and writes the reduced records as TSV.
package candidates

import (
	"fmt"
	"io"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/scorereduce/reduce"
)

// Input is a batch together with the names of its read slots.
type Input struct {
	Batch reduce.Batch
	// Names[i] is the name of read slot i.
	Names []string
	// Paired is set if any candidate belongs to a mate.
	Paired bool
	// RefLen is the length of the linearized reference, or 0 if unknown.
	RefLen uint64
	// Skipped counts input records that produced no candidate.
	Skipped int
}

// names assigns read slots in order of first appearance.
type names struct {
	index map[string]uint32
	list  []string
}

func (n *names) slot(name string) uint32 {
	if id, ok := n.index[name]; ok {
		return id
	}
	if n.index == nil {
		n.index = make(map[string]uint32)
	}
	id := uint32(len(n.list))
	n.index[name] = id
	n.list = append(n.list, name)
	return id
}

// tsvRow is one line of a candidate TSV file.
type tsvRow struct {
	Read   string `tsv:"READ"`
	Mate   int    `tsv:"MATE"`
	Score  int64  `tsv:"SCORE"`
	Pos    int64  `tsv:"POS"`
	Strand string `tsv:"STRAND"`
}

// ReadTSV parses a candidate table. The first row names the columns READ,
// MATE, SCORE, POS and STRAND. MATE is 0 for an unpaired read and 1 or 2
// for the ends of a pair. STRAND is + or -. Lines starting with '#' are
// skipped.
func ReadTSV(r io.Reader) (*Input, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	tr.Comment = '#'

	var (
		in Input
		n  names
	)
	for i := 1; ; i++ {
		var row tsvRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		c := reduce.Candidate{Mate: reduce.NoMate}
		switch row.Mate {
		case 0:
		case 1, 2:
			c.Mate = int8(row.Mate - 1)
			in.Paired = true
		default:
			return nil, invalidRow(i, "MATE must be 0, 1 or 2, got %d", row.Mate)
		}
		if row.Score < math.MinInt32 || row.Score > math.MaxInt32 {
			return nil, invalidRow(i, "SCORE %d out of range", row.Score)
		}
		if row.Pos < 0 {
			return nil, invalidRow(i, "negative POS %d", row.Pos)
		}
		switch row.Strand {
		case "+":
		case "-":
			c.Reverse = true
		default:
			return nil, invalidRow(i, "STRAND must be + or -, got %q", row.Strand)
		}
		c.ReadID = n.slot(row.Read)
		c.Score = int32(row.Score)
		c.Pos = uint64(row.Pos)
		in.Batch.Candidates = append(in.Batch.Candidates, c)
	}
	in.Names = n.list
	in.Batch.NumReads = len(n.list)
	return &in, nil
}

func invalidRow(row int, format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf("candidates: row %d: ", row)+fmt.Sprintf(format, args...))
}
