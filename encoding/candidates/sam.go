// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package candidates

import (
	"io"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/scorereduce/reduce"
)

var asTag = sam.NewTag("AS")

// ReadSAM reads a SAM file that lists every candidate alignment of a read
// as a separate record. The alignment score is taken from the AS tag.
// Positions are linearized by concatenating the references in header
// order. Unmapped records and records without an integer AS tag are
// counted in Input.Skipped.
func ReadSAM(r io.Reader) (*Input, error) {
	sr, err := sam.NewReader(r)
	if err != nil {
		return nil, errors.E(err, "candidates: reading SAM header")
	}
	refs := sr.Header().Refs()
	offsets := make([]uint64, len(refs))
	var in Input
	for i, ref := range refs {
		offsets[i] = in.RefLen
		in.RefLen += uint64(ref.Len())
	}

	var n names
	for {
		rec, err := sr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, "candidates: reading SAM record")
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Ref.ID() < 0 || rec.Ref.ID() >= len(offsets) || rec.Pos < 0 {
			in.Skipped++
			continue
		}
		score, ok := alignmentScore(rec)
		if !ok {
			in.Skipped++
			continue
		}
		c := reduce.Candidate{
			Mate:    reduce.NoMate,
			Score:   score,
			Pos:     offsets[rec.Ref.ID()] + uint64(rec.Pos),
			Reverse: rec.Flags&sam.Reverse != 0,
		}
		if rec.Flags&sam.Paired != 0 {
			switch {
			case rec.Flags&sam.Read1 != 0:
				c.Mate = 0
			case rec.Flags&sam.Read2 != 0:
				c.Mate = 1
			}
			in.Paired = true
		}
		c.ReadID = n.slot(rec.Name)
		in.Batch.Candidates = append(in.Batch.Candidates, c)
	}
	in.Names = n.list
	in.Batch.NumReads = len(n.list)
	if in.Skipped > 0 {
		log.Debug.Printf("candidates: skipped %d SAM records", in.Skipped)
	}
	return &in, nil
}

func alignmentScore(rec *sam.Record) (int32, bool) {
	aux := rec.AuxFields.Get(asTag)
	if aux == nil {
		return 0, false
	}
	var v int64
	switch x := aux.Value().(type) {
	case int8:
		v = int64(x)
	case uint8:
		v = int64(x)
	case int16:
		v = int64(x)
	case uint16:
		v = int64(x)
	case int32:
		v = int64(x)
	case uint32:
		v = int64(x)
	case int:
		v = int64(x)
	default:
		return 0, false
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	return int32(v), true
}
