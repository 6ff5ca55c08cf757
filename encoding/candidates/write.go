// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package candidates

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/scorereduce/pairing"
	"github.com/grailbio/scorereduce/reduce"
	"github.com/grailbio/scorereduce/topk"
)

const (
	readsHeader = "READ\tMATE\tSCORE\tPOS\tSTRAND\tSECOND_SCORE\tSECOND_POS\tSECOND_STRAND\tTIES\tSEEN\tREJECTED"
	pairsHeader = "READ\tKIND\tSCORE\tPOS1\tSTRAND1\tPOS2\tSTRAND2\tSATURATED\tRESCUE"
	missing     = "."
)

func readName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return strconv.Itoa(i)
}

func strand(reverse bool) string {
	if reverse {
		return "-"
	}
	return "+"
}

func writeHit(w *tsv.Writer, h topk.Hit, ok bool) {
	if !ok {
		w.WriteString(missing)
		w.WriteString(missing)
		w.WriteString(missing)
		return
	}
	w.WriteString(strconv.FormatInt(int64(h.Score), 10))
	w.WriteString(strconv.FormatUint(h.Pos, 10))
	w.WriteString(strand(h.Reverse))
}

// WriteReads writes one row per read and mate. Pass one slice of records
// for single-end reads, where MATE is written as 0, or the two mate slices
// of a reduce.PairedEnd, where MATE is 1 or 2.
func WriteReads(w io.Writer, names []string, mates ...[]topk.Record) error {
	out := tsv.NewWriter(w)
	out.WriteString(readsHeader)
	if err := out.EndLine(); err != nil {
		return err
	}
	if len(mates) == 0 {
		return out.Flush()
	}
	for i := range mates[0] {
		for m, recs := range mates {
			rec := &recs[i]
			mate := uint32(0)
			if len(mates) > 1 {
				mate = uint32(m + 1)
			}
			out.WriteString(readName(names, i))
			out.WriteUint32(mate)
			best, ok := rec.Best()
			writeHit(out, best, ok)
			second, ok := rec.Second()
			writeHit(out, second, ok)
			out.WriteString(strconv.FormatUint(rec.TieCount(), 10))
			out.WriteString(strconv.FormatUint(rec.Seen(), 10))
			out.WriteUint32(rec.Rejected())
			if err := out.EndLine(); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

func writeEnd(w *tsv.Writer, e pairing.End) {
	if !e.Mapped {
		w.WriteString(missing)
		w.WriteString(missing)
		return
	}
	w.WriteString(strconv.FormatUint(e.Hit.Pos, 10))
	w.WriteString(strand(e.Hit.Reverse))
}

// WritePairs writes the best joint record of every pair in c: the
// concordant one if it exists, the discordant one otherwise.
func WritePairs(w io.Writer, names []string, c *reduce.PairedEnd) error {
	out := tsv.NewWriter(w)
	out.WriteString(pairsHeader)
	if err := out.EndLine(); err != nil {
		return err
	}
	for i := range c.Pairs {
		p := &c.Pairs[i]
		out.WriteString(readName(names, i))
		j, ok := p.Best()
		switch {
		case !ok:
			out.WriteString("unmapped")
		case j.Concordant:
			out.WriteString("concordant")
		default:
			out.WriteString("discordant")
		}
		if ok {
			out.WriteString(strconv.FormatInt(int64(j.Score), 10))
		} else {
			out.WriteString(missing)
		}
		writeEnd(out, j.A)
		writeEnd(out, j.B)
		out.WriteString(strconv.FormatBool(j.Saturated))
		out.WriteString(strconv.FormatBool(c.Rescue[i]))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
