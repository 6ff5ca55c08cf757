// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"encoding/binary"
	"sort"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/scorereduce/topk"
)

// shard is the unit of work of one local fold: either the contiguous range
// [lo, hi) of the candidate buffer, or the candidates listed in idx.
type shard struct {
	lo, hi int
	idx    []int32
}

// makeShards splits the candidates of b into shards of about opts.ShardSize
// candidates.
func makeShards(b *Batch, opts *Opts) []shard {
	n := len(b.Candidates)
	if n == 0 {
		return nil
	}
	size := opts.shardSize()
	nShard := (n + size - 1) / size
	shards := make([]shard, nShard)
	switch opts.Partition {
	case Hashed:
		var buf [17]byte
		for i := range b.Candidates {
			c := &b.Candidates[i]
			binary.LittleEndian.PutUint32(buf[0:], c.ReadID)
			binary.LittleEndian.PutUint32(buf[4:], uint32(c.Score))
			binary.LittleEndian.PutUint64(buf[8:], c.Pos)
			buf[16] = byte(c.Mate)
			s := &shards[farm.Hash64(buf[:])%uint64(nShard)]
			if s.idx == nil {
				s.idx = make([]int32, 0, size)
			}
			s.idx = append(s.idx, int32(i))
		}
	default:
		for i := range shards {
			shards[i].lo = i * size
			shards[i].hi = (i + 1) * size
			if shards[i].hi > n {
				shards[i].hi = n
			}
		}
	}
	return shards
}

// entry is the partial record of one read (or mate).
type entry struct {
	key key
	rec topk.Record
}

// partial is the result of folding one or more shards. Entries are sorted
// by key and keys are unique.
type partial struct {
	entries []entry
	// dropped counts candidates that could not be assigned to a read.
	dropped int
}

// folder folds shards of one batch.
type folder struct {
	batch *Batch
	opts  *Opts
}

func (f *folder) fold(s *shard) partial {
	var (
		p     partial
		index = make(map[key]int)
	)
	visit := func(c *Candidate) {
		if int64(c.ReadID) >= int64(f.batch.NumReads) {
			p.dropped++
			return
		}
		mate := 0
		if f.opts.Paired {
			if c.Mate != 0 && c.Mate != 1 {
				p.dropped++
				return
			}
			mate = int(c.Mate)
		}
		k := makeKey(c.ReadID, mate)
		i, ok := index[k]
		if !ok {
			i = len(p.entries)
			index[k] = i
			p.entries = append(p.entries, entry{key: k})
		}
		rec := &p.entries[i].rec
		if f.opts.RefLen > 0 && c.Pos >= f.opts.RefLen {
			rec.Reject()
			return
		}
		rec.Add(c.Hit())
	}
	if s.idx != nil {
		for _, i := range s.idx {
			visit(&f.batch.Candidates[i])
		}
	} else {
		for i := s.lo; i < s.hi; i++ {
			visit(&f.batch.Candidates[i])
		}
	}
	sort.Slice(p.entries, func(i, j int) bool { return p.entries[i].key < p.entries[j].key })
	return p
}

// mergePartials combines two partials. Records of the same read are merged
// with topk.Combine.
func mergePartials(a, b partial) partial {
	if len(a.entries) == 0 {
		b.dropped += a.dropped
		return b
	}
	if len(b.entries) == 0 {
		a.dropped += b.dropped
		return a
	}
	out := partial{
		entries: make([]entry, 0, len(a.entries)+len(b.entries)),
		dropped: a.dropped + b.dropped,
	}
	i, j := 0, 0
	for i < len(a.entries) && j < len(b.entries) {
		ea, eb := &a.entries[i], &b.entries[j]
		switch {
		case ea.key < eb.key:
			out.entries = append(out.entries, *ea)
			i++
		case eb.key < ea.key:
			out.entries = append(out.entries, *eb)
			j++
		default:
			out.entries = append(out.entries, entry{key: ea.key, rec: topk.Combine(ea.rec, eb.rec)})
			i++
			j++
		}
	}
	out.entries = append(out.entries, a.entries[i:]...)
	out.entries = append(out.entries, b.entries[j:]...)
	return out
}
