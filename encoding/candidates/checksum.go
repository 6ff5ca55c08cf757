// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package candidates

import (
	"encoding/binary"
	"hash"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/scorereduce/pairing"
	"github.com/grailbio/scorereduce/topk"
)

func hashHit(h hash.Hash64, buf []byte, hit topk.Hit, ok bool) {
	for i := range buf {
		buf[i] = 0
	}
	if ok {
		binary.LittleEndian.PutUint32(buf[0:], uint32(hit.Score))
		binary.LittleEndian.PutUint64(buf[4:], hit.Pos)
		buf[12] = 1
		if hit.Reverse {
			buf[13] = 1
		}
	}
	h.Write(buf)
}

// Checksum hashes the reported records of a batch in slot order. Two runs
// over the same candidates produce the same checksum regardless of the
// reduction strategy. pairs may be nil for single-end batches.
func Checksum(mates [][]topk.Record, pairs []pairing.Record) uint64 {
	h := seahash.New()
	buf := make([]byte, 14)
	var counts [20]byte
	for _, recs := range mates {
		for i := range recs {
			rec := &recs[i]
			best, ok := rec.Best()
			hashHit(h, buf, best, ok)
			second, ok := rec.Second()
			hashHit(h, buf, second, ok)
			binary.LittleEndian.PutUint64(counts[0:], rec.TieCount())
			binary.LittleEndian.PutUint64(counts[8:], rec.Seen())
			binary.LittleEndian.PutUint32(counts[16:], rec.Rejected())
			h.Write(counts[:])
		}
	}
	for i := range pairs {
		j, ok := pairs[i].Best()
		hashHit(h, buf, j.A.Hit, ok && j.A.Mapped)
		hashHit(h, buf, j.B.Hit, ok && j.B.Mapped)
		var flags [5]byte
		binary.LittleEndian.PutUint32(flags[0:], uint32(j.Score))
		if j.Concordant {
			flags[4] |= 1
		}
		if j.Saturated {
			flags[4] |= 2
		}
		if ok {
			flags[4] |= 4
		}
		h.Write(flags[:])
	}
	return h.Sum64()
}
