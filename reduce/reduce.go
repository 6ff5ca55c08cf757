// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"fmt"
	"math"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/scorereduce/pairing"
	"github.com/grailbio/scorereduce/topk"
)

// Stats summarize one batch.
type Stats struct {
	Reads      int
	Candidates int
	Shards     int
	// Dropped counts candidates naming a read outside the batch, or, in
	// paired mode, a mate other than 0 or 1.
	Dropped int
	// Rejected counts candidates whose position is outside the reference.
	// They are also counted in their read's record.
	Rejected int

	// The remaining fields are set in paired mode only.

	// Concordant counts pairs with a concordant combination.
	Concordant int
	// Discordant counts pairs with at least one mapped mate but no
	// concordant combination. Each of them is marked for rescue.
	Discordant int
	// Unmapped counts pairs whose mates both have no hits.
	Unmapped int
	// Saturated counts pairs whose reported joint score was clamped.
	Saturated int
}

func (s *Stats) add(o *Stats) {
	s.Rejected += o.Rejected
	s.Concordant += o.Concordant
	s.Discordant += o.Discordant
	s.Unmapped += o.Unmapped
	s.Saturated += o.Saturated
}

func (s Stats) String() string {
	return fmt.Sprintf("reads:%d candidates:%d shards:%d dropped:%d rejected:%d concordant:%d discordant:%d unmapped:%d saturated:%d",
		s.Reads, s.Candidates, s.Shards, s.Dropped, s.Rejected, s.Concordant, s.Discordant, s.Unmapped, s.Saturated)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Reduce folds the candidates of b into one record per read (per mate in
// paired mode), pairs mates if opts.Paired, and reports every read slot of
// b to sink exactly once.
//
// Invalid options or an invalid batch are detected before any work and
// reported as an error of kind errors.Invalid; sink is then left
// untouched. Anomalous candidates never fail the batch: they are counted in
// Stats and in their read's record.
//
// The reported records do not depend on the order of b.Candidates, on
// opts.Strategy, opts.Partition or opts.ShardSize.
func Reduce(b *Batch, opts *Opts, sink Context) (Stats, error) {
	if err := opts.Validate(); err != nil {
		return Stats{}, err
	}
	if b == nil || b.NumReads < 0 || int64(b.NumReads) > math.MaxUint32+1 {
		return Stats{}, errors.E(errors.Invalid, "reduce: invalid batch")
	}
	if sink == nil {
		return Stats{}, errors.E(errors.Invalid, "reduce: nil context")
	}
	lc, tracked := sink.(lifecycle)
	if tracked {
		if err := lc.advance(b.NumReads, Reducing); err != nil {
			return Stats{}, err
		}
	}

	shards := makeShards(b, opts)
	stats := Stats{
		Reads:      b.NumReads,
		Candidates: len(b.Candidates),
		Shards:     len(shards),
	}
	log.Debug.Printf("reduce: %d reads, %d candidates, %d shards, strategy %v, partition %v",
		b.NumReads, len(b.Candidates), len(shards), opts.Strategy, opts.Partition)

	f := &folder{batch: b, opts: opts}
	final, err := combineShards(f, shards, opts)
	if err != nil {
		return Stats{}, err
	}
	stats.Dropped = final.dropped

	// Every mate is final past this point, so pairing may start.
	nMates := 1
	if opts.Paired {
		nMates = 2
	}
	var recs [2][]topk.Record
	for m := 0; m < nMates; m++ {
		recs[m] = make([]topk.Record, b.NumReads)
	}
	for i := range final.entries {
		e := &final.entries[i]
		recs[e.key.mate()][e.key.read()] = e.rec
	}
	final.entries = nil
	if tracked {
		if err := lc.advance(b.NumReads, Reduced); err != nil {
			return Stats{}, err
		}
	}

	parallelism := minInt(opts.parallelism(), b.NumReads)
	if parallelism < 1 {
		parallelism = 1
	}
	jobStats := make([]Stats, parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		start := (jobIdx * b.NumReads) / parallelism
		end := ((jobIdx + 1) * b.NumReads) / parallelism
		st := &jobStats[jobIdx]
		var s Summary
		for read := start; read < end; read++ {
			s = Summary{Paired: opts.Paired}
			for m := 0; m < nMates; m++ {
				s.Mates[m] = recs[m][read]
				st.Rejected += int(s.Mates[m].Rejected())
			}
			if opts.Paired {
				s.Pair = pairing.Combine(&s.Mates[0], &s.Mates[1], &opts.Pairing)
				switch {
				case s.Pair.HasConcordant:
					st.Concordant++
				case s.Pair.HasDiscordant:
					st.Discordant++
				default:
					st.Unmapped++
				}
				if j, ok := s.Pair.Best(); ok && j.Saturated {
					st.Saturated++
				}
			}
			sink.Report(uint32(read), &s)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	for i := range jobStats {
		stats.add(&jobStats[i])
	}
	log.Debug.Printf("reduce: done, %v", stats)
	return stats, nil
}

// combineShards folds every shard and combines the partial results into
// one partial with the strategy selected by opts.
func combineShards(f *folder, shards []shard, opts *Opts) (partial, error) {
	if len(shards) == 0 {
		return partial{}, nil
	}
	parallelism := minInt(opts.parallelism(), len(shards))
	switch opts.Strategy {
	case Sequential:
		var acc partial
		for i := range shards {
			acc = mergePartials(acc, f.fold(&shards[i]))
		}
		return acc, nil
	case Tree:
		result := parallel.RangeReduce(0, len(shards), parallelism, func(low, high int) interface{} {
			var acc partial
			for i := low; i < high; i++ {
				acc = mergePartials(acc, f.fold(&shards[i]))
			}
			return acc
		}, func(x, y interface{}) interface{} {
			return mergePartials(x.(partial), y.(partial))
		})
		return result.(partial), nil
	}

	parts := make([]partial, len(shards))
	err := traverse.Each(parallelism, func(jobIdx int) error {
		start := (jobIdx * len(shards)) / parallelism
		end := ((jobIdx + 1) * len(shards)) / parallelism
		for i := start; i < end; i++ {
			parts[i] = f.fold(&shards[i])
		}
		return nil
	})
	if err != nil {
		return partial{}, err
	}
	// Combine neighbors pairwise until one partial remains.
	for len(parts) > 1 {
		nPair := len(parts) / 2
		next := make([]partial, (len(parts)+1)/2)
		if len(parts)%2 == 1 {
			next[nPair] = parts[len(parts)-1]
		}
		p := minInt(parallelism, nPair)
		err = traverse.Each(p, func(jobIdx int) error {
			start := (jobIdx * nPair) / p
			end := ((jobIdx + 1) * nPair) / p
			for i := start; i < end; i++ {
				next[i] = mergePartials(parts[2*i], parts[2*i+1])
			}
			return nil
		})
		if err != nil {
			return partial{}, err
		}
		parts = next
	}
	return parts[0], nil
}
