// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
Package reduce turns a batch of candidate alignment scores into one top-2
record per read, and in paired mode one joint record per read pair.

Reduction runs in two levels. The candidate buffer is first split into
shards, either contiguous runs or a hash scatter. Each shard is folded by
one worker into a table of partial records, one per read (or mate) that
occurs in the shard, using topk.Record.Add. The partial tables are then
combined pairwise with topk.Combine until a single table remains. Since
Combine is associative and commutative, the shape of this combination tree
does not matter, and three interchangeable strategies are provided:

  Sequential  one goroutine, left fold; useful for testing.
  Pool        a fixed worker pool folds shards, then balanced pairwise rounds.
  Tree        recursive range splitting with parallel.RangeReduce.

Each read's record is private to the partial table that holds it, so no
lock is taken anywhere during the reduction.

Once every mate is final, each slot of the batch is summarized (paired
mode runs pairing.Combine on the two mates) and handed to a Context, which
decides where results go. SingleEnd and PairedEnd write into buffers
indexed by read slot; PairedEnd also raises a rescue marker for pairs
without a concordant combination.

Error handling:

Option and batch validation happens before any work and fails with an error
of kind errors.Invalid. A candidate naming a read outside the batch is
dropped, and a candidate positioned past the end of the reference is
rejected into its read's record; neither aborts the batch.
*/
package reduce
