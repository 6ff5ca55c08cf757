// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package candidates

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/scorereduce/pairing"
	"github.com/grailbio/scorereduce/reduce"
	"github.com/grailbio/scorereduce/topk"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}

const singleTSV = `READ	MATE	SCORE	POS	STRAND
# comment
q1	0	80	100	+
q2	0	90	100	-
q1	0	80	500	+
`

func TestReadTSV(t *testing.T) {
	in, err := ReadTSV(strings.NewReader(singleTSV))
	require.NoError(t, err)
	expect.EQ(t, in.Names, []string{"q1", "q2"})
	expect.EQ(t, in.Batch.NumReads, 2)
	expect.False(t, in.Paired)
	expect.EQ(t, in.Batch.Candidates, []reduce.Candidate{
		{ReadID: 0, Mate: reduce.NoMate, Score: 80, Pos: 100},
		{ReadID: 1, Mate: reduce.NoMate, Score: 90, Pos: 100, Reverse: true},
		{ReadID: 0, Mate: reduce.NoMate, Score: 80, Pos: 500},
	})

	in, err = ReadTSV(strings.NewReader("READ\tMATE\tSCORE\tPOS\tSTRAND\np\t2\t-5\t7\t-\np\t1\t3\t0\t+\n"))
	require.NoError(t, err)
	expect.True(t, in.Paired)
	expect.EQ(t, in.Batch.Candidates[0].Mate, int8(1))
	expect.EQ(t, in.Batch.Candidates[1].Mate, int8(0))
	expect.EQ(t, in.Batch.Candidates[0].Score, int32(-5))
}

func TestReadTSVErrors(t *testing.T) {
	for _, test := range []struct {
		row, err string
	}{
		{"q\t3\t1\t1\t+", "MATE"},
		{"q\t0\t1\t1\tx", "STRAND"},
		{"q\t0\t1\t-1\t+", "POS"},
		{"q\t0\t99999999999\t1\t+", "SCORE"},
	} {
		_, err := ReadTSV(strings.NewReader("READ\tMATE\tSCORE\tPOS\tSTRAND\n" + test.row + "\n"))
		require.Error(t, err, test.row)
		expect.True(t, errors.Is(errors.Invalid, err), test.row)
		expect.HasSubstr(t, err.Error(), test.err)
	}
}

const multiHitSAM = `@HD	VN:1.5	SO:unsorted
@SQ	SN:chr1	LN:1000
@SQ	SN:chr2	LN:500
r1	67	chr1	101	60	10M	=	201	110	ACGTACGTAC	*	AS:i:50
r1	147	chr1	201	60	10M	=	101	-110	ACGTACGTAC	*	AS:i:45
r2	4	*	0	0	*	*	0	0	ACGT	*
r3	0	chr2	11	60	4M	*	0	0	ACGT	*
r4	0	chr2	11	60	4M	*	0	0	ACGT	*	AS:i:-3
r1	323	chr2	1	0	10M	*	0	0	ACGTACGTAC	*	AS:i:300
`

func TestReadSAM(t *testing.T) {
	in, err := ReadSAM(strings.NewReader(multiHitSAM))
	require.NoError(t, err)
	expect.EQ(t, in.Names, []string{"r1", "r4"})
	expect.EQ(t, in.Skipped, 2)
	expect.EQ(t, in.RefLen, uint64(1500))
	expect.True(t, in.Paired)
	expect.EQ(t, in.Batch.NumReads, 2)
	expect.EQ(t, in.Batch.Candidates, []reduce.Candidate{
		{ReadID: 0, Mate: 0, Score: 50, Pos: 100},
		{ReadID: 0, Mate: 1, Score: 45, Pos: 200, Reverse: true},
		{ReadID: 1, Mate: reduce.NoMate, Score: -3, Pos: 1010},
		{ReadID: 0, Mate: 0, Score: 300, Pos: 1000},
	})
}

func TestWriteReads(t *testing.T) {
	in, err := ReadTSV(strings.NewReader(singleTSV))
	require.NoError(t, err)
	sink := reduce.NewSingleEnd(in.Batch.NumReads)
	_, err = reduce.Reduce(&in.Batch, &reduce.DefaultOpts, sink)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReads(&buf, in.Names, sink.Records))
	expect.EQ(t, buf.String(), readsHeader+"\n"+
		"q1\t0\t80\t100\t+\t80\t500\t+\t1\t2\t0\n"+
		"q2\t0\t90\t100\t-\t.\t.\t.\t0\t1\t0\n")
}

func pairedBatch() *reduce.Batch {
	return &reduce.Batch{
		NumReads: 3,
		Candidates: []reduce.Candidate{
			{ReadID: 0, Mate: 0, Score: 100, Pos: 1000},
			{ReadID: 0, Mate: 1, Score: 90, Pos: 1150, Reverse: true},
			{ReadID: 1, Mate: 0, Score: 100, Pos: 3000},
		},
	}
}

func TestWritePairs(t *testing.T) {
	opts := reduce.DefaultOpts
	opts.Paired = true
	b := pairedBatch()
	sink := reduce.NewPairedEnd(b.NumReads)
	_, err := reduce.Reduce(b, &opts, sink)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePairs(&buf, []string{"p0", "p1"}, sink))
	expect.EQ(t, buf.String(), pairsHeader+"\n"+
		"p0\tconcordant\t190\t1000\t+\t1150\t-\tfalse\tfalse\n"+
		"p1\tdiscordant\t40\t3000\t+\t.\t.\tfalse\ttrue\n"+
		"2\tunmapped\t.\t.\t.\t.\t.\tfalse\tfalse\n")

	buf.Reset()
	require.NoError(t, WriteReads(&buf, nil, sink.Mates[0], sink.Mates[1]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	expect.EQ(t, len(lines), 7)
	expect.EQ(t, lines[1], "0\t1\t100\t1000\t+\t.\t.\t.\t0\t1\t0")
	expect.EQ(t, lines[2], "0\t2\t90\t1150\t-\t.\t.\t.\t0\t1\t0")
}

func TestChecksum(t *testing.T) {
	b := pairedBatch()
	var sums []uint64
	for _, strategy := range []reduce.Strategy{reduce.Sequential, reduce.Pool, reduce.Tree} {
		opts := reduce.DefaultOpts
		opts.Paired = true
		opts.Strategy = strategy
		opts.ShardSize = 1
		opts.Partition = reduce.Hashed
		sink := reduce.NewPairedEnd(b.NumReads)
		_, err := reduce.Reduce(b, &opts, sink)
		require.NoError(t, err)
		sums = append(sums, Checksum(sink.Mates[:], sink.Pairs))
	}
	expect.EQ(t, sums[0], sums[1])
	expect.EQ(t, sums[0], sums[2])

	var a, c topk.Record
	a.Add(topk.Hit{Score: 1, Pos: 2})
	c.Add(topk.Hit{Score: 1, Pos: 2, Reverse: true})
	expect.True(t, Checksum([][]topk.Record{{a}}, nil) != Checksum([][]topk.Record{{c}}, nil))
	expect.True(t, Checksum(nil, []pairing.Record{{}}) != Checksum(nil, nil))
}
