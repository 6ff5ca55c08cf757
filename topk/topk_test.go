// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package topk

import (
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func fold(hits []Hit) Record {
	var r Record
	for _, h := range hits {
		r.Add(h)
	}
	return r
}

func fwd(score int32, pos uint64) Hit { return Hit{Score: score, Pos: pos} }

func rev(score int32, pos uint64) Hit { return Hit{Score: score, Pos: pos, Reverse: true} }

func TestTopTwo(t *testing.T) {
	tests := []struct {
		name      string
		hits      []Hit
		best      Hit
		second    Hit
		hasSecond bool
		ties      uint64
	}{
		{
			name:      "equal scores prefer lower position",
			hits:      []Hit{fwd(80, 100), fwd(80, 500), fwd(60, 900)},
			best:      fwd(80, 100),
			second:    fwd(80, 500),
			hasSecond: true,
			ties:      1,
		},
		{
			name: "same position never seeds second",
			hits: []Hit{fwd(80, 100), fwd(75, 100), fwd(90, 100)},
			best: fwd(90, 100),
		},
		{
			name:      "higher score displaces best into second",
			hits:      []Hit{fwd(50, 10), fwd(70, 20)},
			best:      fwd(70, 20),
			second:    fwd(50, 10),
			hasSecond: true,
		},
		{
			name:      "new best at second's position",
			hits:      []Hit{fwd(90, 1), fwd(80, 2), fwd(95, 2)},
			best:      fwd(95, 2),
			second:    fwd(90, 1),
			hasSecond: true,
		},
		{
			name:      "new best at best's position keeps second",
			hits:      []Hit{fwd(90, 1), fwd(80, 2), fwd(95, 1)},
			best:      fwd(95, 1),
			second:    fwd(80, 2),
			hasSecond: true,
		},
		{
			name:      "second upgraded at its own position",
			hits:      []Hit{fwd(90, 1), fwd(80, 2), fwd(85, 2), fwd(82, 3)},
			best:      fwd(90, 1),
			second:    fwd(85, 2),
			hasSecond: true,
		},
		{
			name:      "ties restart on a strictly better score",
			hits:      []Hit{fwd(80, 1), fwd(80, 2), fwd(80, 3), fwd(81, 4)},
			best:      fwd(81, 4),
			second:    fwd(80, 1),
			hasSecond: true,
			ties:      0,
		},
		{
			name:      "repeated tied hits at other positions are counted",
			hits:      []Hit{fwd(80, 5), fwd(80, 1), fwd(80, 5), fwd(80, 1)},
			best:      fwd(80, 1),
			second:    fwd(80, 5),
			hasSecond: true,
			ties:      2,
		},
		{
			name: "forward strand wins an exact tie",
			hits: []Hit{rev(80, 7), fwd(80, 7), rev(80, 7)},
			best: fwd(80, 7),
		},
	}
	for _, test := range tests {
		r := fold(test.hits)
		best, ok := r.Best()
		assert.True(t, ok, test.name)
		assert.Equal(t, test.best, best, test.name)
		second, ok := r.Second()
		assert.Equal(t, test.hasSecond, ok, test.name)
		if test.hasSecond {
			assert.Equal(t, test.second, second, test.name)
		}
		assert.Equal(t, test.ties, r.TieCount(), test.name)
		assert.Equal(t, uint64(len(test.hits)), r.Seen(), test.name)
	}
}

func TestEmpty(t *testing.T) {
	var r Record
	expect.True(t, r.Empty())
	_, ok := r.Best()
	expect.False(t, ok)
	_, ok = r.Second()
	expect.False(t, ok)
	expect.EQ(t, r.TieCount(), uint64(0))
	expect.EQ(t, r.String(), "{empty seen:0}")

	c := Combine(Record{}, Record{})
	expect.True(t, c.Empty())
}

func TestSinglePosition(t *testing.T) {
	var r Record
	for i := 0; i < 1000; i++ {
		r.Add(Hit{Score: int32(rand.Intn(100)), Pos: 42, Reverse: rand.Intn(2) == 0})
	}
	_, ok := r.Second()
	expect.False(t, ok)
	expect.EQ(t, r.TieCount(), uint64(0))
	expect.EQ(t, r.Seen(), uint64(1000))
}

func TestReject(t *testing.T) {
	var r Record
	r.Add(fwd(10, 1))
	r.Reject()
	r.Reject()
	expect.EQ(t, r.Rejected(), uint32(2))
	expect.EQ(t, r.Seen(), uint64(3))
	best, _ := r.Best()
	expect.EQ(t, best, fwd(10, 1))

	r.Reset()
	expect.True(t, r.Empty())
	expect.EQ(t, r.Seen(), uint64(0))
}

func TestString(t *testing.T) {
	r := fold([]Hit{fwd(80, 100), rev(80, 500)})
	expect.EQ(t, r.String(), "{best:(80,100+) second:(80,500-) ties:1 seen:2 rejected:0}")
}

// randomHits draws hits from a small space so that positions and scores
// collide often.
func randomHits(rnd *rand.Rand, n int) []Hit {
	hits := make([]Hit, n)
	for i := range hits {
		hits[i] = Hit{
			Score:   int32(rnd.Intn(6)),
			Pos:     uint64(rnd.Intn(8)),
			Reverse: rnd.Intn(2) == 0,
		}
	}
	return hits
}

func TestOrderIndependence(t *testing.T) {
	rnd := rand.New(rand.NewSource(0))
	for iter := 0; iter < 500; iter++ {
		hits := randomHits(rnd, rnd.Intn(20)+1)
		want := fold(hits)
		for p := 0; p < 10; p++ {
			rnd.Shuffle(len(hits), func(i, j int) { hits[i], hits[j] = hits[j], hits[i] })
			assert.Equal(t, want, fold(hits), "hits %v", hits)
		}
	}
}

// treeCombine splits hits into random pieces and combines them in a
// random tree shape.
func treeCombine(rnd *rand.Rand, hits []Hit) Record {
	if len(hits) <= 2 || rnd.Intn(4) == 0 {
		return fold(hits)
	}
	mid := rnd.Intn(len(hits)-1) + 1
	a, b := treeCombine(rnd, hits[:mid]), treeCombine(rnd, hits[mid:])
	if rnd.Intn(2) == 0 {
		return Combine(a, b)
	}
	return Combine(b, a)
}

func TestCombineMatchesFold(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		hits := randomHits(rnd, rnd.Intn(40)+1)
		want := fold(hits)
		for p := 0; p < 10; p++ {
			rnd.Shuffle(len(hits), func(i, j int) { hits[i], hits[j] = hits[j], hits[i] })
			assert.Equal(t, want, treeCombine(rnd, hits), "hits %v", hits)
		}
	}
}

func TestCombineAssociative(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for iter := 0; iter < 1000; iter++ {
		a := fold(randomHits(rnd, rnd.Intn(6)))
		b := fold(randomHits(rnd, rnd.Intn(6)))
		c := fold(randomHits(rnd, rnd.Intn(6)))
		assert.Equal(t, Combine(Combine(a, b), c), Combine(a, Combine(b, c)))
		assert.Equal(t, Combine(a, b), Combine(b, a))
	}
}

func TestBefore(t *testing.T) {
	expect.True(t, fwd(2, 9).Before(fwd(1, 0)))
	expect.True(t, fwd(1, 0).Before(fwd(1, 9)))
	expect.True(t, fwd(1, 0).Before(rev(1, 0)))
	expect.False(t, rev(1, 0).Before(fwd(1, 0)))
	expect.False(t, fwd(1, 0).Before(fwd(1, 0)))
}

func BenchmarkAdd(b *testing.B) {
	rnd := rand.New(rand.NewSource(0))
	hits := make([]Hit, 4096)
	for i := range hits {
		hits[i] = Hit{Score: int32(rnd.Intn(200)), Pos: uint64(rnd.Int63())}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var r Record
		for _, h := range hits {
			r.Add(h)
		}
	}
}
