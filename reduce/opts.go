// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/scorereduce/pairing"
)

// Strategy selects how partial records are combined. Every strategy
// produces the same result.
type Strategy uint8

const (
	// Sequential folds every shard on the calling goroutine and combines
	// the partial tables left to right.
	Sequential Strategy = iota
	// Pool folds shards on a fixed set of workers and combines the partial
	// tables in balanced pairwise rounds.
	Pool
	// Tree folds and combines shards by recursive range splitting.
	Tree
)

var strategyNames = []string{"sequential", "pool", "tree"}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	for i, name := range strategyNames {
		if strings.EqualFold(s, name) {
			return Strategy(i), nil
		}
	}
	return Sequential, fmt.Errorf("unknown strategy %q, want one of %s", s, strings.Join(strategyNames, ", "))
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// Partition selects how candidates are assigned to shards.
type Partition uint8

const (
	// Contiguous shards are consecutive runs of ShardSize candidates.
	Contiguous Partition = iota
	// Hashed scatters candidates over shards by hashing their contents,
	// which spreads reads with many candidates over many workers.
	Hashed
)

var partitionNames = []string{"contiguous", "hashed"}

// ParsePartition parses a partition name.
func ParsePartition(s string) (Partition, error) {
	for i, name := range partitionNames {
		if strings.EqualFold(s, name) {
			return Partition(i), nil
		}
	}
	return Contiguous, fmt.Errorf("unknown partition %q, want one of %s", s, strings.Join(partitionNames, ", "))
}

func (p Partition) String() string {
	if int(p) < len(partitionNames) {
		return partitionNames[p]
	}
	return fmt.Sprintf("Partition(%d)", uint8(p))
}

// Opts configure one batch reduction. Opts are read-only during Reduce.
type Opts struct {
	// Paired enables mate-aware reduction and pairing.
	Paired bool
	// Pairing constraints, used only if Paired.
	Pairing pairing.Opts
	// RefLen is the length of the reference. Candidates at positions >=
	// RefLen are rejected. 0 accepts any position.
	RefLen uint64
	// Parallelism is the maximum number of concurrent workers. 0 means
	// runtime.NumCPU().
	Parallelism int `validate:"gte=0"`
	// ShardSize is the number of candidates folded by one worker before its
	// partial records are combined with others. 0 means DefaultShardSize.
	ShardSize int `validate:"gte=0"`
	Strategy  Strategy  `validate:"lte=2"`
	Partition Partition `validate:"lte=1"`
}

// DefaultShardSize is the shard size used when Opts.ShardSize is 0.
const DefaultShardSize = 1 << 16

// DefaultOpts is the default single-end configuration.
var DefaultOpts = Opts{
	Pairing:   pairing.DefaultOpts,
	Strategy:  Pool,
	Partition: Contiguous,
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the options. The returned error has kind errors.Invalid.
func (o *Opts) Validate() error {
	err := getValidator().Struct(o)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.E(errors.Invalid, "reduce: invalid options:", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return errors.E(errors.Invalid, "reduce: invalid options: "+strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "gtefield":
		return fmt.Sprintf("%s (%v) must be >= %s", e.Namespace(), e.Value(), e.Param())
	case "gte":
		return fmt.Sprintf("%s (%v) must be >= %s", e.Namespace(), e.Value(), e.Param())
	case "lte":
		return fmt.Sprintf("%s (%v) must be <= %s", e.Namespace(), e.Value(), e.Param())
	}
	return fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag())
}

// IsConfigInvalid reports whether err was caused by invalid options or an
// invalid batch.
func IsConfigInvalid(err error) bool {
	return errors.Is(errors.Invalid, err)
}

func (o *Opts) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.NumCPU()
}

func (o *Opts) shardSize() int {
	if o.ShardSize > 0 {
		return o.ShardSize
	}
	return DefaultShardSize
}
