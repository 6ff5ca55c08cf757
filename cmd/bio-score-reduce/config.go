// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/scorereduce/pairing"
	"github.com/grailbio/scorereduce/reduce"
	"github.com/spf13/viper"
)

// config holds every tunable of a run. Flags fill it first; a -config
// YAML file then overrides the keys it names.
type config struct {
	Format          string `mapstructure:"format"`
	Paired          bool   `mapstructure:"paired"`
	MinFragLen      uint64 `mapstructure:"min-frag-len"`
	MaxFragLen      uint64 `mapstructure:"max-frag-len"`
	Orientation     string `mapstructure:"orientation"`
	UnmappedPenalty int    `mapstructure:"unmapped-penalty"`
	RefLen          uint64 `mapstructure:"ref-len"`
	Parallelism     int    `mapstructure:"parallelism"`
	ShardSize       int    `mapstructure:"shard-size"`
	Strategy        string `mapstructure:"strategy"`
	Partition       string `mapstructure:"partition"`
}

func defaultConfig() config {
	d := reduce.DefaultOpts
	return config{
		Format:          "auto",
		MinFragLen:      d.Pairing.MinFragLen,
		MaxFragLen:      d.Pairing.MaxFragLen,
		Orientation:     d.Pairing.Orientation.String(),
		UnmappedPenalty: int(d.Pairing.UnmappedPenalty),
		Parallelism:     d.Parallelism,
		ShardSize:       d.ShardSize,
		Strategy:        d.Strategy.String(),
		Partition:       d.Partition.String(),
	}
}

// loadConfig overrides fields of cfg with the values in the YAML file at
// path.
func loadConfig(path string, cfg *config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return errors.E(errors.Invalid, err, "reading config "+path)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return errors.E(errors.Invalid, err, "decoding config "+path)
	}
	return nil
}

// opts converts cfg into validated reduction options.
func (c *config) opts() (reduce.Opts, error) {
	o := reduce.DefaultOpts
	orientation, err := pairing.ParseOrientation(c.Orientation)
	if err != nil {
		return o, errors.E(errors.Invalid, err)
	}
	strategy, err := reduce.ParseStrategy(c.Strategy)
	if err != nil {
		return o, errors.E(errors.Invalid, err)
	}
	partition, err := reduce.ParsePartition(c.Partition)
	if err != nil {
		return o, errors.E(errors.Invalid, err)
	}
	if int64(c.UnmappedPenalty) != int64(int32(c.UnmappedPenalty)) {
		return o, errors.E(errors.Invalid, "unmapped-penalty out of range")
	}
	o.Paired = c.Paired
	o.Pairing = pairing.Opts{
		MinFragLen:      c.MinFragLen,
		MaxFragLen:      c.MaxFragLen,
		Orientation:     orientation,
		UnmappedPenalty: int32(c.UnmappedPenalty),
	}
	o.RefLen = c.RefLen
	o.Parallelism = c.Parallelism
	o.ShardSize = c.ShardSize
	o.Strategy = strategy
	o.Partition = partition
	return o, o.Validate()
}
