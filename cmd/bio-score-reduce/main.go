// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
bio-score-reduce reduces the scored candidate alignments of a batch of reads
to the best and second-best hit per read, pairs the mates of paired reads,
and writes the results as TSV.

  bio-score-reduce [OPTIONS] -out prefix candidates.{tsv,sam}[.gz]

writes prefix.reads.tsv and, for paired input, prefix.pairs.tsv.
*/

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/scorereduce/encoding/candidates"
	"github.com/grailbio/scorereduce/reduce"
	"github.com/grailbio/scorereduce/topk"
	"github.com/klauspost/compress/gzip"
)

func usage() {
	fmt.Printf("Usage: %s [OPTIONS] -out prefix candidates.{tsv,sam}[.gz]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	cfg := defaultConfig()
	flag.StringVar(&cfg.Format, "format", cfg.Format, "Input format: 'tsv', 'sam', or 'auto' to pick by file extension")
	flag.BoolVar(&cfg.Paired, "paired", cfg.Paired, "Treat the input as paired-end even if no candidate names a mate")
	flag.Uint64Var(&cfg.MinFragLen, "min-frag-len", cfg.MinFragLen, "Minimum distance between concordant mates")
	flag.Uint64Var(&cfg.MaxFragLen, "max-frag-len", cfg.MaxFragLen, "Maximum distance between concordant mates")
	flag.StringVar(&cfg.Orientation, "orientation", cfg.Orientation, "Expected mate orientation: 'fr', 'ff' or 'rf'")
	flag.IntVar(&cfg.UnmappedPenalty, "unmapped-penalty", cfg.UnmappedPenalty, "Score contributed by a mate without hits")
	flag.Uint64Var(&cfg.RefLen, "ref-len", cfg.RefLen, "Reject candidates at or past this position; 0 takes the length from the SAM header, if any")
	flag.IntVar(&cfg.Parallelism, "parallelism", cfg.Parallelism, "Number of workers; 0 = runtime.NumCPU()")
	flag.IntVar(&cfg.ShardSize, "shard-size", cfg.ShardSize, "Candidates per shard; 0 picks a default")
	flag.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Reduction strategy: 'sequential', 'pool' or 'tree'")
	flag.StringVar(&cfg.Partition, "partition", cfg.Partition, "Shard partitioning: 'contiguous' or 'hashed'")
	configPath := flag.String("config", "", "YAML file whose keys override the flags")
	outPrefix := flag.String("out", "bio-score-reduce", "Output path prefix")
	flag.Usage = usage

	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Expected exactly one input path, got '%s'", strings.Join(flag.Args(), " "))
	}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			log.Fatalf("%v", err)
		}
	}
	ctx := vcontext.Background()
	if _, err := run(ctx, &cfg, flag.Arg(0), *outPrefix); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}

func inputFormat(cfg *config, path string) (string, error) {
	switch cfg.Format {
	case "tsv", "sam":
		return cfg.Format, nil
	case "auto", "":
		p := strings.TrimSuffix(path, ".gz")
		if strings.HasSuffix(p, ".sam") {
			return "sam", nil
		}
		return "tsv", nil
	}
	return "", errors.E(errors.Invalid, fmt.Sprintf("unknown input format %q", cfg.Format))
}

func readInput(ctx context.Context, path, format string) (in *candidates.Input, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, f, &err)
	var r io.Reader = f.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "opening", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	if format == "sam" {
		return candidates.ReadSAM(r)
	}
	return candidates.ReadTSV(r)
}

func writeOutput(ctx context.Context, path string, write func(w io.Writer) error) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	return write(f.Writer(ctx))
}

// run reduces the candidates at inPath and writes the reports under
// outPrefix. It returns the checksum of the reported records.
func run(ctx context.Context, cfg *config, inPath, outPrefix string) (uint64, error) {
	opts, err := cfg.opts()
	if err != nil {
		return 0, err
	}
	format, err := inputFormat(cfg, inPath)
	if err != nil {
		return 0, err
	}
	in, err := readInput(ctx, inPath, format)
	if err != nil {
		return 0, err
	}
	opts.Paired = opts.Paired || in.Paired
	if opts.RefLen == 0 {
		opts.RefLen = in.RefLen
	}
	log.Printf("%s: %d reads, %d candidates, %d records skipped, paired %v",
		inPath, in.Batch.NumReads, len(in.Batch.Candidates), in.Skipped, opts.Paired)

	var sum uint64
	readsPath := outPrefix + ".reads.tsv"
	if opts.Paired {
		sink := reduce.NewPairedEnd(in.Batch.NumReads)
		stats, err := reduce.Reduce(&in.Batch, &opts, sink)
		if err != nil {
			return 0, err
		}
		log.Printf("reduce: %v", stats)
		if err := writeOutput(ctx, readsPath, func(w io.Writer) error {
			return candidates.WriteReads(w, in.Names, sink.Mates[0], sink.Mates[1])
		}); err != nil {
			return 0, err
		}
		if err := writeOutput(ctx, outPrefix+".pairs.tsv", func(w io.Writer) error {
			return candidates.WritePairs(w, in.Names, sink)
		}); err != nil {
			return 0, err
		}
		sum = candidates.Checksum(sink.Mates[:], sink.Pairs)
	} else {
		sink := reduce.NewSingleEnd(in.Batch.NumReads)
		stats, err := reduce.Reduce(&in.Batch, &opts, sink)
		if err != nil {
			return 0, err
		}
		log.Printf("reduce: %v", stats)
		if err := writeOutput(ctx, readsPath, func(w io.Writer) error {
			return candidates.WriteReads(w, in.Names, sink.Records)
		}); err != nil {
			return 0, err
		}
		sum = candidates.Checksum([][]topk.Record{sink.Records}, nil)
	}
	log.Printf("checksum: %016x", sum)
	return sum, nil
}
