package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/uci"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

var (
	hash    = flag.Uint64("hash", 32, "Transposition table size in MB")
	depth   = flag.Int("depth", 0, "Search depth limit in plies (zero if unlimited)")
	multipv = flag.Int("multipv", 1, "Number of best lines to compute")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: chessop [options]

CHESSOP is a UCI chess engine.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	opts := uci.Options{
		Hash:    *hash,
		MultiPV: *multipv,
	}
	if *depth > 0 {
		opts.Depth = lang.Some(*depth)
	}

	in := uci.ReadStdinLines(ctx)
	switch <-in {
	case uci.ProtocolName:
		driver, out := uci.NewDriver(ctx, "chessop", "corvani", eval.Material{}, in, opts)
		go uci.WriteStdoutLines(ctx, out)

		<-driver.Closed()

	default:
		flag.Usage()
		logw.Exitf(ctx, "Protocol not supported")
	}
}
