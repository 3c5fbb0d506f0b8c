// Package uci contains a driver for using the engine under the UCI
// protocol.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
// See: https://en.wikipedia.org/wiki/Universal_Chess_Interface
package uci

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/corvani/chessop/pkg/search"
	"github.com/corvani/chessop/pkg/search/searchctl"
	"github.com/corvani/chessop/pkg/searchnode"
	"github.com/corvani/chessop/pkg/tt"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
	"go.uber.org/atomic"
)

// ProtocolName is the protocol selector expected as the first input line.
const ProtocolName = "uci"

var version = build.NewVersion(0, 3, 0)

// Options are engine runtime options, adjustable over the protocol.
type Options struct {
	// Hash is the transposition table size in MB.
	Hash uint64
	// MultiPV is the number of best lines to compute and report.
	MultiPV int
	// Depth, if set, limits every search to the given depth.
	Depth lang.Optional[int]
}

func (o Options) String() string {
	return fmt.Sprintf("{hash=%v, multipv=%v, depth=%v}", o.Hash, o.MultiPV, o.Depth)
}

// Driver implements a UCI driver for the engine. It reads commands from
// the in channel and emits protocol responses on the returned out channel.
type Driver struct {
	name, author string
	ev           eval.Evaluator
	opts         Options

	out chan string

	table  *tt.Table
	server *searchctl.Server

	fen   string
	moves []string

	searchID atomic.Uint64
	active   atomic.Bool

	quit   chan struct{}
	closed atomic.Bool
}

// NewDriver starts a UCI driver. It assumes the "uci" line has already
// been consumed and immediately performs the identification exchange.
func NewDriver(ctx context.Context, name, author string, ev eval.Evaluator, in <-chan string, opts Options) (*Driver, <-chan string) {
	if opts.Hash == 0 {
		opts.Hash = 32
	}
	if opts.MultiPV < 1 {
		opts.MultiPV = 1
	}

	out := make(chan string, 100)
	d := &Driver{
		name:   name,
		author: author,
		ev:     ev,
		opts:   opts,
		out:    out,
		fen:    board.StartingFEN,
		quit:   make(chan struct{}),
	}
	d.reset(ctx)

	go d.process(ctx, in)
	return d, out
}

// Close shuts the driver down. Idempotent.
func (d *Driver) Close() {
	if d.closed.CAS(false, true) {
		close(d.quit)
	}
}

// Closed returns a channel closed when the driver has shut down.
func (d *Driver) Closed() <-chan struct{} {
	return d.quit
}

// reset discards the transposition table and search worker, e.g. for a
// new game or a changed Hash option.
func (d *Driver) reset(ctx context.Context) {
	if d.server != nil {
		d.server.Exit()
	}
	d.table = tt.New(ctx, d.opts.Hash<<20)
	d.server = searchctl.NewServer(ctx, d.table)
}

func (d *Driver) process(ctx context.Context, in <-chan string) {
	defer d.Close()
	defer close(d.out)
	defer func() { d.server.Exit() }()

	logw.Infof(ctx, "UCI protocol initialized: %v %v, options=%v", d.name, version, d.opts)

	d.out <- fmt.Sprintf("id name %v %v", d.name, version)
	d.out <- fmt.Sprintf("id author %v", d.author)
	d.out <- "option name Hash type spin default 32 min 1 max 4096"
	d.out <- "option name MultiPV type spin default 1 min 1 max 16"
	d.out <- "uciok"

	for line := range in {
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "isready":
			d.out <- "readyok"

		case "setoption":
			d.setOption(ctx, args)

		case "ucinewgame":
			d.haltIfActive()
			d.reset(ctx)

		case "position":
			d.haltIfActive()
			if err := d.setPosition(args); err != nil {
				logw.Errorf(ctx, "Invalid position %q: %v", line, err)
			}

		case "go":
			d.go_(ctx, args)

		case "stop":
			d.haltIfActive()

		case "ponderhit":
			// The search runs the same way pondering or not; nothing to
			// switch over.
			logw.Debugf(ctx, "Ponderhit")

		case "quit":
			d.haltIfActive()
			return

		default:
			// Unknown input is ignored, per protocol.
			logw.Debugf(ctx, "Ignoring unknown command %q", line)
		}
	}
	logw.Infof(ctx, "Input stream broken. Exiting")
}

func (d *Driver) setOption(ctx context.Context, args []string) {
	var name, value string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "name":
			if i+1 < len(args) {
				name = args[i+1]
			}
		case "value":
			if i+1 < len(args) {
				value = args[i+1]
			}
		}
	}

	switch name {
	case "Hash":
		if mb, err := strconv.ParseUint(value, 10, 32); err == nil && mb > 0 {
			d.haltIfActive()
			d.opts.Hash = mb
			d.reset(ctx)
		}
	case "MultiPV":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			d.opts.MultiPV = n
		}
	default:
		logw.Debugf(ctx, "Ignoring option %q", name)
	}
}

func (d *Driver) setPosition(args []string) error {
	fen := board.StartingFEN
	rest := args
	if len(args) > 0 {
		switch args[0] {
		case "startpos":
			rest = args[1:]
		case "fen":
			if len(args) < 7 {
				return fmt.Errorf("short fen")
			}
			fen = strings.Join(args[1:7], " ")
			rest = args[7:]
		}
	}

	var moves []string
	inMoves := false
	for _, arg := range rest {
		if arg == "moves" {
			inMoves = true
			continue
		}
		if inMoves {
			moves = append(moves, arg)
		}
	}

	// Validate eagerly so a bad position is rejected here rather than
	// surfacing on "go".
	if _, err := searchnode.FromHistory(fen, moves, d.ev); err != nil {
		return err
	}

	d.fen, d.moves = fen, moves
	return nil
}

// goParams is what a "go" line boils down to.
type goParams struct {
	depth       int
	nodes       uint64
	budget      time.Duration // 0 = no time limit
	searchMoves []string
}

func (d *Driver) go_(ctx context.Context, args []string) {
	if !d.active.CAS(false, true) {
		logw.Errorf(ctx, "Search already active; ignoring go")
		return
	}

	node, err := searchnode.FromHistory(d.fen, d.moves, d.ev)
	if err != nil {
		logw.Errorf(ctx, "Invalid position on go: %v", err)
		d.active.Store(false)
		return
	}

	gp := d.parseGo(ctx, args, node.Board().SideToMove())

	var searchMoves []board.Move
	for _, notation := range gp.searchMoves {
		for _, m := range node.LegalMoves() {
			if m.String() == notation {
				searchMoves = append(searchMoves, m)
				break
			}
		}
	}

	id := d.searchID.Inc()
	d.server.StartSearch(searchctl.Params{
		ID:             id,
		Node:           node.Clone(),
		Depth:          gp.depth,
		LowerBound:     eval.Min,
		UpperBound:     eval.Max,
		SearchMoves:    searchMoves,
		VariationCount: d.opts.MultiPV,
	})

	go d.collect(ctx, id, node, gp)
}

func (d *Driver) parseGo(ctx context.Context, args []string, turn board.Color) goParams {
	gp := goParams{depth: search.MaxDepth}
	if limit, ok := d.opts.Depth.V(); ok && limit > 0 {
		gp.depth = limit
	}

	var wtime, btime, winc, binc, movestogo, movetime int
	infinite := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "infinite":
			infinite = true
		case "ponder":
			infinite = true
		case "searchmoves":
			for i+1 < len(args) && looksLikeMove(args[i+1]) {
				gp.searchMoves = append(gp.searchMoves, args[i+1])
				i++
			}
		case "depth", "nodes", "movetime", "wtime", "btime", "winc", "binc", "movestogo", "mate":
			name := args[i]
			if i+1 >= len(args) {
				logw.Errorf(ctx, "No argument for %v", name)
				return gp
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				logw.Errorf(ctx, "Invalid argument for %v: %v", name, err)
				return gp
			}
			switch name {
			case "depth":
				gp.depth = n
			case "nodes":
				gp.nodes = uint64(n)
			case "movetime":
				movetime = n
			case "wtime":
				wtime = n
			case "btime":
				btime = n
			case "winc":
				winc = n
			case "binc":
				binc = n
			case "movestogo":
				movestogo = n
			}
		}
	}

	if gp.depth < 1 || gp.depth > search.MaxDepth {
		gp.depth = search.MaxDepth
	}

	switch {
	case infinite:
		gp.budget = 0
	case movetime > 0:
		gp.budget = time.Duration(movetime) * time.Millisecond
	default:
		remaining, inc := wtime, winc
		if turn == board.Black {
			remaining, inc = btime, binc
		}
		if remaining > 0 {
			if movestogo == 0 {
				movestogo = 30
			}
			ms := remaining/movestogo + 3*inc/4
			gp.budget = time.Duration(ms) * time.Millisecond
		}
	}
	return gp
}

// collect drains reports for search id, emitting "info" lines per newly
// completed depth and the final "bestmove". It enforces the time budget
// and node limit by requesting termination and continuing to drain.
func (d *Driver) collect(ctx context.Context, id uint64, node *searchnode.Node, gp goParams) {
	defer d.active.Store(false)

	start := time.Now()
	terminated := false
	lastDepth := 0 // progress before the first completed depth is noise

	terminate := func() {
		if !terminated {
			terminated = true
			d.server.TerminateSearch()
		}
	}

	for {
		overBudget := gp.budget > 0 && time.Since(start) >= gp.budget
		if overBudget {
			terminate()
		}

		if !d.server.WaitReport(20 * time.Millisecond) {
			continue
		}
		r, ok := d.server.TryRecvReport()
		if !ok {
			continue
		}
		if r.ID != id {
			continue // stale report of a superseded search
		}

		if gp.nodes > 0 && r.Nodes >= gp.nodes {
			terminate()
		}

		if r.Depth > lastDepth || r.Done {
			lastDepth = r.Depth
			d.emitInfo(r, node, time.Since(start))
		}

		if r.Done {
			d.emitBestMove(r, node)
			return
		}
	}
}

func (d *Driver) emitInfo(r searchctl.Report, node *searchnode.Node, elapsed time.Duration) {
	ms := elapsed.Milliseconds()
	nps := uint64(0)
	if ms > 0 {
		nps = r.Nodes * 1000 / uint64(ms)
	}

	if len(r.Moves) == 0 {
		d.out <- fmt.Sprintf("info depth %d score %s nodes %d nps %d time %d",
			r.Depth, formatScore(r.Value, r.Bound), r.Nodes, nps, ms)
		return
	}

	pv := searchctl.ExtractPV(d.table, node, r.Depth)
	for i, rm := range r.Moves {
		line := []string{rm.Move.String()}
		value, bound := rm.Value, tt.BoundExact
		if i == 0 {
			if len(pv.Moves) > 0 && pv.Moves[0] == rm.Move {
				line = movesToStrings(pv.Moves)
			}
			value, bound = r.Value, r.Bound
		}
		d.out <- fmt.Sprintf("info depth %d seldepth %d multipv %d score %s nodes %d nps %d time %d pv %s",
			r.Depth, r.Depth, i+1, formatScore(value, bound), r.Nodes, nps, ms, strings.Join(line, " "))
	}
}

func (d *Driver) emitBestMove(r searchctl.Report, node *searchnode.Node) {
	best := board.NoMove
	if len(r.Moves) > 0 {
		best = r.Moves[0].Move
	}

	pv := searchctl.ExtractPV(d.table, node, r.Depth)
	if best == board.NoMove && len(pv.Moves) > 0 {
		best = pv.Moves[0]
	}

	if len(pv.Moves) >= 2 && pv.Moves[0] == best {
		d.out <- fmt.Sprintf("bestmove %v ponder %v", best, pv.Moves[1])
		return
	}
	d.out <- fmt.Sprintf("bestmove %v", best)
}

func movesToStrings(ms []board.Move) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

// looksLikeMove reports whether s is shaped like long algebraic notation,
// e.g. "e2e4" or "e7e8q".
func looksLikeMove(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if _, err := board.ParseSquareStr(s[:2]); err != nil {
		return false
	}
	if _, err := board.ParseSquareStr(s[2:4]); err != nil {
		return false
	}
	if len(s) == 5 {
		if _, ok := board.ParsePromotionPiece(rune(s[4])); !ok {
			return false
		}
	}
	return true
}

// formatScore renders a value as "cp <v>" or "mate <n>", with the
// lowerbound/upperbound qualifier when the value is inexact.
func formatScore(v eval.Value, bound tt.Bound) string {
	var s string
	switch {
	case v == eval.Unknown:
		s = "cp 0"
	case v > eval.EvalMax:
		s = fmt.Sprintf("mate %d", (int(eval.Max)-int(v)+1)/2)
	case v < eval.EvalMin:
		s = fmt.Sprintf("mate %d", -(int(v)-int(eval.Min)+1)/2)
	default:
		s = fmt.Sprintf("cp %d", v)
	}
	switch bound {
	case tt.BoundLower:
		s += " lowerbound"
	case tt.BoundUpper:
		s += " upperbound"
	}
	return s
}

// haltIfActive stops a running search and waits for its final report to
// have been processed, so the next command starts from a quiet engine.
func (d *Driver) haltIfActive() {
	if !d.active.Load() {
		return
	}
	d.server.TerminateSearch()
	for d.active.Load() {
		time.Sleep(time.Millisecond)
	}
}
