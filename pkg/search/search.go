// Package search implements the recursive alpha-beta searcher: principal
// variation search over a transposition table, with cooperative
// cancellation through a progress callback.
package search

import "errors"

const (
	// MaxDepth is the deepest search any caller may request, in half-moves.
	MaxDepth = 63

	// nodeReportInterval is how many nodes are searched between progress
	// callbacks. Too small makes the engine slow, too big unresponsive.
	nodeReportInterval = 10000
)

// ErrTerminated is returned by Run when the progress callback requested
// termination. The search unwinds without storing results for the aborted
// subtree; the caller is expected to Reset the instance and discard the
// node it searched.
var ErrTerminated = errors.New("search terminated")

// Progress is called every nodeReportInterval searched nodes with the
// total node count so far. Returning true terminates the search.
type Progress func(searchedNodes uint64) bool
