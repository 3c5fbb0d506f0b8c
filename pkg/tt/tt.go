// Package tt implements the shared transposition table: a bucketed hash
// table of 16-byte entries keyed by position hash. The table is shared
// between searching goroutines without locks; readers tolerate torn
// entries by verifying an xor-paired key word against the payload.
package tt

import (
	"context"
	"math/bits"
	"sync/atomic"

	"github.com/corvani/chessop/pkg/board"
	"github.com/corvani/chessop/pkg/eval"
	"github.com/seekerror/logw"
	uatomic "go.uber.org/atomic"
)

// Bound describes the accuracy of a stored value: bit 0 set means the
// value is a valid upper bound, bit 1 a valid lower bound.
type Bound uint8

const (
	BoundNone  Bound = 0
	BoundUpper Bound = 1
	BoundLower Bound = 2
	BoundExact Bound = BoundUpper | BoundLower
)

func (b Bound) String() string {
	switch b {
	case BoundNone:
		return "none"
	case BoundUpper:
		return "upper"
	case BoundLower:
		return "lower"
	case BoundExact:
		return "exact"
	default:
		return "?"
	}
}

const (
	// depthFloor offsets stored depths so that negative quiescence depths
	// fit the unsigned 8-bit field.
	depthFloor = -32

	// DepthMax is the largest storable depth.
	DepthMax = depthFloor + 255

	bucketSize = 4
	entryBytes = 16
)

// Entry is the information the table keeps per position.
type Entry struct {
	// Move is the best-move digest, or 0 if no move is known.
	Move board.MoveDigest
	// Value is the search value of the position.
	Value eval.Value
	// Eval is the static evaluation of the position.
	Eval eval.Value
	// Depth is the search depth the value was obtained at.
	Depth int
	// Bound qualifies Value.
	Bound Bound
}

// slot packs an Entry into a data word plus a key word xored with the
// position hash. A reader recomputes key^data and compares it to the probe
// hash: a torn (half-written) slot cannot match.
type slot struct {
	key  uint64
	data uint64
}

func pack(e Entry, generation uint8) uint64 {
	depth := e.Depth
	if depth < depthFloor {
		depth = depthFloor
	}
	if depth > DepthMax {
		depth = DepthMax
	}
	var d uint64
	d |= uint64(uint16(e.Move))
	d |= uint64(uint16(e.Value)) << 16
	d |= uint64(uint16(e.Eval)) << 32
	d |= uint64(uint8(depth-depthFloor)) << 48
	d |= uint64(uint8(e.Bound)&0x3|generation<<2) << 56
	return d
}

func unpack(d uint64) (Entry, uint8) {
	e := Entry{
		Move:  board.MoveDigest(uint16(d)),
		Value: eval.Value(int16(uint16(d >> 16))),
		Eval:  eval.Value(int16(uint16(d >> 32))),
		Depth: int(uint8(d>>48)) + depthFloor,
		Bound: Bound(uint8(d>>56) & 0x3),
	}
	return e, uint8(d>>56) >> 2
}

// Table is a transposition table sized to a power-of-two bucket count.
type Table struct {
	slots []slot
	mask  uint64 // bucket index mask

	generation uatomic.Uint32
	used       uatomic.Uint64
}

// New allocates a table of approximately size bytes, rounded down to a
// power of two of buckets. The minimum is a single bucket.
func New(ctx context.Context, size uint64) *Table {
	buckets := uint64(1)
	if n := size / (bucketSize * entryBytes); n > 1 {
		buckets = uint64(1) << (63 - bits.LeadingZeros64(n))
	}

	logw.Infof(ctx, "Allocating %vMB TT with %v entries", (buckets*bucketSize*entryBytes)>>20, buckets*bucketSize)

	return &Table{
		slots: make([]slot, buckets*bucketSize),
		mask:  buckets - 1,
	}
}

// NewSearch bumps the generation counter. Call at the start of each root
// search so replacement can age out entries from earlier searches.
func (t *Table) NewSearch() {
	t.generation.Inc()
}

// Size returns the table size in bytes.
func (t *Table) Size() uint64 {
	return uint64(len(t.slots)) * entryBytes
}

// Used returns the fraction of occupied entries, in [0;1].
func (t *Table) Used() float64 {
	return float64(t.used.Load()) / float64(len(t.slots))
}

// Probe returns the entry stored for hash, if present and intact.
func (t *Table) Probe(hash uint64) (Entry, bool) {
	base := (hash & t.mask) * bucketSize
	for i := uint64(0); i < bucketSize; i++ {
		s := &t.slots[base+i]
		data := atomic.LoadUint64(&s.data)
		key := atomic.LoadUint64(&s.key)
		if data != 0 && key^data == hash {
			e, _ := unpack(data)
			return e, true
		}
	}
	return Entry{}, false
}

// Store writes an entry for hash, replacing the matching slot if one
// exists, otherwise the least valuable slot in the bucket. An entry
// carrying no move never erases a known good move for the same position.
func (t *Table) Store(hash uint64, e Entry) {
	gen := uint8(t.generation.Load()) & 0x3f
	base := (hash & t.mask) * bucketSize

	var empty *slot
	victim := &t.slots[base]
	victimRank := int64(1) << 62
	for i := uint64(0); i < bucketSize; i++ {
		s := &t.slots[base+i]
		data := atomic.LoadUint64(&s.data)
		key := atomic.LoadUint64(&s.key)

		if data == 0 {
			if empty == nil {
				empty = s
			}
			continue
		}
		if key^data == hash {
			if e.Move == 0 {
				old, _ := unpack(data)
				e.Move = old.Move
			}
			t.write(s, hash, e, gen)
			return
		}
		if r := rank(data, gen); r < victimRank {
			victim, victimRank = s, r
		}
	}
	if empty != nil {
		t.used.Inc()
		t.write(empty, hash, e, gen)
		return
	}
	t.write(victim, hash, e, gen)
}

func (t *Table) write(s *slot, hash uint64, e Entry, gen uint8) {
	data := pack(e, gen)
	atomic.StoreUint64(&s.data, data)
	atomic.StoreUint64(&s.key, hash^data)
}

// rank orders slots for replacement: deeper entries are worth more, exact
// bounds doubly so, and entries from older generations progressively less.
func rank(data uint64, gen uint8) int64 {
	e, g := unpack(data)
	r := int64(e.Depth - depthFloor)
	if e.Bound == BoundExact {
		r *= 2
	}
	age := int64((gen - g) & 0x3f)
	return r - 8*age
}
