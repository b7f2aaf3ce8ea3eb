package grid

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Carmen-Shannon/cellgrid/common"
)

// Pattern is a dense cell state array, one uint32 per cell in row-major order.
// Zero is dead, anything else is alive.
type Pattern []uint32

// ValidatePattern checks that p holds exactly one entry per cell of g.
//
// Parameters:
//   - p: the pattern to check
//
// Returns:
//   - error: wraps common.ErrInvalidArgument when the length is wrong
func (g Grid) ValidatePattern(p Pattern) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if uint64(len(p)) != uint64(g.Cells()) {
		return fmt.Errorf("%w: pattern has %d cells, grid %s needs %d", common.ErrInvalidArgument, len(p), g, g.Cells())
	}
	return nil
}

// Live returns the indices of every live cell in ascending order.
func (p Pattern) Live() []uint32 {
	live := make([]uint32, 0, len(p)/2)
	for i, v := range p {
		if v != 0 {
			live = append(live, uint32(i))
		}
	}
	return live
}

// LiveCount returns the number of live cells.
func (p Pattern) LiveCount() int {
	n := 0
	for _, v := range p {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bytes returns the pattern as the little-endian byte view uploaded to a storage buffer.
func (p Pattern) Bytes() []byte {
	return common.SliceToBytes(p)
}

// Seeder decides the initial state of the cell at a linear index. Seeders must be pure functions of
// their arguments so that parallel fills are deterministic.
type Seeder func(g Grid, index uint32) uint32

// EveryNth marks a cell alive when its linear index is a multiple of n.
func EveryNth(n uint32) Seeder {
	return func(_ Grid, index uint32) uint32 {
		if n != 0 && index%n == 0 {
			return 1
		}
		return 0
	}
}

// Checkerboard marks a cell alive by parity of its linear index.
func Checkerboard() Seeder {
	return EveryNth(2)
}

// Alive marks every cell alive.
func Alive() Seeder {
	return func(Grid, uint32) uint32 { return 1 }
}

// Empty marks every cell dead.
func Empty() Seeder {
	return func(Grid, uint32) uint32 { return 0 }
}

// Glider places a single glider with its top-left corner at (col, row), wrapping at the edges.
// Rows grow upward on screen, so the shape is stored bottom row first.
func Glider(col, row uint32) Seeder {
	shape := [3][3]uint32{
		{1, 1, 1},
		{0, 0, 1},
		{0, 1, 0},
	}
	return func(g Grid, index uint32) uint32 {
		c, r := g.Coord(index)
		dc := (c + g.Width - col%g.Width) % g.Width
		dr := (r + g.Height - row%g.Height) % g.Height
		if dc < 3 && dr < 3 {
			return shape[dr][dc]
		}
		return 0
	}
}

// Random marks a cell alive with the given probability. The outcome depends only on seed and the
// cell index.
func Random(density float64, seed uint64) Seeder {
	return func(_ Grid, index uint32) uint32 {
		r := rand.New(rand.NewPCG(seed, uint64(index)))
		if r.Float64() < density {
			return 1
		}
		return 0
	}
}

// ParseSeeder resolves a pattern name used in configuration files.
// Known names: every-third, checkerboard, alive, empty, glider, random.
//
// Parameters:
//   - name: the pattern name, case insensitive
//   - seed: the seed used by the random pattern
//
// Returns:
//   - Seeder: the matching seeder
//   - error: wraps common.ErrInvalidArgument for unknown names
func ParseSeeder(name string, seed uint64) (Seeder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "every-third", "every_third", "":
		return EveryNth(3), nil
	case "checkerboard":
		return Checkerboard(), nil
	case "alive":
		return Alive(), nil
	case "empty":
		return Empty(), nil
	case "glider":
		return Glider(1, 1), nil
	case "random":
		return Random(0.25, seed), nil
	default:
		return nil, fmt.Errorf("%w: unknown pattern %q", common.ErrInvalidArgument, name)
	}
}
