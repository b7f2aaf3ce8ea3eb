package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
)

// Variant selects which resources the cell pipeline binds and whether it draws one instance per cell.
type Variant struct {
	// Name is used in labels and log lines.
	Name string

	// UsesStorageBinding requires a read-only storage buffer at group 0 binding 1 holding the cell state.
	UsesStorageBinding bool

	// Instanced draws one instance per grid cell and requires the grid uniform at group 0 binding 0.
	Instanced bool
}

var (
	// VariantQuad draws the bare quad once with no bound resources.
	VariantQuad = Variant{Name: "quad"}

	// VariantGrid draws one instance per cell reading only the grid uniform.
	VariantGrid = Variant{Name: "grid", Instanced: true}

	// VariantState draws one instance per cell scaled by the cell state buffer.
	VariantState = Variant{Name: "state", Instanced: true, UsesStorageBinding: true}
)

// ParseVariant resolves a variant by name.
//
// Parameters:
//   - name: "quad", "grid" or "state"
//
// Returns:
//   - Variant: the matching variant
//   - error: common.ErrInvalidArgument if the name is unknown
func ParseVariant(name string) (Variant, error) {
	for _, v := range []Variant{VariantQuad, VariantGrid, VariantState} {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: unknown pipeline variant %q", common.ErrInvalidArgument, name)
}

// HasBindings reports whether the variant binds group 0 at all.
func (v Variant) HasBindings() bool {
	return v.Instanced || v.UsesStorageBinding
}

// InstanceCount returns the number of instances a draw issues for g: one per cell when
// instanced, otherwise one.
func (v Variant) InstanceCount(g grid.Grid) uint32 {
	if !v.Instanced {
		return 1
	}
	return g.Cells()
}

func (v Variant) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("variant(storage=%t, instanced=%t)", v.UsesStorageBinding, v.Instanced)
}
