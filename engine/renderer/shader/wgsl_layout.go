package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslType is the host-shareable layout of a WGSL type and, for types that can be vertex
// inputs, the matching vertex format.
type wgslType struct {
	size   uint64
	align  uint64
	vertex wgpu.VertexFormat
}

// parsedField is a struct member or function parameter.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

// wgslTypes holds every scalar, vector, matrix and atomic type in both spellings
// (vec2<f32> and vec2f).
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslTypes = buildWGSLTypes()

func buildWGSLTypes() map[string]wgslType {
	scalars := []struct {
		name, suffix string
		formats      [4]wgpu.VertexFormat
	}{
		{"f32", "f", [4]wgpu.VertexFormat{wgpu.VertexFormatFloat32, wgpu.VertexFormatFloat32x2, wgpu.VertexFormatFloat32x3, wgpu.VertexFormatFloat32x4}},
		{"i32", "i", [4]wgpu.VertexFormat{wgpu.VertexFormatSint32, wgpu.VertexFormatSint32x2, wgpu.VertexFormatSint32x3, wgpu.VertexFormatSint32x4}},
		{"u32", "u", [4]wgpu.VertexFormat{wgpu.VertexFormatUint32, wgpu.VertexFormatUint32x2, wgpu.VertexFormatUint32x3, wgpu.VertexFormatUint32x4}},
	}

	types := map[string]wgslType{
		"bool":        {size: 4, align: 4},
		"f16":         {size: 2, align: 2},
		"atomic<u32>": {size: 4, align: 4},
		"atomic<i32>": {size: 4, align: 4},
	}
	for _, sc := range scalars {
		types[sc.name] = wgslType{size: 4, align: 4, vertex: sc.formats[0]}
		for n := uint64(2); n <= 4; n++ {
			align := uint64(16)
			if n == 2 {
				align = 8
			}
			t := wgslType{size: 4 * n, align: align, vertex: sc.formats[n-1]}
			types[fmt.Sprintf("vec%d<%s>", n, sc.name)] = t
			types[fmt.Sprintf("vec%d%s", n, sc.suffix)] = t
		}
	}
	for cols := uint64(2); cols <= 4; cols++ {
		for rows := uint64(2); rows <= 4; rows++ {
			col := types[fmt.Sprintf("vec%df", rows)]
			t := wgslType{size: cols * roundUpAlign(col.align, col.size), align: col.align}
			types[fmt.Sprintf("mat%dx%d<f32>", cols, rows)] = t
			types[fmt.Sprintf("mat%dx%df", cols, rows)] = t
		}
	}
	return types
}

// roundUpAlign rounds value up to the next multiple of alignment, which must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives
// and previously computed struct layouts. Fixed-size arrays resolve to their full size;
// runtime-sized arrays resolve to one element stride, the smallest useful binding.
//
// Parameters:
//   - typeName: the WGSL type name to resolve, e.g. "vec2f" or "array<u32>"
//   - knownTypes: a map of already-resolved struct names to their layouts
//
// Returns:
//   - wgslType: the resolved layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, knownTypes map[string]wgslType) (wgslType, bool) {
	if layout, ok := wgslTypes[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	if strings.HasPrefix(typeName, "array<") && strings.HasSuffix(typeName, ">") {
		inner := typeName[6 : len(typeName)-1]
		parts := strings.SplitN(inner, ",", 2)
		elemLayout, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
		if !ok {
			return wgslType{}, false
		}
		stride := roundUpAlign(elemLayout.align, elemLayout.size)
		if len(parts) == 2 {
			count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
			if err != nil {
				return wgslType{}, false
			}
			return wgslType{size: count * stride, align: elemLayout.align}, true
		}
		return wgslType{size: stride, align: elemLayout.align}, true
	}

	return wgslType{}, false
}

// computeStructLayout computes the size and alignment of a struct: each member is placed at
// the next aligned offset and the total is rounded up to the largest member alignment. A
// trailing runtime-sized array contributes one element.
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslType) (wgslType, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		fieldLayout, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslType{}, false
		}
		offset = roundUpAlign(fieldLayout.align, offset) + fieldLayout.size
		if fieldLayout.align > maxAlign {
			maxAlign = fieldLayout.align
		}
	}

	return wgslType{size: roundUpAlign(maxAlign, offset), align: maxAlign}, true
}

// computeStructSizes resolves the layout of every parsed struct, iterating until no further
// struct can be resolved so that structs may reference each other in any order.
func computeStructSizes(structs []parsedStruct) map[string]wgslType {
	resolved := make(map[string]wgslType, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return resolved
}

// bufferBinding creates a layout entry for a buffer declaration, classified by its address
// space. Handle types (textures, samplers) report ok=false; cell shaders bind only buffers.
//
// Parameters:
//   - binding: the binding index from @binding(N)
//   - visibility: the shader stage visibility flag
//   - addressSpace: the address space qualifier, e.g. "uniform" or "storage, read_write"
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the entry
//   - bool: false if the declaration is not a buffer
func bufferBinding(binding uint32, visibility wgpu.ShaderStage, addressSpace string) (wgpu.BindGroupLayoutEntry, bool) {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case addressSpace == "storage" || strings.HasPrefix(addressSpace, "storage,"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	default:
		return entry, false
	}
	return entry, true
}

// stripComments removes both single-line (//) and nested block (/* */) comments.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i++
				continue
			}
			if source[i] == '*' && source[i+1] == '/' && depth > 0 {
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
