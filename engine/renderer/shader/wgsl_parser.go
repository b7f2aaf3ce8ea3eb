package shader

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field or function parameter: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// entryRegexes match stage attributes and capture the function name that follows
	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(1) var<storage> cellState: array<u32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// errUnbalanced is wrapped by checkBalanced when a bracket is left open or closed twice.
var errUnbalanced = errors.New("unbalanced brackets")

// checkBalanced verifies that parentheses, braces and square brackets nest correctly.
// Angle brackets are not checked since they double as comparison operators.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - error: an error naming the line of the first mismatch
func checkBalanced(source string) error {
	pairs := map[byte]byte{')': '(', '}': '{', ']': '['}
	type open struct {
		ch   byte
		line int
	}
	var stack []open
	line := 1
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch c {
		case '\n':
			line++
		case '(', '{', '[':
			stack = append(stack, open{c, line})
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[c] {
				return fmt.Errorf("%w: unexpected %q on line %d", errUnbalanced, c, line)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fmt.Errorf("%w: %q opened on line %d is never closed", errUnbalanced, top.ch, top.line)
	}
	return nil
}

// parseEntryPoints lists the entry point function names declared for a stage in source order.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - shaderType: the stage to search for
//
// Returns:
//   - []string: entry point names, empty if the stage has none
func parseEntryPoints(source string, shaderType ShaderType) []string {
	re, ok := entryRegexes[shaderType]
	if !ok {
		return nil
	}
	var names []string
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

// parseVertexLayouts builds the vertex buffer layout consumed by a vertex entry point. Every
// @location parameter becomes an attribute in declaration order; struct-typed parameters
// contribute their @location fields. Builtins are skipped. Entry points without location
// inputs return no layouts.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - entryPoint: the vertex entry point name
//
// Returns:
//   - []wgpu.VertexBufferLayout: zero or one layout for slot 0
//   - error: an error if a parameter type has no vertex format
func parseVertexLayouts(source, entryPoint string) ([]wgpu.VertexBufferLayout, error) {
	params, ok := entryParams(source, entryPoint)
	if !ok {
		return nil, fmt.Errorf("entry point %q has no parameter list", entryPoint)
	}

	structs := make(map[string]parsedStruct)
	for _, ps := range parseStructBlocks(source) {
		structs[ps.name] = ps
	}

	var inputs []parsedField
	for _, f := range parseFields(params) {
		switch {
		case f.isBuiltin:
		case f.location >= 0:
			inputs = append(inputs, f)
		default:
			ps, ok := structs[f.typeName]
			if !ok {
				return nil, fmt.Errorf("vertex parameter %q has no @location or @builtin attribute", f.name)
			}
			for _, sf := range ps.fields {
				if !sf.isBuiltin && sf.location >= 0 {
					inputs = append(inputs, sf)
				}
			}
		}
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	layout, err := buildVertexBufferLayout(inputs)
	if err != nil {
		return nil, err
	}
	return []wgpu.VertexBufferLayout{layout}, nil
}

// entryParams extracts the text between the parentheses of a function's parameter list.
func entryParams(source, name string) (string, bool) {
	re := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	loc := re.FindStringIndex(source)
	if loc == nil {
		return "", false
	}
	depth := 1
	for i := loc[1]; i < len(source); i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return source[loc[1]:i], true
			}
		}
	}
	return "", false
}

// parseBindGroupLayouts collects the @group(N) @binding(M) buffer declarations into one layout
// descriptor per group, entries sorted by binding. Uniform and storage buffers get a
// MinBindingSize from their reflected type; handle types are ignored.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - visibility: the shader stage visibility flag to set on each entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layout descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding index
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)

	structSizes := computeStructSizes(parseStructBlocks(source))

	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		entry, ok := bufferBinding(uint32(binding), visibility, addressSpace)
		if !ok {
			continue
		}
		if layout, ok := resolveTypeLayout(typeName, structSizes); ok && layout.size > 0 {
			entry.Buffer.MinBindingSize = layout.size
		}
		groups[group] = append(groups[group], entry)

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][binding] = varName
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return result, varNames
}

// parseWorkgroupSize reads @workgroup_size; missing dimensions, or a missing attribute, are 1.
// The dispatch for a W x H grid is DivCeil(W, x) by DivCeil(H, y).
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(source)
	if match == nil {
		return result
	}
	for i := 0; i < 3; i++ {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil && v > 0 {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseStructBlocks parses every struct declaration with its member attributes.
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseFields(match[2]),
		})
	}
	return structs
}

// parseFields parses a comma separated member or parameter list, extracting @location and
// @builtin attributes along with the name and type of each entry.
func parseFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(part) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(part); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}

// buildVertexBufferLayout maps vertex inputs to attributes with sequential, tightly packed
// offsets and sets the array stride to the total size.
func buildVertexBufferLayout(inputs []parsedField) (wgpu.VertexBufferLayout, error) {
	attrs := make([]wgpu.VertexAttribute, 0, len(inputs))
	var offset uint64

	for _, f := range inputs {
		t, ok := wgslTypes[f.typeName]
		if !ok || t.vertex == wgpu.VertexFormatUndefined {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("vertex input %q has unsupported type %q", f.name, f.typeName)
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         t.vertex,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += t.size
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets
// or parentheses, so array<T, N> types and @workgroup_size(x, y) style attributes stay whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// splitNonEmptyLines returns the lines of s that contain anything besides whitespace.
func splitNonEmptyLines(s string) []string {
	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
