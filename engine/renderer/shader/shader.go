package shader

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader is used for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage of a render pipeline, paired with a vertex shader.
	ShaderTypeFragment
)

// Stage maps the shader type to the stage name used in diagnostics.
func (t ShaderType) Stage() common.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return common.ShaderStageVertex
	case ShaderTypeFragment:
		return common.ShaderStageFragment
	default:
		return common.ShaderStageCompute
	}
}

// Visibility maps the shader type to the wgpu stage flag applied to its bindings.
func (t ShaderType) Visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	label                      string
	source                     string
	shaderType                 ShaderType
	entryPoint                 string
	requiredEntryPoint         string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	workGroupSize              [3]uint32
}

// Shader is a WGSL program reflected for one pipeline stage. The source is treated as an opaque
// artifact: it is scanned for entry points, resource bindings, vertex inputs and workgroup size so
// that pipelines and bind groups can be checked against it before the device compiles it.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Label retrieves the debug label given to the compiled module.
	//
	// Returns:
	//   - string: the module label, defaults to the key
	Label() string

	// Source retrieves the WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage this shader was reflected for.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader's stage.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vertexMain")
	EntryPoint() string

	// BindGroupLayoutDescriptor retrieves the layout descriptor parsed for a bind group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor, or an empty descriptor if the group is not declared
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindingEntry looks up the layout entry declared at group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - wgpu.BindGroupLayoutEntry: the declared entry
	//   - bool: false if no resource is declared there
	BindingEntry(group, binding int) (wgpu.BindGroupLayoutEntry, bool)

	// BindGroupVarName retrieves the variable name declared at group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index of a variable within a group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable name was found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// VertexLayouts retrieves the vertex buffer layouts consumed by the vertex entry point, one per slot.
	// Empty for fragment and compute shaders.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts in slot order
	VertexLayouts() []wgpu.VertexBufferLayout

	// WorkgroupSize returns the workgroup size of a compute entry point.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] when @workgroup_size is absent.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32
}

var _ Shader = &shader{}

// NewShader reflects WGSL source for one stage. The source must parse structurally and must
// contain an entry point for the stage; WithEntryPoint pins the expected name.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and labels
//   - shaderType: the stage the shader is used for
//   - source: the WGSL source text
//   - options: functional options applied before reflection
//
// Returns:
//   - Shader: the reflected shader
//   - error: a *common.ShaderCompileError naming the stage when validation fails
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:                        key,
		label:                      key,
		source:                     source,
		shaderType:                 shaderType,
		bindGroupLayoutDescriptors: make(map[int]wgpu.BindGroupLayoutDescriptor),
		bindingVarNames:            make(map[int]map[int]string),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.reflect(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewShaderFromPath reads WGSL source from disk and reflects it with NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage the shader is used for
//   - sourcePath: the file path to read WGSL source from
//   - options: functional options applied before reflection
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if the file cannot be read or the source fails validation
func NewShaderFromPath(key string, shaderType ShaderType, sourcePath string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", sourcePath, err)
	}
	return NewShader(key, shaderType, string(data), options...)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Label() string {
	return s.label
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindingEntry(group, binding int) (wgpu.BindGroupLayoutEntry, bool) {
	desc, ok := s.bindGroupLayoutDescriptors[group]
	if !ok {
		return wgpu.BindGroupLayoutEntry{}, false
	}
	for _, e := range desc.Entries {
		if int(e.Binding) == binding {
			return e, true
		}
	}
	return wgpu.BindGroupLayoutEntry{}, false
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

// reflect validates the source and extracts the stage metadata. Vertex shaders get vertex
// buffer layouts, compute shaders get a workgroup size, all shaders get bind group layouts.
func (s *shader) reflect() error {
	stage := s.shaderType.Stage()
	cleaned := stripComments(s.source)
	if len(cleaned) == 0 || len(splitNonEmptyLines(cleaned)) == 0 {
		return common.NewShaderCompileError(stage, nil, "%s: empty source", s.key)
	}
	if err := checkBalanced(cleaned); err != nil {
		return common.NewShaderCompileError(stage, err, "%s", s.key)
	}

	entries := parseEntryPoints(cleaned, s.shaderType)
	switch {
	case len(entries) == 0:
		return common.NewShaderCompileError(stage, nil, "%s: no @%s entry point declared", s.key, stage)
	case s.requiredEntryPoint != "":
		found := false
		for _, e := range entries {
			if e == s.requiredEntryPoint {
				found = true
				break
			}
		}
		if !found {
			return common.NewShaderCompileError(stage, nil, "%s: entry point %q not found (declared: %v)", s.key, s.requiredEntryPoint, entries)
		}
		s.entryPoint = s.requiredEntryPoint
	default:
		s.entryPoint = entries[0]
	}

	switch s.shaderType {
	case ShaderTypeVertex:
		layouts, err := parseVertexLayouts(cleaned, s.entryPoint)
		if err != nil {
			return common.NewShaderCompileError(stage, err, "%s", s.key)
		}
		s.vertexLayouts = layouts
	case ShaderTypeCompute:
		s.workGroupSize = parseWorkgroupSize(cleaned)
	}

	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(cleaned, s.shaderType.Visibility())
	return nil
}
