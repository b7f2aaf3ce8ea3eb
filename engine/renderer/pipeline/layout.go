package pipeline

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// UniformBinding is the group 0 binding of the grid uniform.
	UniformBinding uint32 = 0

	// StateBinding is the group 0 binding of the cell state buffer.
	StateBinding uint32 = 1
)

func (p *pipeline) Validate() error {
	switch p.pipelineType {
	case PipelineTypeCompute:
		if p.computeShader == nil || p.computeShader.ShaderType() != shader.ShaderTypeCompute {
			return common.NewShaderCompileError(common.ShaderStageCompute, nil, "%s: compute shader not set", p.pipelineKey)
		}
		return nil
	case PipelineTypeRender:
		if p.vertexShader == nil || p.vertexShader.ShaderType() != shader.ShaderTypeVertex {
			return common.NewShaderCompileError(common.ShaderStageVertex, nil, "%s: vertex shader not set", p.pipelineKey)
		}
		if p.fragmentShader == nil || p.fragmentShader.ShaderType() != shader.ShaderTypeFragment {
			return common.NewShaderCompileError(common.ShaderStageFragment, nil, "%s: fragment shader not set", p.pipelineKey)
		}
		return p.validateBindings()
	default:
		return fmt.Errorf("%w: unknown pipeline type %d", common.ErrInvalidArgument, p.pipelineType)
	}
}

// validateBindings checks the bindings declared by the render shaders against the variant. A
// binding the variant does not bind, or a variant binding no stage declares, is a layout mismatch;
// a declared binding of the wrong buffer type is a shader error.
func (p *pipeline) validateBindings() error {
	required := map[uint32]wgpu.BufferBindingType{}
	if p.variant.Instanced {
		required[UniformBinding] = wgpu.BufferBindingTypeUniform
	}
	if p.variant.UsesStorageBinding {
		required[UniformBinding] = wgpu.BufferBindingTypeUniform
		required[StateBinding] = wgpu.BufferBindingTypeReadOnlyStorage
	}

	for _, s := range []shader.Shader{p.vertexShader, p.fragmentShader} {
		stage := s.ShaderType().Stage()
		for group, desc := range s.BindGroupLayoutDescriptors() {
			for _, e := range desc.Entries {
				want, ok := required[e.Binding]
				if group != 0 || !ok {
					return fmt.Errorf("%w: %s declares @group(%d) @binding(%d), which the %s variant does not bind", common.ErrLayoutMismatch, s.Key(), group, e.Binding, p.variant)
				}
				if e.Buffer.Type != want {
					return common.NewShaderCompileError(stage, nil, "%s: @binding(%d) must be a %s buffer", s.Key(), e.Binding, bufferTypeName(want))
				}
			}
		}
	}

	// Every required binding must be declared by at least one stage.
	merged := p.BindGroupLayouts()
	for binding, want := range required {
		found := false
		if len(merged) > 0 {
			for _, e := range merged[0].Entries {
				if e.Binding == binding {
					found = true
					break
				}
			}
		}
		if !found {
			return fmt.Errorf("%w: the %s variant binds a %s buffer at @group(0) @binding(%d) that %s does not declare", common.ErrLayoutMismatch, p.variant, bufferTypeName(want), binding, p.vertexShader.Key())
		}
	}
	return nil
}

func (p *pipeline) BindGroupLayouts() []wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, s := range p.shaders() {
		merged = mergeBindGroupLayouts(merged, s.BindGroupLayoutDescriptors())
	}
	if len(merged) == 0 {
		return nil
	}

	maxGroup := 0
	for g := range merged {
		if g > maxGroup {
			maxGroup = g
		}
	}
	// Pipeline layouts are positional, so unused groups below the highest get empty layouts.
	out := make([]wgpu.BindGroupLayoutDescriptor, maxGroup+1)
	for g := range out {
		desc := merged[g]
		desc.Label = fmt.Sprintf("%s group %d", p.pipelineKey, g)
		out[g] = desc
	}
	return out
}

// mergeBindGroupLayouts merges the layouts declared by one stage into the accumulated layouts,
// combining the visibility of bindings declared by both.
//
// Parameters:
//   - acc: layouts merged so far, keyed by group index
//   - next: the layouts declared by the next stage
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged layouts
func mergeBindGroupLayouts(acc, next map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	for g, nDesc := range next {
		aDesc, ok := acc[g]
		if !ok {
			acc[g] = wgpu.BindGroupLayoutDescriptor{Entries: append([]wgpu.BindGroupLayoutEntry(nil), nDesc.Entries...)}
			continue
		}

		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry, len(aDesc.Entries)+len(nDesc.Entries))
		for _, e := range aDesc.Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range nDesc.Entries {
			if existing, ok := entryMap[e.Binding]; ok {
				existing.Visibility |= e.Visibility
				if e.Buffer.MinBindingSize > existing.Buffer.MinBindingSize {
					existing.Buffer.MinBindingSize = e.Buffer.MinBindingSize
				}
				entryMap[e.Binding] = existing
			} else {
				entryMap[e.Binding] = e
			}
		}

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		acc[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return acc
}

func bufferTypeName(t wgpu.BufferBindingType) string {
	switch t {
	case wgpu.BufferBindingTypeUniform:
		return "uniform"
	case wgpu.BufferBindingTypeStorage:
		return "read_write storage"
	case wgpu.BufferBindingTypeReadOnlyStorage:
		return "read-only storage"
	default:
		return "buffer"
	}
}
