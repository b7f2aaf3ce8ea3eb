package shader

// ShaderBuilderOption is a functional option applied to a shader during NewShader.
type ShaderBuilderOption func(*shader)

// WithEntryPoint requires the stage's entry point to have the given name. Without it the first
// entry point declared for the stage is used.
//
// Parameters:
//   - name: the entry point function name, e.g. "vertexMain"
//
// Returns:
//   - ShaderBuilderOption: a function that applies the entry point option to a shader
func WithEntryPoint(name string) ShaderBuilderOption {
	return func(s *shader) {
		s.requiredEntryPoint = name
	}
}

// WithLabel sets the debug label used when the device compiles the module.
//
// Parameters:
//   - label: the module label, e.g. "Cell shader"
//
// Returns:
//   - ShaderBuilderOption: a function that applies the label option to a shader
func WithLabel(label string) ShaderBuilderOption {
	return func(s *shader) {
		if label != "" {
			s.label = label
		}
	}
}
