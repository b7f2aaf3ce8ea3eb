package common

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every package in the module. Callers compare with errors.Is; the
// packages that return them attach context with fmt.Errorf("%w: ...", ErrX).
var (
	// ErrConfiguration reports a missing or unsupported GPU capability. It is fatal: rendering must not proceed.
	ErrConfiguration = errors.New("cellgrid: unsupported configuration")

	// ErrAllocation reports that a GPU resource could not be created.
	ErrAllocation = errors.New("cellgrid: allocation failed")

	// ErrInvalidArgument reports caller-supplied input that violates a size or shape contract.
	// It is always returned before any GPU call is made.
	ErrInvalidArgument = errors.New("cellgrid: invalid argument")

	// ErrShaderCompile is the sentinel matched by every ShaderCompileError.
	ErrShaderCompile = errors.New("cellgrid: shader compilation failed")

	// ErrLayoutMismatch reports shaders whose declared bindings differ from what the pipeline variant
	// binds, or a bind group requested against a layout that does not declare the binding.
	ErrLayoutMismatch = errors.New("cellgrid: bind group layout mismatch")

	// ErrSurfaceUnavailable reports that the presentation surface had no drawable this tick.
	// It is transient; the scheduler may skip the tick and try again.
	ErrSurfaceUnavailable = errors.New("cellgrid: surface unavailable")

	// ErrFrameInFlight reports an Advance call made while another frame is still being encoded.
	ErrFrameInFlight = errors.New("cellgrid: frame already in flight")
)

// ShaderStage names the pipeline stage a shader diagnostic belongs to.
type ShaderStage string

const (
	// ShaderStageVertex is the vertex stage.
	ShaderStageVertex ShaderStage = "vertex"

	// ShaderStageFragment is the fragment stage.
	ShaderStageFragment ShaderStage = "fragment"

	// ShaderStageCompute is the compute stage.
	ShaderStageCompute ShaderStage = "compute"
)

// ShaderCompileError carries the offending stage and the diagnostic text of a shader failure.
// It matches ErrShaderCompile through errors.Is.
type ShaderCompileError struct {
	Stage   ShaderStage
	Message string
	Err     error
}

// NewShaderCompileError builds a ShaderCompileError for the given stage.
//
// Parameters:
//   - stage: the pipeline stage whose shader failed
//   - err: the underlying diagnostic, may be nil when message is enough
//   - format: printf style message describing the failure
//   - args: arguments for format
//
// Returns:
//   - *ShaderCompileError: the populated error
func NewShaderCompileError(stage ShaderStage, err error, format string, args ...any) *ShaderCompileError {
	return &ShaderCompileError{
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func (e *ShaderCompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s shader: %s: %v", ErrShaderCompile, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s shader: %s", ErrShaderCompile, e.Stage, e.Message)
}

func (e *ShaderCompileError) Is(target error) bool {
	return target == ErrShaderCompile
}

func (e *ShaderCompileError) Unwrap() error {
	return e.Err
}
