package renderer

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// ParsePresentMode resolves "vsync" or "uncapped".
func ParsePresentMode(name string) (PresentMode, error) {
	switch name {
	case "", "vsync":
		return PresentModeVSync, nil
	case "uncapped":
		return PresentModeUncapped, nil
	default:
		return 0, fmt.Errorf("%w: unknown present mode %q", common.ErrInvalidArgument, name)
	}
}

// wgpu maps the present mode onto the swapchain mode.
func (m PresentMode) wgpu() wgpu.PresentMode {
	if m == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

func (m PresentMode) String() string {
	if m == PresentModeUncapped {
		return "uncapped"
	}
	return "vsync"
}

// FrameState is the phase of the frame driver.
type FrameState int32

const (
	// FrameStateIdle means no frame is being recorded.
	FrameStateIdle FrameState = iota

	// FrameStateEncoding means a frame's commands are being recorded.
	FrameStateEncoding

	// FrameStateSubmitted means the frame's commands were handed to the queue and the drawable is being presented.
	FrameStateSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateEncoding:
		return "encoding"
	case FrameStateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("FrameState(%d)", int32(s))
	}
}

// renderTargetFormats are the colour formats the cell pipeline can render into.
var renderTargetFormats = []wgpu.TextureFormat{
	wgpu.TextureFormatBGRA8Unorm,
	wgpu.TextureFormatBGRA8UnormSrgb,
	wgpu.TextureFormatRGBA8Unorm,
	wgpu.TextureFormatRGBA8UnormSrgb,
	wgpu.TextureFormatRGBA16Float,
	wgpu.TextureFormatRGB10A2Unorm,
}

// resolveColorFormat picks the requested format, or the surface's preferred one when requested
// is undefined, and checks that both the surface and the pipeline support it.
//
// Parameters:
//   - requested: the format asked for, wgpu.TextureFormatUndefined for the surface default
//   - surfaceFormats: the formats the surface accepts, preferred first
//
// Returns:
//   - wgpu.TextureFormat: the format to configure and render with
//   - error: wraps common.ErrConfiguration when no usable format exists
func resolveColorFormat(requested wgpu.TextureFormat, surfaceFormats []wgpu.TextureFormat) (wgpu.TextureFormat, error) {
	if len(surfaceFormats) == 0 {
		return wgpu.TextureFormatUndefined, fmt.Errorf("%w: surface reports no formats", common.ErrConfiguration)
	}
	format := requested
	if format == wgpu.TextureFormatUndefined {
		format = surfaceFormats[0]
	}
	if !slices.Contains(surfaceFormats, format) {
		return wgpu.TextureFormatUndefined, fmt.Errorf("%w: surface does not support format %v", common.ErrConfiguration, format)
	}
	if !slices.Contains(renderTargetFormats, format) {
		return wgpu.TextureFormatUndefined, fmt.Errorf("%w: format %v is not a supported render target", common.ErrConfiguration, format)
	}
	return format, nil
}
