package common

import "unsafe"

// SliceToBytes reinterprets a slice of fixed-size values as raw bytes for buffer uploads.
// The result aliases data and must not outlive or modify it.
//
// Parameters:
//   - data: source slice, e.g. []uint32 cell states or []mgl32.Vec2 vertices
//
// Returns:
//   - []byte: a view of len(data)*sizeof(T) bytes, or nil if data is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}
