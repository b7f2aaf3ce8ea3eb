package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
)

// BufferWrite describes a single queue write into a GPU buffer at a given byte offset.
type BufferWrite struct {
	Buffer device.Buffer
	Offset uint64
	Data   []byte
}

// WriteBuffers queues every write in order and stops at the first failure.
//
// Parameters:
//   - dev: the device whose queue receives the writes
//   - writes: the writes to queue
//
// Returns:
//   - error: wraps common.ErrAllocation with the label of the buffer that failed
func WriteBuffers(dev device.Device, writes []BufferWrite) error {
	for _, w := range writes {
		if w.Buffer == nil {
			return fmt.Errorf("%w: buffer write without a destination", common.ErrInvalidArgument)
		}
		if w.Offset+uint64(len(w.Data)) > w.Buffer.Size() {
			return fmt.Errorf("%w: %d bytes at offset %d overflow %q (%d bytes)", common.ErrInvalidArgument, len(w.Data), w.Offset, w.Buffer.Label(), w.Buffer.Size())
		}
		if err := dev.WriteBuffer(w.Buffer, w.Offset, w.Data); err != nil {
			return fmt.Errorf("%w: writing %q: %v", common.ErrAllocation, w.Buffer.Label(), err)
		}
	}
	return nil
}
