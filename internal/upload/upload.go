// Package upload moves host data into device-local GPU buffers through
// host-visible staging buffers.
//
// Static data takes a transient staging buffer and a blocking one-shot copy.
// Data rewritten every frame keeps a persistently mapped staging buffer with one
// region per frame slot; the copy out of a region is recorded by the caller into
// that slot's command buffer.
package upload

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Buffer is a device buffer with its backing memory.
type Buffer interface {
	Size() int
	// Map returns the host view of a host-visible buffer. Mapping twice
	// returns the same view.
	Map() ([]byte, error)
	Unmap()
	Destroy()
}

type Device interface {
	CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (Buffer, error)
	// CopyBuffer records, submits and waits for a one-shot copy of size bytes
	// from the start of src to the start of dst.
	CopyBuffer(src, dst Buffer, size int) error
}

const (
	stagingProperties = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
)

var ErrEmptyUpload = errors.New("upload of zero bytes")

type Uploader struct {
	device Device
	// readback adds TransferSrc to device-local buffers so ReadBack works.
	readback bool
}

func NewUploader(device Device, readback bool) *Uploader {
	return &Uploader{device: device, readback: readback}
}

func (u *Uploader) deviceUsage(usage core1_0.BufferUsageFlags) core1_0.BufferUsageFlags {
	usage |= core1_0.BufferUsageTransferDst
	if u.readback {
		usage |= core1_0.BufferUsageTransferSrc
	}
	return usage
}

// Stage creates a host-visible buffer holding data. The caller owns it.
func (u *Uploader) Stage(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	staging, err := u.device.CreateBuffer(len(data), core1_0.BufferUsageTransferSrc, stagingProperties)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	mapped, err := staging.Map()
	if err != nil {
		staging.Destroy()
		return nil, errors.Wrap(err, "map staging buffer")
	}
	copy(mapped, data)
	staging.Unmap()

	return staging, nil
}

// UploadStatic copies data into a new device-local buffer with the given usage.
func (u *Uploader) UploadStatic(data []byte, usage core1_0.BufferUsageFlags) (Buffer, error) {
	staging, err := u.Stage(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	dst, err := u.device.CreateBuffer(len(data), u.deviceUsage(usage), core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "create device buffer")
	}

	if err := u.device.CopyBuffer(staging, dst, len(data)); err != nil {
		dst.Destroy()
		return nil, errors.Wrap(err, "copy staging buffer")
	}

	return dst, nil
}

// ReadBack copies the first size bytes of a device-local buffer back to the host.
// The buffer must have been created with TransferSrc usage.
func (u *Uploader) ReadBack(src Buffer, size int) ([]byte, error) {
	if size == 0 {
		return nil, ErrEmptyUpload
	}

	staging, err := u.device.CreateBuffer(size, core1_0.BufferUsageTransferDst, stagingProperties)
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}
	defer staging.Destroy()

	if err := u.device.CopyBuffer(src, staging, size); err != nil {
		return nil, errors.Wrap(err, "copy to readback buffer")
	}

	mapped, err := staging.Map()
	if err != nil {
		return nil, errors.Wrap(err, "map readback buffer")
	}
	defer staging.Unmap()

	out := make([]byte, size)
	copy(out, mapped)
	return out, nil
}
