package upload

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Dynamic is a device-local buffer rewritten every frame. Its staging buffer
// holds one region per frame slot and stays mapped for its whole life. A slot's
// region may only be written once that slot's fence has signaled.
type Dynamic struct {
	Target  Buffer
	Staging Buffer

	size   int
	slots  int
	mapped []byte
}

// NewDynamic allocates the target buffer and uploads initial into it.
func (u *Uploader) NewDynamic(initial []byte, usage core1_0.BufferUsageFlags, slots int) (*Dynamic, error) {
	if slots < 1 {
		return nil, errors.Newf("dynamic buffer needs at least one slot, got %d", slots)
	}

	target, err := u.UploadStatic(initial, usage)
	if err != nil {
		return nil, err
	}

	size := len(initial)
	staging, err := u.device.CreateBuffer(size*slots, core1_0.BufferUsageTransferSrc, stagingProperties)
	if err != nil {
		target.Destroy()
		return nil, errors.Wrap(err, "create dynamic staging buffer")
	}

	mapped, err := staging.Map()
	if err != nil {
		staging.Destroy()
		target.Destroy()
		return nil, errors.Wrap(err, "map dynamic staging buffer")
	}

	return &Dynamic{
		Target:  target,
		Staging: staging,
		size:    size,
		slots:   slots,
		mapped:  mapped,
	}, nil
}

func (d *Dynamic) Size() int { return d.size }

// Region returns the byte offset of slot's region in the staging buffer.
func (d *Dynamic) Region(slot int) int {
	return slot * d.size
}

// Write replaces slot's staged contents. data must be exactly Size() bytes.
func (d *Dynamic) Write(slot int, data []byte) error {
	if slot < 0 || slot >= d.slots {
		return errors.Newf("slot %d out of range [0, %d)", slot, d.slots)
	}
	if len(data) != d.size {
		return errors.Newf("dynamic write of %d bytes into a %d byte buffer", len(data), d.size)
	}

	copy(d.mapped[d.Region(slot):d.Region(slot)+d.size], data)
	return nil
}

func (d *Dynamic) Destroy() {
	if d.Staging != nil {
		d.Staging.Unmap()
		d.Staging.Destroy()
		d.Staging = nil
	}
	if d.Target != nil {
		d.Target.Destroy()
		d.Target = nil
	}
}
