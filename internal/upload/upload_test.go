package upload

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type fakeBuffer struct {
	device     *fakeDevice
	data       []byte
	usage      core1_0.BufferUsageFlags
	properties core1_0.MemoryPropertyFlags
	mapped     bool
	destroyed  bool
}

func (b *fakeBuffer) Size() int { return len(b.data) }

func (b *fakeBuffer) Map() ([]byte, error) {
	if b.properties&core1_0.MemoryPropertyHostVisible == 0 {
		return nil, errors.New("map of device-local memory")
	}
	b.mapped = true
	return b.data, nil
}

func (b *fakeBuffer) Unmap() { b.mapped = false }

func (b *fakeBuffer) Destroy() {
	if !b.destroyed {
		b.destroyed = true
		b.device.live--
	}
}

type fakeDevice struct {
	live   int
	copies int
	failAt int
}

func (d *fakeDevice) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (Buffer, error) {
	d.live++
	return &fakeBuffer{device: d, data: make([]byte, size), usage: usage, properties: properties}, nil
}

func (d *fakeDevice) CopyBuffer(src, dst Buffer, size int) error {
	d.copies++
	if d.failAt == d.copies {
		return errors.New("device lost")
	}
	s, t := src.(*fakeBuffer), dst.(*fakeBuffer)
	if s.usage&core1_0.BufferUsageTransferSrc == 0 {
		return errors.New("source lacks TransferSrc")
	}
	if t.usage&core1_0.BufferUsageTransferDst == 0 {
		return errors.New("destination lacks TransferDst")
	}
	copy(t.data[:size], s.data[:size])
	return nil
}

func TestStagedRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	device := &fakeDevice{}
	uploader := NewUploader(device, true)

	for _, n := range []int{1, 3, 4, 255, 4096, 65537} {
		data := make([]byte, n)
		rng.Read(data)

		buf, err := uploader.UploadStatic(data, core1_0.BufferUsageVertexBuffer)
		if err != nil {
			t.Fatalf("UploadStatic(%d bytes) error = %v", n, err)
		}
		if fb := buf.(*fakeBuffer); fb.properties != core1_0.MemoryPropertyDeviceLocal {
			t.Errorf("destination properties = %v, want device local", fb.properties)
		}

		got, err := uploader.ReadBack(buf, n)
		if err != nil {
			t.Fatalf("ReadBack(%d bytes) error = %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip of %d bytes differs", n)
		}
		buf.Destroy()
	}

	if device.live != 0 {
		t.Errorf("%d buffers leaked", device.live)
	}
}

func TestUploadStaticFreesStaging(t *testing.T) {
	device := &fakeDevice{}
	uploader := NewUploader(device, false)

	buf, err := uploader.UploadStatic([]byte{1, 2, 3, 4}, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		t.Fatal(err)
	}
	if device.live != 1 {
		t.Errorf("live buffers = %d, want only the destination", device.live)
	}
	if fb := buf.(*fakeBuffer); fb.usage&core1_0.BufferUsageTransferSrc != 0 {
		t.Error("TransferSrc set without readback")
	}
}

func TestUploadStaticCopyFailure(t *testing.T) {
	device := &fakeDevice{failAt: 1}
	uploader := NewUploader(device, false)

	if _, err := uploader.UploadStatic([]byte{1}, core1_0.BufferUsageVertexBuffer); err == nil {
		t.Fatal("UploadStatic() error = nil, want copy failure")
	}
	if device.live != 0 {
		t.Errorf("%d buffers leaked after failure", device.live)
	}
}

func TestUploadEmpty(t *testing.T) {
	uploader := NewUploader(&fakeDevice{}, false)
	if _, err := uploader.UploadStatic(nil, core1_0.BufferUsageVertexBuffer); !errors.Is(err, ErrEmptyUpload) {
		t.Errorf("UploadStatic(nil) error = %v, want ErrEmptyUpload", err)
	}
}

func TestDynamicRegions(t *testing.T) {
	device := &fakeDevice{}
	uploader := NewUploader(device, true)

	dyn, err := uploader.NewDynamic(make([]byte, 8), core1_0.BufferUsageStorageBuffer, 2)
	if err != nil {
		t.Fatalf("NewDynamic() error = %v", err)
	}
	staging := dyn.Staging.(*fakeBuffer)
	if !staging.mapped {
		t.Error("staging buffer is not persistently mapped")
	}
	if staging.Size() != 16 {
		t.Errorf("staging size = %d, want 16", staging.Size())
	}

	frame0 := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	frame1 := []byte{2, 2, 2, 2, 2, 2, 2, 2}
	if err := dyn.Write(0, frame0); err != nil {
		t.Fatal(err)
	}
	if err := dyn.Write(1, frame1); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(staging.data[dyn.Region(0):dyn.Region(0)+8], frame0) {
		t.Error("slot 0 region overwritten")
	}
	if !bytes.Equal(staging.data[dyn.Region(1):], frame1) {
		t.Error("slot 1 region not written")
	}

	if err := dyn.Write(2, frame0); err == nil {
		t.Error("Write(slot 2) error = nil, want out of range")
	}
	if err := dyn.Write(0, frame0[:4]); err == nil {
		t.Error("short Write error = nil")
	}

	before := device.live
	dyn.Destroy()
	dyn.Destroy()
	if device.live != before-2 {
		t.Errorf("Destroy released %d buffers, want 2", before-device.live)
	}
}
