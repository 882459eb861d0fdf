package gpu

import (
	"bytes"
	"encoding/binary"
	"log"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// pipelineCacheHeaderVersionOne is VK_PIPELINE_CACHE_HEADER_VERSION_ONE.
const pipelineCacheHeaderVersionOne = 1

// CacheHeader is the prefix the driver writes on pipeline cache data. Every
// field is stored least significant byte first.
type CacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

var errBadCache = errors.New("stale pipeline cache")

func ParseCacheHeader(data []byte) (CacheHeader, error) {
	var header CacheHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, errors.Wrap(errBadCache, "truncated header")
	}
	return header, nil
}

// Validate checks the header against the running device. A cache from another
// driver or device is rejected.
func (h CacheHeader) Validate(vendorID, deviceID uint32, cacheID uuid.UUID) error {
	if h.Length == 0 {
		return errors.Wrapf(errBadCache, "bad header length %#x", h.Length)
	}
	if h.Version != pipelineCacheHeaderVersionOne {
		return errors.Wrapf(errBadCache, "unsupported header version %#x", h.Version)
	}
	if h.VendorID != vendorID {
		return errors.Wrapf(errBadCache, "vendor ID %#x, driver expects %#x", h.VendorID, vendorID)
	}
	if h.DeviceID != deviceID {
		return errors.Wrapf(errBadCache, "device ID %#x, driver expects %#x", h.DeviceID, deviceID)
	}
	if h.UUID != cacheID {
		return errors.Wrapf(errBadCache, "UUID %s, driver expects %s", h.UUID, cacheID)
	}
	return nil
}

type PipelineCache struct {
	device core1_0.CoreDeviceDriver
	Handle core1_0.PipelineCache
	path   string
}

// LoadPipelineCache seeds a pipeline cache from path. Missing or stale data is
// not an error; stale files are deleted so the next save repopulates them.
func (c *Context) LoadPipelineCache(path string) (*PipelineCache, error) {
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Printf("pipeline cache miss: %s", path)
	case err != nil:
		return nil, errors.Wrap(err, "read pipeline cache")
	}

	if data != nil {
		header, err := ParseCacheHeader(data)
		if err == nil {
			err = header.Validate(c.Properties.VendorID, c.Properties.DeviceID, c.Properties.PipelineCacheUUID)
		}
		if err != nil {
			log.Printf("discarding pipeline cache %s: %v", path, err)
			data = nil
			_ = os.Remove(path)
		}
	}

	handle, _, err := c.Device.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline cache")
	}
	return &PipelineCache{device: c.Device, Handle: handle, path: path}, nil
}

// Save writes the cache contents back to the file it was loaded from.
func (p *PipelineCache) Save() error {
	data, _, err := p.device.GetPipelineCacheData(p.Handle)
	if err != nil {
		return errors.Wrap(err, "read pipeline cache data")
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return errors.Wrap(err, "create pipeline cache dir")
	}
	return errors.Wrap(os.WriteFile(p.path, data, 0o644), "write pipeline cache")
}

func (p *PipelineCache) Destroy() {
	if p.Handle.Initialized() {
		p.device.DestroyPipelineCache(p.Handle, nil)
		p.Handle = core1_0.PipelineCache{}
	}
}
