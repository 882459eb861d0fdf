package assets

import (
	"encoding/binary"
	"io/fs"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
)

const spirvMagic = 0x07230203

var ErrInvalidShader = errors.New("invalid shader binary")

// LoadShader returns the SPIR-V for the shader at name. WGSL sources (".wgsl")
// are compiled on the fly; anything else must already be SPIR-V.
func LoadShader(fsys fs.FS, name string) ([]byte, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "load shader %s", name)
	}

	if strings.EqualFold(path.Ext(name), ".wgsl") {
		data, err = naga.Compile(string(data))
		if err != nil {
			return nil, errors.Wrapf(err, "compile shader %s", name)
		}
	}

	if err := ValidateSPIRV(data); err != nil {
		return nil, errors.Wrapf(err, "load shader %s", name)
	}
	return data, nil
}

func ValidateSPIRV(data []byte) error {
	if len(data) < 20 || len(data)%4 != 0 {
		return errors.Wrapf(ErrInvalidShader, "length %d is not a whole number of words", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != spirvMagic {
		return errors.Wrapf(ErrInvalidShader, "bad magic 0x%08x", magic)
	}
	return nil
}
