package gpu

import "github.com/cockroachdb/errors"

var (
	ErrNoCapableDevice        = errors.New("failed to find a suitable GPU")
	ErrValidationUnavailable  = errors.New("validation layer not available")
	ErrUnsupportedTransition  = errors.New("unsupported layout transition")
	ErrNoSuitableMemoryType   = errors.New("failed to find any suitable memory type")
	ErrNoSupportedDepthFormat = errors.New("no supported depth format")
)
