//go:build !linux

package randomx

import "errors"

var errHugePagesUnsupported = errors.New("huge pages not supported on this platform")

func allocHugePages(size int) (*region, error) {
	return nil, errHugePagesUnsupported
}
