//go:build !linux

package affinity

import "errors"

// PinCurrentThread is Linux-only; elsewhere the scheduler places threads
// freely and the caller just logs the degradation.
func PinCurrentThread(cpu int) error {
	return errors.ErrUnsupported
}
