package search

import "fmt"

// GPUAvailable is false: this build carries no device backend.
const GPUAvailable = false

// OpenDevice returns ErrGPUUnavailable. Callers fall back to the CPU
// coordinator or to NewSoftwareDevice.
func OpenDevice(deviceID int) (Device, error) {
	return nil, fmt.Errorf("%w: device %d requested but no GPU backend is compiled into this binary", ErrGPUUnavailable, deviceID)
}
