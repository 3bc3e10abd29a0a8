// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported indicates the host platform cannot load the AMD SMI
	// library at all (only Linux is supported).
	ErrNotSupported = errors.New("amd smi is not supported on this platform")

	// ErrLibraryNotFound indicates libamd_smi.so could not be located under
	// the configured ROCm install root, or the dynamic loader rejected it.
	ErrLibraryNotFound = errors.New("amd smi library not found")

	// ErrDriverNotLoaded indicates the amdgpu kernel module is not reporting
	// a live initstate.
	ErrDriverNotLoaded = errors.New("amdgpu driver not loaded")

	// ErrFunctionNotFound indicates a required native entry point is missing
	// from the loaded library, which usually means a ROCm version mismatch.
	ErrFunctionNotFound = errors.New("amd smi function not found")

	// ErrInitializationFailed indicates amdsmi_init returned a non-success
	// status. A session that failed to initialize cannot serve queries.
	ErrInitializationFailed = errors.New("amd smi initialization failed")

	// ErrUninitialized indicates a query or Shutdown was issued before a
	// successful Initialize, or after the last Shutdown.
	ErrUninitialized = errors.New("amd smi session not initialized")

	// ErrInvalidArgument indicates a caller-supplied enum string (memory
	// type, uuid format) is not one of the documented values.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrInvalidDeviceIndex reports a device index outside the enumerated
// range. Count is the number of devices in the handle table at the time
// of the call.
type ErrInvalidDeviceIndex struct {
	Index int
	Count int
}

func (e ErrInvalidDeviceIndex) Error() string {
	return fmt.Sprintf("invalid device index %d: valid range is 0-%d", e.Index, e.Count-1)
}
