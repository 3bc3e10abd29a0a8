// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package rocml

import "log/slog"

// nativeSMI on non-Linux platforms refuses to load; ROCm ships the
// amdsmi library for Linux only.
type nativeSMI struct{}

var _ smiLib = (*nativeSMI)(nil)

func newNativeSMI(logger *slog.Logger, rocmPath, libraryPath, sysfsPath string) *nativeSMI {
	return &nativeSMI{}
}

func (n *nativeSMI) Load() error { return ErrNotSupported }

func (n *nativeSMI) Init(flags uint64) Status { return StatusNotSupported }
func (n *nativeSMI) ShutDown() Status         { return StatusNotSupported }
func (n *nativeSMI) StatusString(Status) string {
	return ""
}

func (n *nativeSMI) SocketHandles(*uint32, *socketHandle) Status {
	return StatusNotSupported
}

func (n *nativeSMI) ProcessorHandles(socketHandle, *uint32, *Handle) Status {
	return StatusNotSupported
}

func (n *nativeSMI) ASICInfo(Handle, *asicInfo) Status        { return StatusNotSupported }
func (n *nativeSMI) DeviceBDF(Handle, *uint64) Status         { return StatusNotSupported }
func (n *nativeSMI) DeviceUUID(Handle, *uint32, *byte) Status { return StatusNotSupported }
func (n *nativeSMI) GPUActivity(Handle, *engineUsage) Status  { return StatusNotSupported }
func (n *nativeSMI) MemoryUsage(Handle, MemoryType, *uint64) Status {
	return StatusNotSupported
}

func (n *nativeSMI) MemoryTotal(Handle, MemoryType, *uint64) Status {
	return StatusNotSupported
}

func (n *nativeSMI) MemoryReservedPages(Handle, *uint32, *RetiredPageRecord) Status {
	return StatusNotSupported
}

func (n *nativeSMI) FanRPMs(Handle, int32, *int64) Status      { return StatusNotSupported }
func (n *nativeSMI) FanSpeed(Handle, int32, *int64) Status     { return StatusNotSupported }
func (n *nativeSMI) FanSpeedMax(Handle, int32, *uint64) Status { return StatusNotSupported }
func (n *nativeSMI) PowerInfo(Handle, *powerInfo) Status       { return StatusNotSupported }
func (n *nativeSMI) PCIeInfo(Handle, *pcieInfo) Status         { return StatusNotSupported }
func (n *nativeSMI) NUMAAffinity(Handle, *int32) Status        { return StatusNotSupported }
func (n *nativeSMI) NUMANode(Handle, *uint32) Status           { return StatusNotSupported }
func (n *nativeSMI) LinkWeight(Handle, Handle, *uint64) Status {
	return StatusNotSupported
}

func (n *nativeSMI) MinMaxBandwidth(Handle, Handle, *uint64, *uint64) Status {
	return StatusNotSupported
}

func (n *nativeSMI) LinkType(Handle, Handle, *uint64, *int32) Status {
	return StatusNotSupported
}

func (n *nativeSMI) P2PStatus(Handle, Handle, *int32, *p2pCapability) Status {
	return StatusNotSupported
}

func (n *nativeSMI) VersionString(int32, *byte, uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) ComputeProcesses(*processInfo, *uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) ComputePartition(uint32, *byte, uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) SetComputePartition(uint32, string) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) ResetComputePartition(uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) MemoryPartition(uint32, *byte, uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) SetMemoryPartition(uint32, string) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) ResetMemoryPartition(uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) XGMIErrorStatus(uint32, *int32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) XGMIErrorReset(uint32) LegacyStatus {
	return LegacyNotSupported
}

func (n *nativeSMI) XGMIHiveID(uint32, *uint64) LegacyStatus {
	return LegacyNotSupported
}
