// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

// smiLib defines the native amdsmi entry points the session and query
// layers call. Implementations: nativeSMI (the real library via purego),
// FakeSMI (hardware-free), mockSMI (testify).
//
// Buffer-taking calls follow the native count/buffer convention: a nil
// buffer queries the count, a non-nil buffer (pointer to the first
// element) is filled up to *count entries.
type smiLib interface {
	// Load resolves and opens libamd_smi.so. Idempotent; the library is
	// never unloaded once open.
	Load() error

	Init(flags uint64) Status
	ShutDown() Status

	// StatusString asks the library to decode a status code. Returns ""
	// when the entry point is unavailable or produces nothing.
	StatusString(st Status) string

	SocketHandles(count *uint32, handles *socketHandle) Status
	ProcessorHandles(socket socketHandle, count *uint32, handles *Handle) Status

	ASICInfo(h Handle, info *asicInfo) Status
	DeviceBDF(h Handle, bdf *uint64) Status
	DeviceUUID(h Handle, length *uint32, buf *byte) Status
	GPUActivity(h Handle, usage *engineUsage) Status
	MemoryUsage(h Handle, memType MemoryType, used *uint64) Status
	MemoryTotal(h Handle, memType MemoryType, total *uint64) Status
	MemoryReservedPages(h Handle, count *uint32, records *RetiredPageRecord) Status
	FanRPMs(h Handle, sensor int32, rpms *int64) Status
	FanSpeed(h Handle, sensor int32, speed *int64) Status
	FanSpeedMax(h Handle, sensor int32, max *uint64) Status
	PowerInfo(h Handle, info *powerInfo) Status
	PCIeInfo(h Handle, info *pcieInfo) Status
	NUMAAffinity(h Handle, node *int32) Status
	NUMANode(h Handle, node *uint32) Status
	LinkWeight(src, dst Handle, weight *uint64) Status
	MinMaxBandwidth(src, dst Handle, minBW, maxBW *uint64) Status
	LinkType(src, dst Handle, hops *uint64, linkType *int32) Status
	P2PStatus(src, dst Handle, linkType *int32, cap *p2pCapability) Status

	// Legacy rsmi entry points. These address devices by index, not
	// handle, and report legacy status codes.
	VersionString(component int32, buf *byte, length uint32) LegacyStatus
	ComputeProcesses(procs *processInfo, count *uint32) LegacyStatus
	ComputePartition(dev uint32, buf *byte, length uint32) LegacyStatus
	SetComputePartition(dev uint32, partition string) LegacyStatus
	ResetComputePartition(dev uint32) LegacyStatus
	MemoryPartition(dev uint32, buf *byte, length uint32) LegacyStatus
	SetMemoryPartition(dev uint32, partition string) LegacyStatus
	ResetMemoryPartition(dev uint32) LegacyStatus
	XGMIErrorStatus(dev uint32, status *int32) LegacyStatus
	XGMIErrorReset(dev uint32) LegacyStatus
	XGMIHiveID(dev uint32, hiveID *uint64) LegacyStatus
}
