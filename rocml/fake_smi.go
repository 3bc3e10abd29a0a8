// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"fmt"
	"sync"
)

// NOTE: This fake backend is not intended for production use. It is for
// development and testing without AMD hardware or a ROCm install.

// FakeDevice is a synthetic GPU with configurable readings. Exported
// fields are set directly for test configuration; set them before the
// device is queried, or rely on the backend lock taken by every call.
type FakeDevice struct {
	// Name is the market name reported in the ASIC info.
	Name string

	// DeviceID and Revision populate the ASIC identity block.
	DeviceID uint64
	Revision uint32

	// BDF is the 64-bit bus/device/function identifier.
	BDF uint64

	// UUID is the raw UUID string. Ignored while the backend reports
	// the UUID entry point as unsupported.
	UUID string

	// GfxActivity and UMCActivity are busy percentages (0-100).
	GfxActivity uint32
	UMCActivity uint32

	// MemoryUsed and MemoryTotal are per-pool byte counts.
	MemoryUsed  map[MemoryType]uint64
	MemoryTotal map[MemoryType]uint64

	// Power readings in watts. Zero fields are skipped by the
	// current -> average -> socket preference order.
	CurrentPower uint32
	AveragePower uint32
	SocketPower  uint64

	// Fan readings for sensor 0.
	FanRPM      int64
	FanSpeed    int64
	FanSpeedMax uint64

	// PCIe metrics.
	PCIeWidth         uint16
	PCIeSpeed         uint32
	PCIeBandwidthMbps uint32
	PCIeReplayCount   uint64

	// NUMANode is reported by both NUMA queries.
	NUMANode int32

	// ReservedPages are the retired page records, if any.
	ReservedPages []RetiredPageRecord

	// Partition names served by the legacy partition calls.
	ComputePartitionName string
	MemoryPartitionName  string

	// XGMI state served by the legacy XGMI calls.
	XGMIErrors int32
	XGMIHive   uint64
}

// FakeSMIOpts configures NewFakeSMI.
type FakeSMIOpts struct {
	// DeviceCount builds that many synthetic devices on one socket.
	// Ignored when Sockets is set. Defaults to 1.
	DeviceCount int

	// Sockets lays out an explicit socket topology.
	Sockets [][]*FakeDevice
}

// FakeSMI implements the native interface without hardware. Devices
// sharing a socket are XGMI peers; devices on different sockets are
// PCIe peers. Every call takes the backend lock, so devices may be
// queried and mutated concurrently.
type FakeSMI struct {
	mu      sync.RWMutex
	sockets [][]*FakeDevice

	// LoadError, when set, is returned by Load.
	LoadError error

	// InitStatus and ShutDownStatus override the lifecycle results.
	InitStatus     Status
	ShutDownStatus Status

	// UUIDSupported controls whether the UUID entry point works; when
	// false the callers fall back to the BDF pseudo-UUID.
	UUIDSupported bool

	// FailSockets makes processor enumeration fail for these socket
	// indices, for partial-enumeration tests.
	FailSockets map[int]bool

	// FailOps maps amdsmi entry point names to the status they fail
	// with, e.g. "amdsmi_get_power_info": StatusNotSupported.
	FailOps map[string]Status

	// FailLegacyOps is the rsmi counterpart of FailOps.
	FailLegacyOps map[string]LegacyStatus

	// StatusStrings is served by StatusString; codes not present fall
	// back to "".
	StatusStrings map[Status]string

	// ComputePIDs is the system-wide compute process list.
	ComputePIDs []uint32

	// DriverVersion is returned by the legacy version query.
	DriverVersion string

	// InitCalls and ShutDownCalls count lifecycle invocations.
	InitCalls     int
	ShutDownCalls int
}

var _ smiLib = (*FakeSMI)(nil)

// NewFakeDevice builds a synthetic device with plausible defaults for
// the given index.
func NewFakeDevice(idx int) *FakeDevice {
	return &FakeDevice{
		Name:     fmt.Sprintf("AMD Instinct MI300X (fake %d)", idx),
		DeviceID: 0x74a1,
		Revision: 0x00,
		BDF:      uint64(idx+1) << 8, // bus idx+1, device 0, function 0
		UUID:     fmt.Sprintf("%08x-1002-74a1-0000-%012x", 0xfa4e0000+idx, idx),
		MemoryUsed: map[MemoryType]uint64{
			MemoryTypeVRAM:    6 << 30,
			MemoryTypeVisVRAM: 256 << 20,
			MemoryTypeGTT:     128 << 20,
		},
		MemoryTotal: map[MemoryType]uint64{
			MemoryTypeVRAM:    192 << 30,
			MemoryTypeVisVRAM: 192 << 30,
			MemoryTypeGTT:     64 << 30,
		},
		GfxActivity:          42,
		UMCActivity:          17,
		CurrentPower:         350,
		FanRPM:               3200,
		FanSpeed:             128,
		FanSpeedMax:          255,
		PCIeWidth:            16,
		PCIeSpeed:            32,
		PCIeBandwidthMbps:    2048,
		PCIeReplayCount:      0,
		NUMANode:             int32(idx / 4),
		ComputePartitionName: "SPX",
		MemoryPartitionName:  "NPS1",
		XGMIHive:             0x1001,
	}
}

// NewFakeSMI builds a fake backend. The zero Opts value yields one
// socket with one device.
func NewFakeSMI(opts FakeSMIOpts) *FakeSMI {
	sockets := opts.Sockets
	if sockets == nil {
		count := opts.DeviceCount
		if count <= 0 {
			count = 1
		}
		devices := make([]*FakeDevice, count)
		for i := range devices {
			devices[i] = NewFakeDevice(i)
		}
		sockets = [][]*FakeDevice{devices}
	}
	return &FakeSMI{
		sockets:       sockets,
		UUIDSupported: true,
		DriverVersion: "6.8.5",
	}
}

// Fake handles encode 1-based positions so that a zero Handle is never
// valid.
func (f *FakeSMI) deviceAt(flat int) *FakeDevice {
	for _, devices := range f.sockets {
		if flat < len(devices) {
			return devices[flat]
		}
		flat -= len(devices)
	}
	return nil
}

func (f *FakeSMI) device(h Handle) *FakeDevice {
	return f.deviceAt(int(h) - 1)
}

// flatIndex returns the flat device index for a socket position.
func (f *FakeSMI) flatIndex(socket, dev int) int {
	flat := dev
	for i := 0; i < socket; i++ {
		flat += len(f.sockets[i])
	}
	return flat
}

// socketOf returns which socket a flat index lives on, or -1.
func (f *FakeSMI) socketOf(flat int) int {
	for i, devices := range f.sockets {
		if flat < len(devices) {
			return i
		}
		flat -= len(devices)
	}
	return -1
}

func (f *FakeSMI) failure(op string) (Status, bool) {
	st, found := f.FailOps[op]
	return st, found
}

func (f *FakeSMI) legacyFailure(op string) (LegacyStatus, bool) {
	st, found := f.FailLegacyOps[op]
	return st, found
}

func (f *FakeSMI) Load() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.LoadError
}

func (f *FakeSMI) Init(flags uint64) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitStatus
}

func (f *FakeSMI) ShutDown() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShutDownCalls++
	return f.ShutDownStatus
}

func (f *FakeSMI) StatusString(st Status) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.StatusStrings[st]
}

func (f *FakeSMI) SocketHandles(count *uint32, handles *socketHandle) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_socket_handles"); failed {
		return st
	}
	if handles == nil {
		*count = uint32(len(f.sockets))
		return StatusSuccess
	}
	out := sliceOf(handles, int(*count))
	for i := range out {
		out[i] = socketHandle(i + 1)
	}
	return StatusSuccess
}

func (f *FakeSMI) ProcessorHandles(socket socketHandle, count *uint32, handles *Handle) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	si := int(socket) - 1
	if si < 0 || si >= len(f.sockets) {
		return StatusNotFound
	}
	if f.FailSockets[si] {
		return StatusAPIFailed
	}
	devices := f.sockets[si]
	if handles == nil {
		*count = uint32(len(devices))
		return StatusSuccess
	}
	out := sliceOf(handles, int(*count))
	for i := range out {
		out[i] = Handle(f.flatIndex(si, i) + 1)
	}
	return StatusSuccess
}

func (f *FakeSMI) ASICInfo(h Handle, info *asicInfo) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_asic_info"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*info = asicInfo{
		DeviceID: dev.DeviceID,
		RevID:    dev.Revision,
		VendorID: 0x1002,
	}
	copy(info.MarketName[:], dev.Name)
	copy(info.VendorName[:], "Advanced Micro Devices Inc")
	return StatusSuccess
}

func (f *FakeSMI) DeviceBDF(h Handle, bdf *uint64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_device_bdf"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*bdf = dev.BDF
	return StatusSuccess
}

func (f *FakeSMI) DeviceUUID(h Handle, length *uint32, buf *byte) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.UUIDSupported {
		return StatusNotSupported
	}
	if st, failed := f.failure("amdsmi_get_gpu_device_uuid"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	out := sliceOf(buf, int(*length))
	n := copy(out, dev.UUID)
	if n < len(out) {
		out[n] = 0
	}
	*length = uint32(n)
	return StatusSuccess
}

func (f *FakeSMI) GPUActivity(h Handle, usage *engineUsage) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_activity"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*usage = engineUsage{GfxActivity: dev.GfxActivity, UMCActivity: dev.UMCActivity}
	return StatusSuccess
}

func (f *FakeSMI) MemoryUsage(h Handle, memType MemoryType, used *uint64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_memory_usage"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*used = dev.MemoryUsed[memType]
	return StatusSuccess
}

func (f *FakeSMI) MemoryTotal(h Handle, memType MemoryType, total *uint64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_memory_total"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*total = dev.MemoryTotal[memType]
	return StatusSuccess
}

func (f *FakeSMI) MemoryReservedPages(h Handle, count *uint32, records *RetiredPageRecord) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_memory_reserved_pages"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	if records == nil {
		*count = uint32(len(dev.ReservedPages))
		return StatusSuccess
	}
	out := sliceOf(records, int(*count))
	copy(out, dev.ReservedPages)
	return StatusSuccess
}

func (f *FakeSMI) FanRPMs(h Handle, sensor int32, rpms *int64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_fan_rpms"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*rpms = dev.FanRPM
	return StatusSuccess
}

func (f *FakeSMI) FanSpeed(h Handle, sensor int32, speed *int64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_fan_speed"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*speed = dev.FanSpeed
	return StatusSuccess
}

func (f *FakeSMI) FanSpeedMax(h Handle, sensor int32, max *uint64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_fan_speed_max"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*max = dev.FanSpeedMax
	return StatusSuccess
}

func (f *FakeSMI) PowerInfo(h Handle, info *powerInfo) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_power_info"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*info = powerInfo{
		SocketPower:        dev.SocketPower,
		CurrentSocketPower: dev.CurrentPower,
		AverageSocketPower: dev.AveragePower,
	}
	return StatusSuccess
}

func (f *FakeSMI) PCIeInfo(h Handle, info *pcieInfo) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_pcie_info"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*info = pcieInfo{}
	info.Static.MaxPCIeWidth = dev.PCIeWidth
	info.Static.MaxPCIeSpeed = dev.PCIeSpeed
	info.Static.SlotType = int32(FormFactorOAM)
	info.Metric.PCIeWidth = dev.PCIeWidth
	info.Metric.PCIeSpeed = dev.PCIeSpeed
	info.Metric.PCIeBandwidth = dev.PCIeBandwidthMbps
	info.Metric.PCIeReplayCount = dev.PCIeReplayCount
	return StatusSuccess
}

func (f *FakeSMI) NUMAAffinity(h Handle, node *int32) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_gpu_topo_numa_affinity"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*node = dev.NUMANode
	return StatusSuccess
}

func (f *FakeSMI) NUMANode(h Handle, node *uint32) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_topo_get_numa_node_number"); failed {
		return st
	}
	dev := f.device(h)
	if dev == nil {
		return StatusNotFound
	}
	*node = uint32(dev.NUMANode)
	return StatusSuccess
}

// sameSocket reports whether two handles live on one socket, which the
// fake treats as being XGMI peers.
func (f *FakeSMI) sameSocket(src, dst Handle) bool {
	return f.socketOf(int(src)-1) == f.socketOf(int(dst)-1)
}

func (f *FakeSMI) LinkWeight(src, dst Handle, weight *uint64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_topo_get_link_weight"); failed {
		return st
	}
	if f.device(src) == nil || f.device(dst) == nil {
		return StatusNotFound
	}
	switch {
	case src == dst:
		*weight = 0
	case f.sameSocket(src, dst):
		*weight = 15
	default:
		*weight = 40
	}
	return StatusSuccess
}

func (f *FakeSMI) MinMaxBandwidth(src, dst Handle, minBW, maxBW *uint64) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_get_minmax_bandwidth_between_processors"); failed {
		return st
	}
	if f.device(src) == nil || f.device(dst) == nil {
		return StatusNotFound
	}
	if !f.sameSocket(src, dst) {
		// Only XGMI peers report a bandwidth range.
		return StatusNotSupported
	}
	*minBW = 25 << 30
	*maxBW = 50 << 30
	return StatusSuccess
}

func (f *FakeSMI) LinkType(src, dst Handle, hops *uint64, linkType *int32) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_topo_get_link_type"); failed {
		return st
	}
	if f.device(src) == nil || f.device(dst) == nil {
		return StatusNotFound
	}
	if f.sameSocket(src, dst) {
		*hops = 1
		*linkType = int32(LinkTypeXGMI)
	} else {
		*hops = 2
		*linkType = int32(LinkTypePCIe)
	}
	return StatusSuccess
}

func (f *FakeSMI) P2PStatus(src, dst Handle, linkType *int32, cap *p2pCapability) Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.failure("amdsmi_topo_get_p2p_status"); failed {
		return st
	}
	if f.device(src) == nil || f.device(dst) == nil {
		return StatusNotFound
	}
	if f.sameSocket(src, dst) {
		*linkType = int32(LinkTypeXGMI)
		*cap = p2pCapability{IsIolinkCoherent: 1, IsIolinkDMA: 1, IsIolinkBiDirectional: 1}
	} else {
		*linkType = int32(LinkTypePCIe)
		*cap = p2pCapability{}
	}
	return StatusSuccess
}

func (f *FakeSMI) VersionString(component int32, buf *byte, length uint32) LegacyStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.legacyFailure("rsmi_version_str_get"); failed {
		return st
	}
	out := sliceOf(buf, int(length))
	n := copy(out, f.DriverVersion)
	if n < len(out) {
		out[n] = 0
	}
	return LegacySuccess
}

func (f *FakeSMI) ComputeProcesses(procs *processInfo, count *uint32) LegacyStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.legacyFailure("rsmi_compute_process_info_get"); failed {
		return st
	}
	if procs == nil {
		*count = uint32(len(f.ComputePIDs))
		return LegacySuccess
	}
	out := sliceOf(procs, int(*count))
	n := 0
	for i, pid := range f.ComputePIDs {
		if i >= len(out) {
			break
		}
		out[i] = processInfo{ProcessID: pid, VRAMUsage: 1 << 30}
		n++
	}
	*count = uint32(n)
	return LegacySuccess
}

func (f *FakeSMI) ComputePartition(dev uint32, buf *byte, length uint32) LegacyStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.legacyFailure("rsmi_dev_compute_partition_get"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	writeCString(buf, length, device.ComputePartitionName)
	return LegacySuccess
}

func (f *FakeSMI) SetComputePartition(dev uint32, partition string) LegacyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, failed := f.legacyFailure("rsmi_dev_compute_partition_set"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	device.ComputePartitionName = partition
	return LegacySuccess
}

func (f *FakeSMI) ResetComputePartition(dev uint32) LegacyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, failed := f.legacyFailure("rsmi_dev_compute_partition_reset"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	device.ComputePartitionName = "SPX"
	return LegacySuccess
}

func (f *FakeSMI) MemoryPartition(dev uint32, buf *byte, length uint32) LegacyStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.legacyFailure("rsmi_dev_memory_partition_get"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	writeCString(buf, length, device.MemoryPartitionName)
	return LegacySuccess
}

func (f *FakeSMI) SetMemoryPartition(dev uint32, partition string) LegacyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, failed := f.legacyFailure("rsmi_dev_memory_partition_set"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	device.MemoryPartitionName = partition
	return LegacySuccess
}

func (f *FakeSMI) ResetMemoryPartition(dev uint32) LegacyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, failed := f.legacyFailure("rsmi_dev_memory_partition_reset"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	device.MemoryPartitionName = "NPS1"
	return LegacySuccess
}

func (f *FakeSMI) XGMIErrorStatus(dev uint32, status *int32) LegacyStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.legacyFailure("rsmi_dev_xgmi_error_status"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	*status = device.XGMIErrors
	return LegacySuccess
}

func (f *FakeSMI) XGMIErrorReset(dev uint32) LegacyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, failed := f.legacyFailure("rsmi_dev_xgmi_error_reset"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	device.XGMIErrors = 0
	return LegacySuccess
}

func (f *FakeSMI) XGMIHiveID(dev uint32, hiveID *uint64) LegacyStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, failed := f.legacyFailure("rsmi_dev_xgmi_hive_id_get"); failed {
		return st
	}
	device := f.deviceAt(int(dev))
	if device == nil {
		return LegacyInvalidArgs
	}
	*hiveID = device.XGMIHive
	return LegacySuccess
}
