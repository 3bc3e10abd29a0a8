// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package rocml

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// goString copies a NUL-terminated C string owned by the library.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	length := 0
	for ptr := unsafe.Pointer(p); *(*byte)(ptr) != 0; ptr = unsafe.Add(ptr, 1) {
		length++
	}
	return string(unsafe.Slice(p, length))
}

// libSMIName is the amdsmi shared library shipped with ROCm.
const libSMIName = "libamd_smi.so"

// defaultROCmPath is used when neither the option nor $ROCM_PATH is set.
const defaultROCmPath = "/opt/rocm"

// nativeSMI implements smiLib over the real libamd_smi.so, loaded with
// purego. Entry points are resolved individually so a library from an
// older ROCm that lacks some of them still loads; calls through an
// unresolved pointer report StatusNotSupported.
type nativeSMI struct {
	logger      *slog.Logger
	rocmPath    string
	libraryPath string
	sysfsPath   string

	mu     sync.Mutex
	handle uintptr

	amdsmiInit               func(flags uint64) Status
	amdsmiShutDown           func() Status
	amdsmiStatusCodeToString func(st Status, out **byte) Status
	getSocketHandles         func(count *uint32, handles *socketHandle) Status
	getProcessorHandles      func(socket socketHandle, count *uint32, handles *Handle) Status

	getGPUASICInfo         func(h Handle, info *asicInfo) Status
	getGPUDeviceBDF        func(h Handle, bdf *uint64) Status
	getGPUDeviceUUID       func(h Handle, length *uint32, buf *byte) Status
	getGPUActivity         func(h Handle, usage *engineUsage) Status
	getGPUMemoryUsage      func(h Handle, memType MemoryType, used *uint64) Status
	getGPUMemoryTotal      func(h Handle, memType MemoryType, total *uint64) Status
	getGPUReservedPages    func(h Handle, count *uint32, records *RetiredPageRecord) Status
	getGPUFanRPMs          func(h Handle, sensor int32, rpms *int64) Status
	getGPUFanSpeed         func(h Handle, sensor int32, speed *int64) Status
	getGPUFanSpeedMax      func(h Handle, sensor int32, max *uint64) Status
	getPowerInfo           func(h Handle, info *powerInfo) Status
	getPCIeInfo            func(h Handle, info *pcieInfo) Status
	getGPUTopoNUMAAffinity func(h Handle, node *int32) Status
	topoGetNUMANodeNumber  func(h Handle, node *uint32) Status
	topoGetLinkWeight      func(src, dst Handle, weight *uint64) Status
	getMinMaxBandwidth     func(src, dst Handle, minBW, maxBW *uint64) Status
	topoGetLinkType        func(src, dst Handle, hops *uint64, linkType *int32) Status
	topoGetP2PStatus       func(src, dst Handle, linkType *int32, cap *p2pCapability) Status

	rsmiVersionStrGet         func(component int32, buf *byte, length uint32) LegacyStatus
	rsmiComputeProcessInfoGet func(procs *processInfo, count *uint32) LegacyStatus
	rsmiComputePartitionGet   func(dev uint32, buf *byte, length uint32) LegacyStatus
	rsmiComputePartitionSet   func(dev uint32, partition string) LegacyStatus
	rsmiComputePartitionReset func(dev uint32) LegacyStatus
	rsmiMemoryPartitionGet    func(dev uint32, buf *byte, length uint32) LegacyStatus
	rsmiMemoryPartitionSet    func(dev uint32, partition string) LegacyStatus
	rsmiMemoryPartitionReset  func(dev uint32) LegacyStatus
	rsmiXGMIErrorStatus       func(dev uint32, status *int32) LegacyStatus
	rsmiXGMIErrorReset        func(dev uint32) LegacyStatus
	rsmiXGMIHiveIDGet         func(dev uint32, hiveID *uint64) LegacyStatus
}

var _ smiLib = (*nativeSMI)(nil)

func newNativeSMI(logger *slog.Logger, rocmPath, libraryPath, sysfsPath string) *nativeSMI {
	return &nativeSMI{
		logger:      logger.With("service", "amdsmi"),
		rocmPath:    rocmPath,
		libraryPath: libraryPath,
		sysfsPath:   sysfsPath,
	}
}

// findLibrary locates libamd_smi.so under the ROCm install root,
// probing lib/ first and lib64/ as a fallback.
func (n *nativeSMI) findLibrary() string {
	if n.libraryPath != "" {
		return n.libraryPath
	}
	root := n.rocmPath
	if root == "" {
		root = os.Getenv("ROCM_PATH")
	}
	if root == "" {
		root = defaultROCmPath
	}
	for _, dir := range []string{"lib", "lib64"} {
		path := filepath.Join(root, dir, libSMIName)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path
		}
	}
	return ""
}

// driverLoaded reports whether the amdgpu kernel module reports a live
// initstate.
func (n *nativeSMI) driverLoaded() bool {
	root := n.sysfsPath
	if root == "" {
		root = "/sys"
	}
	state, err := os.ReadFile(filepath.Join(root, "module", "amdgpu", "initstate"))
	if err != nil {
		return false
	}
	return strings.Contains(string(state), "live")
}

// Load opens the library, resolves its entry points and verifies the
// amdgpu driver is live. Idempotent; the handle stays open for the
// lifetime of the process.
func (n *nativeSMI) Load() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handle == 0 {
		path := n.findLibrary()
		if path == "" {
			return fmt.Errorf("%w: %s not found under ROCm install root, set ROCM_PATH", ErrLibraryNotFound, libSMIName)
		}
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			return fmt.Errorf("%w: dlopen %s: %v", ErrLibraryNotFound, path, err)
		}
		n.handle = handle
		if err := n.registerFunctions(); err != nil {
			return err
		}
		n.logger.Debug("Loaded AMD SMI library", "path", path)
	}

	if !n.driverLoaded() {
		return fmt.Errorf("%w: /sys/module/amdgpu/initstate is not live", ErrDriverNotLoaded)
	}
	return nil
}

// register resolves a single symbol into fn, returning false when the
// library does not export it.
func register[F any](n *nativeSMI, fn *F, name string) bool {
	addr, err := purego.Dlsym(n.handle, name)
	if err != nil || addr == 0 {
		n.logger.Debug("AMD SMI symbol not available", "symbol", name)
		return false
	}
	purego.RegisterFunc(fn, addr)
	return true
}

func (n *nativeSMI) registerFunctions() error {
	var missing []string
	required := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}

	required(register(n, &n.amdsmiInit, "amdsmi_init"), "amdsmi_init")
	required(register(n, &n.amdsmiShutDown, "amdsmi_shut_down"), "amdsmi_shut_down")
	required(register(n, &n.getSocketHandles, "amdsmi_get_socket_handles"), "amdsmi_get_socket_handles")
	required(register(n, &n.getProcessorHandles, "amdsmi_get_processor_handles"), "amdsmi_get_processor_handles")

	register(n, &n.amdsmiStatusCodeToString, "amdsmi_status_code_to_string")
	register(n, &n.getGPUASICInfo, "amdsmi_get_gpu_asic_info")
	register(n, &n.getGPUDeviceBDF, "amdsmi_get_gpu_device_bdf")
	register(n, &n.getGPUDeviceUUID, "amdsmi_get_gpu_device_uuid")
	register(n, &n.getGPUActivity, "amdsmi_get_gpu_activity")
	register(n, &n.getGPUMemoryUsage, "amdsmi_get_gpu_memory_usage")
	register(n, &n.getGPUMemoryTotal, "amdsmi_get_gpu_memory_total")
	register(n, &n.getGPUReservedPages, "amdsmi_get_gpu_memory_reserved_pages")
	register(n, &n.getGPUFanRPMs, "amdsmi_get_gpu_fan_rpms")
	register(n, &n.getGPUFanSpeed, "amdsmi_get_gpu_fan_speed")
	register(n, &n.getGPUFanSpeedMax, "amdsmi_get_gpu_fan_speed_max")
	register(n, &n.getPowerInfo, "amdsmi_get_power_info")
	register(n, &n.getPCIeInfo, "amdsmi_get_pcie_info")
	register(n, &n.getGPUTopoNUMAAffinity, "amdsmi_get_gpu_topo_numa_affinity")
	register(n, &n.topoGetNUMANodeNumber, "amdsmi_topo_get_numa_node_number")
	register(n, &n.topoGetLinkWeight, "amdsmi_topo_get_link_weight")
	register(n, &n.getMinMaxBandwidth, "amdsmi_get_minmax_bandwidth_between_processors")
	register(n, &n.topoGetLinkType, "amdsmi_topo_get_link_type")
	register(n, &n.topoGetP2PStatus, "amdsmi_topo_get_p2p_status")

	register(n, &n.rsmiVersionStrGet, "rsmi_version_str_get")
	register(n, &n.rsmiComputeProcessInfoGet, "rsmi_compute_process_info_get")
	register(n, &n.rsmiComputePartitionGet, "rsmi_dev_compute_partition_get")
	register(n, &n.rsmiComputePartitionSet, "rsmi_dev_compute_partition_set")
	register(n, &n.rsmiComputePartitionReset, "rsmi_dev_compute_partition_reset")
	register(n, &n.rsmiMemoryPartitionGet, "rsmi_dev_memory_partition_get")
	register(n, &n.rsmiMemoryPartitionSet, "rsmi_dev_memory_partition_set")
	register(n, &n.rsmiMemoryPartitionReset, "rsmi_dev_memory_partition_reset")
	register(n, &n.rsmiXGMIErrorStatus, "rsmi_dev_xgmi_error_status")
	register(n, &n.rsmiXGMIErrorReset, "rsmi_dev_xgmi_error_reset")
	register(n, &n.rsmiXGMIHiveIDGet, "rsmi_dev_xgmi_hive_id_get")

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, strings.Join(missing, ", "))
	}
	return nil
}

func (n *nativeSMI) Init(flags uint64) Status {
	return n.amdsmiInit(flags)
}

func (n *nativeSMI) ShutDown() Status {
	return n.amdsmiShutDown()
}

func (n *nativeSMI) StatusString(st Status) string {
	if n.amdsmiStatusCodeToString == nil {
		return ""
	}
	var out *byte
	if n.amdsmiStatusCodeToString(st, &out) != StatusSuccess || out == nil {
		return ""
	}
	return goString(out)
}

func (n *nativeSMI) SocketHandles(count *uint32, handles *socketHandle) Status {
	return n.getSocketHandles(count, handles)
}

func (n *nativeSMI) ProcessorHandles(socket socketHandle, count *uint32, handles *Handle) Status {
	return n.getProcessorHandles(socket, count, handles)
}

func (n *nativeSMI) ASICInfo(h Handle, info *asicInfo) Status {
	if n.getGPUASICInfo == nil {
		return StatusNotSupported
	}
	return n.getGPUASICInfo(h, info)
}

func (n *nativeSMI) DeviceBDF(h Handle, bdf *uint64) Status {
	if n.getGPUDeviceBDF == nil {
		return StatusNotSupported
	}
	return n.getGPUDeviceBDF(h, bdf)
}

func (n *nativeSMI) DeviceUUID(h Handle, length *uint32, buf *byte) Status {
	if n.getGPUDeviceUUID == nil {
		return StatusNotSupported
	}
	return n.getGPUDeviceUUID(h, length, buf)
}

func (n *nativeSMI) GPUActivity(h Handle, usage *engineUsage) Status {
	if n.getGPUActivity == nil {
		return StatusNotSupported
	}
	return n.getGPUActivity(h, usage)
}

func (n *nativeSMI) MemoryUsage(h Handle, memType MemoryType, used *uint64) Status {
	if n.getGPUMemoryUsage == nil {
		return StatusNotSupported
	}
	return n.getGPUMemoryUsage(h, memType, used)
}

func (n *nativeSMI) MemoryTotal(h Handle, memType MemoryType, total *uint64) Status {
	if n.getGPUMemoryTotal == nil {
		return StatusNotSupported
	}
	return n.getGPUMemoryTotal(h, memType, total)
}

func (n *nativeSMI) MemoryReservedPages(h Handle, count *uint32, records *RetiredPageRecord) Status {
	if n.getGPUReservedPages == nil {
		return StatusNotSupported
	}
	return n.getGPUReservedPages(h, count, records)
}

func (n *nativeSMI) FanRPMs(h Handle, sensor int32, rpms *int64) Status {
	if n.getGPUFanRPMs == nil {
		return StatusNotSupported
	}
	return n.getGPUFanRPMs(h, sensor, rpms)
}

func (n *nativeSMI) FanSpeed(h Handle, sensor int32, speed *int64) Status {
	if n.getGPUFanSpeed == nil {
		return StatusNotSupported
	}
	return n.getGPUFanSpeed(h, sensor, speed)
}

func (n *nativeSMI) FanSpeedMax(h Handle, sensor int32, max *uint64) Status {
	if n.getGPUFanSpeedMax == nil {
		return StatusNotSupported
	}
	return n.getGPUFanSpeedMax(h, sensor, max)
}

func (n *nativeSMI) PowerInfo(h Handle, info *powerInfo) Status {
	if n.getPowerInfo == nil {
		return StatusNotSupported
	}
	return n.getPowerInfo(h, info)
}

func (n *nativeSMI) PCIeInfo(h Handle, info *pcieInfo) Status {
	if n.getPCIeInfo == nil {
		return StatusNotSupported
	}
	return n.getPCIeInfo(h, info)
}

func (n *nativeSMI) NUMAAffinity(h Handle, node *int32) Status {
	if n.getGPUTopoNUMAAffinity == nil {
		return StatusNotSupported
	}
	return n.getGPUTopoNUMAAffinity(h, node)
}

func (n *nativeSMI) NUMANode(h Handle, node *uint32) Status {
	if n.topoGetNUMANodeNumber == nil {
		return StatusNotSupported
	}
	return n.topoGetNUMANodeNumber(h, node)
}

func (n *nativeSMI) LinkWeight(src, dst Handle, weight *uint64) Status {
	if n.topoGetLinkWeight == nil {
		return StatusNotSupported
	}
	return n.topoGetLinkWeight(src, dst, weight)
}

func (n *nativeSMI) MinMaxBandwidth(src, dst Handle, minBW, maxBW *uint64) Status {
	if n.getMinMaxBandwidth == nil {
		return StatusNotSupported
	}
	return n.getMinMaxBandwidth(src, dst, minBW, maxBW)
}

func (n *nativeSMI) LinkType(src, dst Handle, hops *uint64, linkType *int32) Status {
	if n.topoGetLinkType == nil {
		return StatusNotSupported
	}
	return n.topoGetLinkType(src, dst, hops, linkType)
}

func (n *nativeSMI) P2PStatus(src, dst Handle, linkType *int32, cap *p2pCapability) Status {
	if n.topoGetP2PStatus == nil {
		return StatusNotSupported
	}
	return n.topoGetP2PStatus(src, dst, linkType, cap)
}

func (n *nativeSMI) VersionString(component int32, buf *byte, length uint32) LegacyStatus {
	if n.rsmiVersionStrGet == nil {
		return LegacyNotSupported
	}
	return n.rsmiVersionStrGet(component, buf, length)
}

func (n *nativeSMI) ComputeProcesses(procs *processInfo, count *uint32) LegacyStatus {
	if n.rsmiComputeProcessInfoGet == nil {
		return LegacyNotSupported
	}
	return n.rsmiComputeProcessInfoGet(procs, count)
}

func (n *nativeSMI) ComputePartition(dev uint32, buf *byte, length uint32) LegacyStatus {
	if n.rsmiComputePartitionGet == nil {
		return LegacyNotSupported
	}
	return n.rsmiComputePartitionGet(dev, buf, length)
}

func (n *nativeSMI) SetComputePartition(dev uint32, partition string) LegacyStatus {
	if n.rsmiComputePartitionSet == nil {
		return LegacyNotSupported
	}
	return n.rsmiComputePartitionSet(dev, partition)
}

func (n *nativeSMI) ResetComputePartition(dev uint32) LegacyStatus {
	if n.rsmiComputePartitionReset == nil {
		return LegacyNotSupported
	}
	return n.rsmiComputePartitionReset(dev)
}

func (n *nativeSMI) MemoryPartition(dev uint32, buf *byte, length uint32) LegacyStatus {
	if n.rsmiMemoryPartitionGet == nil {
		return LegacyNotSupported
	}
	return n.rsmiMemoryPartitionGet(dev, buf, length)
}

func (n *nativeSMI) SetMemoryPartition(dev uint32, partition string) LegacyStatus {
	if n.rsmiMemoryPartitionSet == nil {
		return LegacyNotSupported
	}
	return n.rsmiMemoryPartitionSet(dev, partition)
}

func (n *nativeSMI) ResetMemoryPartition(dev uint32) LegacyStatus {
	if n.rsmiMemoryPartitionReset == nil {
		return LegacyNotSupported
	}
	return n.rsmiMemoryPartitionReset(dev)
}

func (n *nativeSMI) XGMIErrorStatus(dev uint32, status *int32) LegacyStatus {
	if n.rsmiXGMIErrorStatus == nil {
		return LegacyNotSupported
	}
	return n.rsmiXGMIErrorStatus(dev, status)
}

func (n *nativeSMI) XGMIErrorReset(dev uint32) LegacyStatus {
	if n.rsmiXGMIErrorReset == nil {
		return LegacyNotSupported
	}
	return n.rsmiXGMIErrorReset(dev)
}

func (n *nativeSMI) XGMIHiveID(dev uint32, hiveID *uint64) LegacyStatus {
	if n.rsmiXGMIHiveIDGet == nil {
		return LegacyNotSupported
	}
	return n.rsmiXGMIHiveIDGet(dev, hiveID)
}
