// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

// Package rocml binds the AMD SMI library (libamd_smi.so) for
// process-level GPU queries: identity, utilization, memory, power,
// fans, PCIe and topology.
//
// Queries return an error only for caller mistakes: using the session
// before Initialize, an out-of-range device index, or an invalid enum
// argument. A failure inside the native library is logged and reported
// through the sentinel instead (MetricUnavailable, "" or nil), so
// callers can poll without wrapping every read in error handling.
package rocml

// DeviceCount returns the number of enumerated GPU devices, retrying
// the enumeration if it has not produced a table yet.
func (s *SMI) DeviceCount() (int, error) {
	if err := s.requireInit(); err != nil {
		return 0, err
	}
	s.ensureHandles()
	s.handleMu.RLock()
	defer s.handleMu.RUnlock()
	return len(s.handles), nil
}

// asicInfo fetches the ASIC identity block shared by several queries.
func (s *SMI) asicInfo(dev int) (*asicInfo, error) {
	h, err := s.handle(dev)
	if err != nil {
		return nil, err
	}
	var info asicInfo
	if !s.ok("amdsmi_get_gpu_asic_info", s.lib.ASICInfo(h, &info)) {
		return nil, nil
	}
	return &info, nil
}

// DeviceName returns the market name of a device, or "" when the
// native query fails.
func (s *SMI) DeviceName(dev int) (string, error) {
	info, err := s.asicInfo(dev)
	if err != nil || info == nil {
		return "", err
	}
	return cString(info.MarketName[:]), nil
}

// DeviceID returns the device ID, or MetricUnavailable.
func (s *SMI) DeviceID(dev int) (int64, error) {
	info, err := s.asicInfo(dev)
	if err != nil || info == nil {
		return MetricUnavailable, err
	}
	return int64(info.DeviceID), nil
}

// DeviceRevision returns the revision ID, or MetricUnavailable.
func (s *SMI) DeviceRevision(dev int) (int64, error) {
	info, err := s.asicInfo(dev)
	if err != nil || info == nil {
		return MetricUnavailable, err
	}
	return int64(info.RevID), nil
}

// bdf fetches the 64-bit BDF (bus/device/function) identifier.
func (s *SMI) bdf(dev int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var bdf uint64
	if !s.ok("amdsmi_get_gpu_device_bdf", s.lib.DeviceBDF(h, &bdf)) {
		return MetricUnavailable, nil
	}
	return int64(bdf), nil
}

// DeviceUniqueID returns the BDF of the device as a 64-bit integer, a
// stable identifier while the device stays plugged in.
func (s *SMI) DeviceUniqueID(dev int) (int64, error) {
	return s.bdf(dev)
}

// PCIID returns the 64-bit BDF identifier of the device:
// ((DOMAIN & 0xffffffff) << 32) | ((BUS & 0xff) << 8) |
// ((DEVICE & 0x1f) << 3) | (FUNCTION & 0x7).
func (s *SMI) PCIID(dev int) (int64, error) {
	return s.bdf(dev)
}

// Utilization returns the GFX engine busy percentage (0-100).
func (s *SMI) Utilization(dev int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var usage engineUsage
	if !s.ok("amdsmi_get_gpu_activity", s.lib.GPUActivity(h, &usage)) {
		return MetricUnavailable, nil
	}
	return int64(usage.GfxActivity), nil
}

// MemoryBusy returns the memory controller busy percentage (0-100).
func (s *SMI) MemoryBusy(dev int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var usage engineUsage
	if !s.ok("amdsmi_get_gpu_activity", s.lib.GPUActivity(h, &usage)) {
		return MetricUnavailable, nil
	}
	return int64(usage.UMCActivity), nil
}

// MemoryUsed returns the used bytes of the given memory pool. memType
// is "VRAM", "VIS_VRAM" or "GTT".
func (s *SMI) MemoryUsed(dev int, memType string) (int64, error) {
	typ, err := parseMemoryType(memType)
	if err != nil {
		return MetricUnavailable, err
	}
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var used uint64
	if !s.ok("amdsmi_get_gpu_memory_usage", s.lib.MemoryUsage(h, typ, &used)) {
		return MetricUnavailable, nil
	}
	return int64(used), nil
}

// MemoryTotal returns the size in bytes of the given memory pool.
func (s *SMI) MemoryTotal(dev int, memType string) (int64, error) {
	typ, err := parseMemoryType(memType)
	if err != nil {
		return MetricUnavailable, err
	}
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var total uint64
	if !s.ok("amdsmi_get_gpu_memory_total", s.lib.MemoryTotal(h, typ, &total)) {
		return MetricUnavailable, nil
	}
	return int64(total), nil
}

// MemoryReservedPages returns the retired page records of a device.
// nil with a nil error means the query failed or no pages are retired.
func (s *SMI) MemoryReservedPages(dev int) ([]RetiredPageRecord, error) {
	h, err := s.handle(dev)
	if err != nil {
		return nil, err
	}
	records, st := enumerate(func(count *uint32, buf *RetiredPageRecord) Status {
		return s.lib.MemoryReservedPages(h, count, buf)
	})
	if !s.ok("amdsmi_get_gpu_memory_reserved_pages", st) {
		return nil, nil
	}
	return records, nil
}

// AveragePower returns the socket power draw in watts. Newer parts
// (MI300 and later) report current_socket_power, older parts report
// average_socket_power; socket_power is the last resort.
func (s *SMI) AveragePower(dev int) (float64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var info powerInfo
	if !s.ok("amdsmi_get_power_info", s.lib.PowerInfo(h, &info)) {
		return MetricUnavailable, nil
	}
	switch {
	case info.CurrentSocketPower > 0:
		return float64(info.CurrentSocketPower), nil
	case info.AverageSocketPower > 0:
		return float64(info.AverageSocketPower), nil
	case info.SocketPower > 0:
		return float64(info.SocketPower), nil
	default:
		return MetricUnavailable, nil
	}
}

// FanRPMs returns the fan speed in RPM for the given sensor.
func (s *SMI) FanRPMs(dev, sensor int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var rpms int64
	if !s.ok("amdsmi_get_gpu_fan_rpms", s.lib.FanRPMs(h, int32(sensor), &rpms)) {
		return MetricUnavailable, nil
	}
	if rpms < 0 {
		return MetricUnavailable, nil
	}
	return rpms, nil
}

// FanSpeed returns the fan speed relative to FanSpeedMax.
func (s *SMI) FanSpeed(dev, sensor int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var speed int64
	if !s.ok("amdsmi_get_gpu_fan_speed", s.lib.FanSpeed(h, int32(sensor), &speed)) {
		return MetricUnavailable, nil
	}
	if speed < 0 {
		return MetricUnavailable, nil
	}
	return speed, nil
}

// FanSpeedMax returns the maximum speed of the given fan sensor.
func (s *SMI) FanSpeedMax(dev, sensor int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var max uint64
	if !s.ok("amdsmi_get_gpu_fan_speed_max", s.lib.FanSpeedMax(h, int32(sensor), &max)) {
		return MetricUnavailable, nil
	}
	return int64(max), nil
}

// pcieInfo fetches the native PCIe block shared by the PCIe queries.
func (s *SMI) pcieInfo(dev int) (*pcieInfo, error) {
	h, err := s.handle(dev)
	if err != nil {
		return nil, err
	}
	var info pcieInfo
	if !s.ok("amdsmi_get_pcie_info", s.lib.PCIeInfo(h, &info)) {
		return nil, nil
	}
	return &info, nil
}

// PCIeInfo returns the decoded static and metric PCIe information, or
// nil when the native query fails.
func (s *SMI) PCIeInfo(dev int) (*PCIeInfo, error) {
	info, err := s.pcieInfo(dev)
	if err != nil || info == nil {
		return nil, err
	}
	return info.decode(), nil
}

// PCIeThroughput returns the measured PCIe bandwidth in bytes/s. The
// native layer reports Mb/s; zero traffic is reported as 0, not as the
// sentinel.
func (s *SMI) PCIeThroughput(dev int) (int64, error) {
	info, err := s.pcieInfo(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	if info == nil {
		return MetricUnavailable, nil
	}
	mbps := int64(info.Metric.PCIeBandwidth)
	if mbps <= 0 {
		return 0, nil
	}
	return mbps * 1024 * 1024 / 8, nil
}

// PCIeReplayCounter returns the PCIe replay count of the device.
func (s *SMI) PCIeReplayCounter(dev int) (int64, error) {
	info, err := s.pcieInfo(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	if info == nil {
		return MetricUnavailable, nil
	}
	return int64(info.Metric.PCIeReplayCount), nil
}

// NUMAAffinity returns the NUMA node the device is closest to.
func (s *SMI) NUMAAffinity(dev int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var node int32
	if !s.ok("amdsmi_get_gpu_topo_numa_affinity", s.lib.NUMAAffinity(h, &node)) {
		return MetricUnavailable, nil
	}
	return int64(node), nil
}

// NUMANode returns the NUMA node number from the topology view. On
// most systems it agrees with NUMAAffinity.
func (s *SMI) NUMANode(dev int) (int64, error) {
	h, err := s.handle(dev)
	if err != nil {
		return MetricUnavailable, err
	}
	var node uint32
	if !s.ok("amdsmi_topo_get_numa_node_number", s.lib.NUMANode(h, &node)) {
		return MetricUnavailable, nil
	}
	return int64(node), nil
}

// LinkWeight returns the topology weight of the link between two
// devices. Lower is closer.
func (s *SMI) LinkWeight(srcDev, dstDev int) (int64, error) {
	src, err := s.handle(srcDev)
	if err != nil {
		return MetricUnavailable, err
	}
	dst, err := s.handle(dstDev)
	if err != nil {
		return MetricUnavailable, err
	}
	var weight uint64
	if !s.ok("amdsmi_topo_get_link_weight", s.lib.LinkWeight(src, dst, &weight)) {
		return MetricUnavailable, nil
	}
	return int64(weight), nil
}

// MinMaxBandwidth returns the minimum and maximum I/O link bandwidth
// between two devices, in bytes/s. Typically available only for XGMI
// peers one hop apart.
func (s *SMI) MinMaxBandwidth(srcDev, dstDev int) (int64, int64, error) {
	src, err := s.handle(srcDev)
	if err != nil {
		return MetricUnavailable, MetricUnavailable, err
	}
	dst, err := s.handle(dstDev)
	if err != nil {
		return MetricUnavailable, MetricUnavailable, err
	}
	var minBW, maxBW uint64
	if !s.ok("amdsmi_get_minmax_bandwidth_between_processors", s.lib.MinMaxBandwidth(src, dst, &minBW, &maxBW)) {
		return MetricUnavailable, MetricUnavailable, nil
	}
	return int64(minBW), int64(maxBW), nil
}

// LinkTypeBetween returns the hop count and link class between two
// devices. On failure the hop count is the sentinel and the link type
// is LinkTypeUnknown.
func (s *SMI) LinkTypeBetween(srcDev, dstDev int) (int64, LinkType, error) {
	src, err := s.handle(srcDev)
	if err != nil {
		return MetricUnavailable, LinkTypeUnknown, err
	}
	dst, err := s.handle(dstDev)
	if err != nil {
		return MetricUnavailable, LinkTypeUnknown, err
	}
	var hops uint64
	var linkType int32
	if !s.ok("amdsmi_topo_get_link_type", s.lib.LinkType(src, dst, &hops, &linkType)) {
		return MetricUnavailable, LinkTypeUnknown, nil
	}
	return int64(hops), LinkType(linkType), nil
}

// P2PAccessible reports whether DMA between two devices is possible.
// TristateUnknown means the capability could not be determined.
func (s *SMI) P2PAccessible(srcDev, dstDev int) (Tristate, error) {
	src, err := s.handle(srcDev)
	if err != nil {
		return TristateUnknown, err
	}
	dst, err := s.handle(dstDev)
	if err != nil {
		return TristateUnknown, err
	}
	var linkType int32
	var cap p2pCapability
	if !s.ok("amdsmi_topo_get_p2p_status", s.lib.P2PStatus(src, dst, &linkType, &cap)) {
		return TristateUnknown, nil
	}
	if cap.IsIolinkDMA != 0 {
		return TristateTrue, nil
	}
	return TristateFalse, nil
}

// ComputeProcesses returns the PIDs of all processes running compute
// workloads, system-wide. nil with a nil error means the query failed
// or nothing is running.
func (s *SMI) ComputeProcesses() ([]uint32, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	var count uint32
	if !s.okLegacy("rsmi_compute_process_info_get", s.lib.ComputeProcesses(nil, &count)) {
		return nil, nil
	}
	if count == 0 {
		return nil, nil
	}
	// Headroom for processes that started between the two calls.
	procs := make([]processInfo, count+10)
	if !s.okLegacy("rsmi_compute_process_info_get", s.lib.ComputeProcesses(&procs[0], &count)) {
		return nil, nil
	}
	if int(count) < len(procs) {
		procs = procs[:count]
	}
	pids := make([]uint32, len(procs))
	for i, p := range procs {
		pids[i] = p.ProcessID
	}
	return pids, nil
}

// KernelVersion returns the ROCm kernel driver version, or "" when it
// cannot be read.
func (s *SMI) KernelVersion() string {
	var buf [maxBufferLength]byte
	if !s.okLegacy("rsmi_version_str_get", s.lib.VersionString(swComponentDriver, &buf[0], maxBufferLength)) {
		return ""
	}
	return cString(buf[:])
}

// ComputePartition returns the current compute partition of a device,
// e.g. "SPX" or "CPX". "" when the query fails.
func (s *SMI) ComputePartition(dev int) (string, error) {
	if err := s.checkIndex(dev); err != nil {
		return "", err
	}
	var buf [maxBufferLength]byte
	if !s.okLegacy("rsmi_dev_compute_partition_get", s.lib.ComputePartition(uint32(dev), &buf[0], maxBufferLength)) {
		return "", nil
	}
	return cString(buf[:]), nil
}

// SetComputePartition changes the compute partition of a device.
// Returns false when the native call is rejected.
func (s *SMI) SetComputePartition(dev int, partition string) (bool, error) {
	if err := s.checkIndex(dev); err != nil {
		return false, err
	}
	return s.okLegacy("rsmi_dev_compute_partition_set", s.lib.SetComputePartition(uint32(dev), partition)), nil
}

// ResetComputePartition reverts the compute partition to its boot
// state.
func (s *SMI) ResetComputePartition(dev int) (bool, error) {
	if err := s.checkIndex(dev); err != nil {
		return false, err
	}
	return s.okLegacy("rsmi_dev_compute_partition_reset", s.lib.ResetComputePartition(uint32(dev))), nil
}

// MemoryPartition returns the current memory partition of a device,
// e.g. "NPS1". "" when the query fails.
func (s *SMI) MemoryPartition(dev int) (string, error) {
	if err := s.checkIndex(dev); err != nil {
		return "", err
	}
	var buf [maxBufferLength]byte
	if !s.okLegacy("rsmi_dev_memory_partition_get", s.lib.MemoryPartition(uint32(dev), &buf[0], maxBufferLength)) {
		return "", nil
	}
	return cString(buf[:]), nil
}

// SetMemoryPartition changes the memory partition of a device.
func (s *SMI) SetMemoryPartition(dev int, partition string) (bool, error) {
	if err := s.checkIndex(dev); err != nil {
		return false, err
	}
	return s.okLegacy("rsmi_dev_memory_partition_set", s.lib.SetMemoryPartition(uint32(dev), partition)), nil
}

// ResetMemoryPartition reverts the memory partition to its boot state.
func (s *SMI) ResetMemoryPartition(dev int) (bool, error) {
	if err := s.checkIndex(dev); err != nil {
		return false, err
	}
	return s.okLegacy("rsmi_dev_memory_partition_reset", s.lib.ResetMemoryPartition(uint32(dev))), nil
}

// XGMIErrorStatus returns the XGMI error state of a device: 0 no
// errors, 1 one error, 2 multiple errors.
func (s *SMI) XGMIErrorStatus(dev int) (int64, error) {
	if err := s.checkIndex(dev); err != nil {
		return MetricUnavailable, err
	}
	var status int32
	if !s.okLegacy("rsmi_dev_xgmi_error_status", s.lib.XGMIErrorStatus(uint32(dev), &status)) {
		return MetricUnavailable, nil
	}
	return int64(status), nil
}

// XGMIErrorReset clears the XGMI error state of a device.
func (s *SMI) XGMIErrorReset(dev int) (bool, error) {
	if err := s.checkIndex(dev); err != nil {
		return false, err
	}
	return s.okLegacy("rsmi_dev_xgmi_error_reset", s.lib.XGMIErrorReset(uint32(dev))), nil
}

// XGMIHiveID returns the XGMI hive the device belongs to.
func (s *SMI) XGMIHiveID(dev int) (int64, error) {
	if err := s.checkIndex(dev); err != nil {
		return MetricUnavailable, err
	}
	var hiveID uint64
	if !s.okLegacy("rsmi_dev_xgmi_hive_id_get", s.lib.XGMIHiveID(uint32(dev), &hiveID)) {
		return MetricUnavailable, nil
	}
	return int64(hiveID), nil
}

// DeviceInfo returns the identity tuple of a device in one call.
// Individual fields degrade to their sentinels independently.
func (s *SMI) DeviceInfo(dev int) (DeviceInfo, error) {
	info := DeviceInfo{
		ID:       MetricUnavailable,
		Revision: MetricUnavailable,
		UniqueID: MetricUnavailable,
	}
	asic, err := s.asicInfo(dev)
	if err != nil {
		return info, err
	}
	if asic != nil {
		info.ID = int64(asic.DeviceID)
		info.Name = cString(asic.MarketName[:])
		info.Revision = int64(asic.RevID)
	}
	if id, err := s.bdf(dev); err == nil {
		info.UniqueID = id
	}
	if uuid, err := s.DeviceUUID(dev, UUIDFormatROC); err == nil {
		info.UUID = uuid
	}
	return info, nil
}
