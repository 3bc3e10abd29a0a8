// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"github.com/stretchr/testify/mock"
)

// mockSMI is a mock implementation of smiLib. Out-parameters are filled
// from test code via Run callbacks.
type mockSMI struct {
	mock.Mock
}

func (m *mockSMI) Load() error {
	calledArgs := m.Called()
	return calledArgs.Error(0)
}

func (m *mockSMI) Init(flags uint64) Status {
	calledArgs := m.Called(flags)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) ShutDown() Status {
	calledArgs := m.Called()
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) StatusString(st Status) string {
	calledArgs := m.Called(st)
	return calledArgs.String(0)
}

func (m *mockSMI) SocketHandles(count *uint32, handles *socketHandle) Status {
	calledArgs := m.Called(count, handles)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) ProcessorHandles(socket socketHandle, count *uint32, handles *Handle) Status {
	calledArgs := m.Called(socket, count, handles)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) ASICInfo(h Handle, info *asicInfo) Status {
	calledArgs := m.Called(h, info)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) DeviceBDF(h Handle, bdf *uint64) Status {
	calledArgs := m.Called(h, bdf)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) DeviceUUID(h Handle, length *uint32, buf *byte) Status {
	calledArgs := m.Called(h, length, buf)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) GPUActivity(h Handle, usage *engineUsage) Status {
	calledArgs := m.Called(h, usage)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) MemoryUsage(h Handle, memType MemoryType, used *uint64) Status {
	calledArgs := m.Called(h, memType, used)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) MemoryTotal(h Handle, memType MemoryType, total *uint64) Status {
	calledArgs := m.Called(h, memType, total)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) MemoryReservedPages(h Handle, count *uint32, records *RetiredPageRecord) Status {
	calledArgs := m.Called(h, count, records)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) FanRPMs(h Handle, sensor int32, rpms *int64) Status {
	calledArgs := m.Called(h, sensor, rpms)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) FanSpeed(h Handle, sensor int32, speed *int64) Status {
	calledArgs := m.Called(h, sensor, speed)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) FanSpeedMax(h Handle, sensor int32, max *uint64) Status {
	calledArgs := m.Called(h, sensor, max)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) PowerInfo(h Handle, info *powerInfo) Status {
	calledArgs := m.Called(h, info)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) PCIeInfo(h Handle, info *pcieInfo) Status {
	calledArgs := m.Called(h, info)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) NUMAAffinity(h Handle, node *int32) Status {
	calledArgs := m.Called(h, node)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) NUMANode(h Handle, node *uint32) Status {
	calledArgs := m.Called(h, node)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) LinkWeight(src, dst Handle, weight *uint64) Status {
	calledArgs := m.Called(src, dst, weight)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) MinMaxBandwidth(src, dst Handle, minBW, maxBW *uint64) Status {
	calledArgs := m.Called(src, dst, minBW, maxBW)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) LinkType(src, dst Handle, hops *uint64, linkType *int32) Status {
	calledArgs := m.Called(src, dst, hops, linkType)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) P2PStatus(src, dst Handle, linkType *int32, cap *p2pCapability) Status {
	calledArgs := m.Called(src, dst, linkType, cap)
	return calledArgs.Get(0).(Status)
}

func (m *mockSMI) VersionString(component int32, buf *byte, length uint32) LegacyStatus {
	calledArgs := m.Called(component, buf, length)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) ComputeProcesses(procs *processInfo, count *uint32) LegacyStatus {
	calledArgs := m.Called(procs, count)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) ComputePartition(dev uint32, buf *byte, length uint32) LegacyStatus {
	calledArgs := m.Called(dev, buf, length)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) SetComputePartition(dev uint32, partition string) LegacyStatus {
	calledArgs := m.Called(dev, partition)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) ResetComputePartition(dev uint32) LegacyStatus {
	calledArgs := m.Called(dev)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) MemoryPartition(dev uint32, buf *byte, length uint32) LegacyStatus {
	calledArgs := m.Called(dev, buf, length)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) SetMemoryPartition(dev uint32, partition string) LegacyStatus {
	calledArgs := m.Called(dev, partition)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) ResetMemoryPartition(dev uint32) LegacyStatus {
	calledArgs := m.Called(dev)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) XGMIErrorStatus(dev uint32, status *int32) LegacyStatus {
	calledArgs := m.Called(dev, status)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) XGMIErrorReset(dev uint32) LegacyStatus {
	calledArgs := m.Called(dev)
	return calledArgs.Get(0).(LegacyStatus)
}

func (m *mockSMI) XGMIHiveID(dev uint32, hiveID *uint64) LegacyStatus {
	calledArgs := m.Called(dev, hiveID)
	return calledArgs.Get(0).(LegacyStatus)
}

var _ smiLib = (*mockSMI)(nil)
