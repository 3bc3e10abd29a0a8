// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// twoSocketSMI builds a 2x2 topology: devices 0,1 share a socket and
// are XGMI peers, devices 2,3 live on the other socket.
func twoSocketSMI(t *testing.T) (*SMI, *FakeSMI) {
	t.Helper()
	fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{
		{NewFakeDevice(0), NewFakeDevice(1)},
		{NewFakeDevice(2), NewFakeDevice(3)},
	}})
	return newTestSMI(t, fake), fake
}

func TestDeviceIdentity(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	name, err := s.DeviceName(0)
	require.NoError(t, err)
	assert.Equal(t, "AMD Instinct MI300X (fake 0)", name)

	id, err := s.DeviceID(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0x74a1), id)

	rev, err := s.DeviceRevision(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rev)

	uid, err := s.DeviceUniqueID(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<8), uid)

	pciID, err := s.PCIID(0)
	require.NoError(t, err)
	assert.Equal(t, uid, pciID)
}

// Identifiers must distinguish devices: no two enumerated devices may
// share a unique ID, PCI ID or UUID.
func TestDeviceIdentifiersDistinct(t *testing.T) {
	s, _ := twoSocketSMI(t)

	count, err := s.DeviceCount()
	require.NoError(t, err)
	require.Equal(t, 4, count)

	uniqueIDs := map[int64]int{}
	pciIDs := map[int64]int{}
	uuids := map[string]int{}
	for dev := 0; dev < count; dev++ {
		uid, err := s.DeviceUniqueID(dev)
		require.NoError(t, err)
		if prev, seen := uniqueIDs[uid]; seen {
			t.Errorf("devices %d and %d share unique ID %#x", prev, dev, uid)
		}
		uniqueIDs[uid] = dev

		pciID, err := s.PCIID(dev)
		require.NoError(t, err)
		if prev, seen := pciIDs[pciID]; seen {
			t.Errorf("devices %d and %d share PCI ID %#x", prev, dev, pciID)
		}
		pciIDs[pciID] = dev

		uuid, err := s.DeviceUUID(dev, UUIDFormatROC)
		require.NoError(t, err)
		require.NotEmpty(t, uuid)
		if prev, seen := uuids[uuid]; seen {
			t.Errorf("devices %d and %d share UUID %s", prev, dev, uuid)
		}
		uuids[uuid] = dev
	}
}

// The BDF pseudo-UUID fallback must preserve distinctness too.
func TestDeviceIdentifiersDistinctWithoutNativeUUID(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 4})
	fake.UUIDSupported = false
	s := newTestSMI(t, fake)

	uuids := map[string]int{}
	for dev := 0; dev < 4; dev++ {
		uuid, err := s.DeviceUUID(dev, UUIDFormatROC)
		require.NoError(t, err)
		require.NotEmpty(t, uuid)
		if prev, seen := uuids[uuid]; seen {
			t.Errorf("devices %d and %d share fallback UUID %s", prev, dev, uuid)
		}
		uuids[uuid] = dev
	}
}

func TestInvalidDeviceIndex(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 2})
	s := newTestSMI(t, fake)

	var idxErr ErrInvalidDeviceIndex
	_, err := s.DeviceName(2)
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 2, idxErr.Index)
	assert.Equal(t, 2, idxErr.Count)
	assert.Contains(t, err.Error(), "valid range is 0-1")

	_, err = s.Utilization(-1)
	assert.ErrorAs(t, err, &idxErr)
}

func TestUtilization(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	busy, err := s.Utilization(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), busy)

	memBusy, err := s.MemoryBusy(0)
	require.NoError(t, err)
	assert.Equal(t, int64(17), memBusy)
}

func TestMemoryPools(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	used, err := s.MemoryUsed(0, "VRAM")
	require.NoError(t, err)
	assert.Equal(t, int64(6<<30), used)

	total, err := s.MemoryTotal(0, "VRAM")
	require.NoError(t, err)
	assert.Equal(t, int64(192<<30), total)

	gtt, err := s.MemoryTotal(0, "GTT")
	require.NoError(t, err)
	assert.Equal(t, int64(64<<30), gtt)

	vis, err := s.MemoryUsed(0, "VIS_VRAM")
	require.NoError(t, err)
	assert.Equal(t, int64(256<<20), vis)
}

func TestMemoryInvalidPoolName(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	_, err := s.MemoryUsed(0, "HBM")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.MemoryTotal(0, "vram") // case sensitive
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMemoryReservedPages(t *testing.T) {
	dev := NewFakeDevice(0)
	dev.ReservedPages = []RetiredPageRecord{
		{PageAddress: 0x1000, PageSize: 4096, Status: PageStatusReserved},
		{PageAddress: 0x5000, PageSize: 4096, Status: PageStatusPending},
	}
	fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{{dev}}})
	s := newTestSMI(t, fake)

	records, err := s.MemoryReservedPages(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(0x1000), records[0].PageAddress)
	assert.Equal(t, PageStatusPending, records[1].Status)
}

func TestMemoryReservedPagesEmpty(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	records, err := s.MemoryReservedPages(0)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestAveragePowerPreferenceOrder(t *testing.T) {
	tests := []struct {
		name    string
		current uint32
		average uint32
		socket  uint64
		want    float64
	}{
		{"current wins", 350, 300, 280, 350},
		{"average when current is zero", 0, 300, 280, 300},
		{"socket as last resort", 0, 0, 280, 280},
		{"all zero is unavailable", 0, 0, 0, MetricUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dev := NewFakeDevice(0)
			dev.CurrentPower = tc.current
			dev.AveragePower = tc.average
			dev.SocketPower = tc.socket
			fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{{dev}}})
			s := newTestSMI(t, fake)

			power, err := s.AveragePower(0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, power)
		})
	}
}

func TestFans(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	rpms, err := s.FanRPMs(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3200), rpms)

	speed, err := s.FanSpeed(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(128), speed)

	maxSpeed, err := s.FanSpeedMax(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(255), maxSpeed)
}

func TestFansNegativeReadings(t *testing.T) {
	dev := NewFakeDevice(0)
	dev.FanRPM = -2
	dev.FanSpeed = -7
	fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{{dev}}})
	s := newTestSMI(t, fake)

	rpms, err := s.FanRPMs(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(MetricUnavailable), rpms)

	speed, err := s.FanSpeed(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(MetricUnavailable), speed)
}

func TestPCIe(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	info, err := s.PCIeInfo(0)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint16(16), info.Static.MaxWidth)
	assert.Equal(t, uint32(32), info.Static.MaxSpeed)
	assert.Equal(t, FormFactorOAM, info.Static.SlotType)
	assert.Equal(t, uint32(2048), info.Metric.Bandwidth)

	// 2048 Mb/s is 268435456 bytes/s
	throughput, err := s.PCIeThroughput(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2048*1024*1024/8), throughput)

	replays, err := s.PCIeReplayCounter(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), replays)
}

func TestPCIeThroughputIdleIsZero(t *testing.T) {
	dev := NewFakeDevice(0)
	dev.PCIeBandwidthMbps = 0
	fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{{dev}}})
	s := newTestSMI(t, fake)

	// no traffic is a valid reading, not a failure
	throughput, err := s.PCIeThroughput(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), throughput)
}

func TestNUMA(t *testing.T) {
	dev := NewFakeDevice(0)
	dev.NUMANode = 3
	fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{{dev}}})
	s := newTestSMI(t, fake)

	affinity, err := s.NUMAAffinity(0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affinity)

	node, err := s.NUMANode(0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), node)
}

func TestTopologyLinks(t *testing.T) {
	s, _ := twoSocketSMI(t)

	weight, err := s.LinkWeight(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), weight)

	weight, err = s.LinkWeight(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(15), weight)

	weight, err = s.LinkWeight(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(40), weight)

	hops, linkType, err := s.LinkTypeBetween(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hops)
	assert.Equal(t, LinkTypeXGMI, linkType)

	hops, linkType, err = s.LinkTypeBetween(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hops)
	assert.Equal(t, LinkTypePCIe, linkType)
}

func TestMinMaxBandwidth(t *testing.T) {
	s, _ := twoSocketSMI(t)

	minBW, maxBW, err := s.MinMaxBandwidth(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25<<30), minBW)
	assert.Equal(t, int64(50<<30), maxBW)

	// cross-socket links do not report a bandwidth range
	minBW, maxBW, err = s.MinMaxBandwidth(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(MetricUnavailable), minBW)
	assert.Equal(t, int64(MetricUnavailable), maxBW)
}

func TestP2PAccessible(t *testing.T) {
	s, _ := twoSocketSMI(t)

	dma, err := s.P2PAccessible(0, 1)
	require.NoError(t, err)
	assert.Equal(t, TristateTrue, dma)

	dma, err = s.P2PAccessible(0, 2)
	require.NoError(t, err)
	assert.Equal(t, TristateFalse, dma)
}

func TestComputeProcesses(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	fake.ComputePIDs = []uint32{1234, 5678}
	s := newTestSMI(t, fake)

	pids, err := s.ComputeProcesses()
	require.NoError(t, err)
	assert.Equal(t, []uint32{1234, 5678}, pids)
}

func TestComputeProcessesEmpty(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	pids, err := s.ComputeProcesses()
	require.NoError(t, err)
	assert.Nil(t, pids)
}

func TestKernelVersion(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)
	assert.Equal(t, "6.8.5", s.KernelVersion())

	fake.FailLegacyOps = map[string]LegacyStatus{
		"rsmi_version_str_get": LegacyNotSupported,
	}
	assert.Equal(t, "", s.KernelVersion())
}

func TestComputePartitionRoundTrip(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	partition, err := s.ComputePartition(0)
	require.NoError(t, err)
	assert.Equal(t, "SPX", partition)

	set, err := s.SetComputePartition(0, "CPX")
	require.NoError(t, err)
	assert.True(t, set)

	partition, err = s.ComputePartition(0)
	require.NoError(t, err)
	assert.Equal(t, "CPX", partition)

	reset, err := s.ResetComputePartition(0)
	require.NoError(t, err)
	assert.True(t, reset)

	partition, err = s.ComputePartition(0)
	require.NoError(t, err)
	assert.Equal(t, "SPX", partition)
}

func TestMemoryPartitionRoundTrip(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	partition, err := s.MemoryPartition(0)
	require.NoError(t, err)
	assert.Equal(t, "NPS1", partition)

	set, err := s.SetMemoryPartition(0, "NPS4")
	require.NoError(t, err)
	assert.True(t, set)

	partition, err = s.MemoryPartition(0)
	require.NoError(t, err)
	assert.Equal(t, "NPS4", partition)

	reset, err := s.ResetMemoryPartition(0)
	require.NoError(t, err)
	assert.True(t, reset)
}

func TestSetComputePartitionRejected(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	fake.FailLegacyOps = map[string]LegacyStatus{
		"rsmi_dev_compute_partition_set": LegacyPermission,
	}
	s := newTestSMI(t, fake)

	set, err := s.SetComputePartition(0, "CPX")
	require.NoError(t, err)
	assert.False(t, set)
}

func TestPartitionInvalidIndex(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	var idxErr ErrInvalidDeviceIndex
	_, err := s.ComputePartition(5)
	assert.ErrorAs(t, err, &idxErr)
	_, err = s.SetMemoryPartition(5, "NPS4")
	assert.ErrorAs(t, err, &idxErr)
}

func TestXGMI(t *testing.T) {
	dev := NewFakeDevice(0)
	dev.XGMIErrors = 2
	fake := NewFakeSMI(FakeSMIOpts{Sockets: [][]*FakeDevice{{dev}}})
	s := newTestSMI(t, fake)

	status, err := s.XGMIErrorStatus(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status)

	reset, err := s.XGMIErrorReset(0)
	require.NoError(t, err)
	assert.True(t, reset)

	status, err = s.XGMIErrorStatus(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status)

	hive, err := s.XGMIHiveID(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1001), hive)
}

func TestDeviceInfo(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	s := newTestSMI(t, fake)

	info, err := s.DeviceInfo(0)
	require.NoError(t, err)
	assert.Equal(t, "AMD Instinct MI300X (fake 0)", info.Name)
	assert.Equal(t, int64(0x74a1), info.ID)
	assert.Equal(t, int64(0), info.Revision)
	assert.Equal(t, int64(1<<8), info.UniqueID)
	assert.NotEmpty(t, info.UUID)
}

func TestDeviceInfoDegradesPerField(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	fake.FailOps = map[string]Status{
		"amdsmi_get_gpu_asic_info": StatusNotSupported,
	}
	s := newTestSMI(t, fake)

	info, err := s.DeviceInfo(0)
	require.NoError(t, err)
	assert.Equal(t, int64(MetricUnavailable), info.ID)
	assert.Empty(t, info.Name)
	// the BDF path is independent of the ASIC block
	assert.Equal(t, int64(1<<8), info.UniqueID)
}

// Native failures surface as sentinels, never as errors.
func TestNativeFailureReturnsSentinel(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 1})
	fake.FailOps = map[string]Status{
		"amdsmi_get_gpu_activity":     StatusNotSupported,
		"amdsmi_get_power_info":       StatusAPIFailed,
		"amdsmi_get_gpu_asic_info":    StatusNoData,
		"amdsmi_get_pcie_info":        StatusNotSupported,
		"amdsmi_get_gpu_memory_usage": StatusBusy,
	}
	s := newTestSMI(t, fake)

	busy, err := s.Utilization(0)
	require.NoError(t, err)
	assert.Equal(t, int64(MetricUnavailable), busy)

	power, err := s.AveragePower(0)
	require.NoError(t, err)
	assert.Equal(t, float64(MetricUnavailable), power)

	name, err := s.DeviceName(0)
	require.NoError(t, err)
	assert.Empty(t, name)

	info, err := s.PCIeInfo(0)
	require.NoError(t, err)
	assert.Nil(t, info)

	used, err := s.MemoryUsed(0, "VRAM")
	require.NoError(t, err)
	assert.Equal(t, int64(MetricUnavailable), used)
}

// Concurrent reads against one session must be safe.
func TestConcurrentQueries(t *testing.T) {
	s, _ := twoSocketSMI(t)

	count, err := s.DeviceCount()
	require.NoError(t, err)

	var g errgroup.Group
	for n := 0; n < 8; n++ {
		g.Go(func() error {
			for dev := 0; dev < count; dev++ {
				if _, err := s.Utilization(dev); err != nil {
					return err
				}
				if _, err := s.MemoryUsed(dev, "VRAM"); err != nil {
					return err
				}
				if _, err := s.AveragePower(dev); err != nil {
					return err
				}
				if _, _, err := s.LinkTypeBetween(dev, (dev+1)%count); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

// Partition writes racing metric reads must be safe against the fake
// backend, like any real management library.
func TestConcurrentMixedAccess(t *testing.T) {
	fake := NewFakeSMI(FakeSMIOpts{DeviceCount: 2})
	s := newTestSMI(t, fake)

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		partition := "SPX"
		if i%2 == 1 {
			partition = "CPX"
		}
		g.Go(func() error {
			for n := 0; n < 20; n++ {
				if _, err := s.SetComputePartition(0, partition); err != nil {
					return err
				}
				if _, err := s.ComputePartition(0); err != nil {
					return err
				}
				if _, err := s.XGMIErrorReset(0); err != nil {
					return err
				}
				if _, err := s.DeviceName(1); err != nil {
					return err
				}
				if _, err := s.AveragePower(1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	partition, err := s.ComputePartition(0)
	require.NoError(t, err)
	assert.Contains(t, []string{"SPX", "CPX"}, partition)
}
