// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"fmt"
	"unsafe"
)

// Handle is an opaque amdsmi processor handle. Handles are only valid
// between Initialize and the matching Shutdown; the mapping from device
// index to handle may change across re-initialization.
type Handle uintptr

// socketHandle is an opaque amdsmi socket handle.
type socketHandle uintptr

const (
	// maxStringLength matches AMDSMI_MAX_STRING_LENGTH.
	maxStringLength = 256

	// maxBufferLength matches RSMI_MAX_BUFFER_LENGTH used by the legacy
	// partition string calls.
	maxBufferLength = 256

	// initAMDGPUs is AMDSMI_INIT_AMD_GPUS.
	initAMDGPUs uint64 = 1 << 1

	// swComponentDriver is RSMI_SW_COMP_DRIVER.
	swComponentDriver int32 = 0
)

// MetricUnavailable is the numeric sentinel returned when a query fails
// natively. String queries return "" and slice queries return nil.
const MetricUnavailable = -1

// MemoryType selects which memory pool a memory query targets.
type MemoryType int32

const (
	MemoryTypeVRAM    MemoryType = 0
	MemoryTypeVisVRAM MemoryType = 1
	MemoryTypeGTT     MemoryType = 2
)

// parseMemoryType maps the public memory type names to their native
// enum values.
func parseMemoryType(name string) (MemoryType, error) {
	switch name {
	case "VRAM":
		return MemoryTypeVRAM, nil
	case "VIS_VRAM":
		return MemoryTypeVisVRAM, nil
	case "GTT":
		return MemoryTypeGTT, nil
	default:
		return 0, fmt.Errorf("%w: unknown memory type %q, use VRAM, VIS_VRAM or GTT", ErrInvalidArgument, name)
	}
}

// LinkType classifies the I/O link between two processors.
type LinkType int32

const (
	LinkTypeInternal      LinkType = 0
	LinkTypePCIe          LinkType = 1
	LinkTypeXGMI          LinkType = 2
	LinkTypeNotApplicable LinkType = 3
	LinkTypeUnknown       LinkType = 4
)

func (t LinkType) String() string {
	switch t {
	case LinkTypeInternal:
		return "internal"
	case LinkTypePCIe:
		return "pcie"
	case LinkTypeXGMI:
		return "xgmi"
	case LinkTypeNotApplicable:
		return "n/a"
	default:
		return "unknown"
	}
}

// CardFormFactor is the PCIe slot type reported in the static PCIe info.
type CardFormFactor int32

const (
	FormFactorPCIe    CardFormFactor = 0
	FormFactorOAM     CardFormFactor = 1
	FormFactorCEM     CardFormFactor = 2
	FormFactorUnknown CardFormFactor = 3
)

func (f CardFormFactor) String() string {
	switch f {
	case FormFactorPCIe:
		return "pcie"
	case FormFactorOAM:
		return "oam"
	case FormFactorCEM:
		return "cem"
	default:
		return "unknown"
	}
}

// Tristate is a boolean that can also report that the answer could not
// be determined.
type Tristate int8

const (
	TristateFalse   Tristate = 0
	TristateTrue    Tristate = 1
	TristateUnknown Tristate = -1
)

// PageStatus is the state of a retired memory page.
type PageStatus int32

const (
	PageStatusReserved     PageStatus = 0
	PageStatusPending      PageStatus = 1
	PageStatusUnreservable PageStatus = 2
)

// RetiredPageRecord mirrors amdsmi_retired_page_record_t. The layout is
// fixed; it is passed directly to the native layer.
type RetiredPageRecord struct {
	PageAddress uint64
	PageSize    uint64
	Status      PageStatus
}

// PCIeStatic is the decoded static half of the native PCIe info.
type PCIeStatic struct {
	MaxWidth            uint16
	MaxSpeed            uint32
	InterfaceVersion    uint32
	SlotType            CardFormFactor
	MaxInterfaceVersion uint32
}

// PCIeMetric is the decoded metric half of the native PCIe info.
type PCIeMetric struct {
	Width                       uint16
	Speed                       uint32
	Bandwidth                   uint32
	ReplayCount                 uint64
	L0ToRecoveryCount           uint64
	ReplayRollOverCount         uint64
	NAKSentCount                uint64
	NAKReceivedCount            uint64
	LCPerfOtherEndRecoveryCount uint32
}

// PCIeInfo is the decoded amdsmi PCIe information for a device.
type PCIeInfo struct {
	Static PCIeStatic
	Metric PCIeMetric
}

// DeviceInfo is the identity tuple of a device, fetched in one call.
type DeviceInfo struct {
	ID       int64
	Name     string
	Revision int64
	UniqueID int64
	UUID     string
}

// Native struct mirrors. Field order, widths and reserved tails must
// match the amdsmi ABI exactly; these are overlaid on memory the
// library writes into.

type asicInfo struct {
	MarketName            [maxStringLength]byte
	VendorID              uint32
	VendorName            [maxStringLength]byte
	SubvendorID           uint32
	DeviceID              uint64
	RevID                 uint32
	ASICSerial            [maxStringLength]byte
	OAMID                 uint32
	NumComputeUnits       uint32
	TargetGraphicsVersion uint64
	SubsystemID           uint32
	Reserved              [21]uint32
}

type engineUsage struct {
	GfxActivity uint32
	UMCActivity uint32
	MMActivity  uint32
	Reserved    [13]uint32
}

type powerInfo struct {
	SocketPower        uint64
	CurrentSocketPower uint32
	AverageSocketPower uint32
	GfxVoltage         uint64
	SocVoltage         uint64
	MemVoltage         uint64
	PowerLimit         uint32
	Reserved           [18]uint64
}

type pcieStatic struct {
	MaxPCIeWidth            uint16
	MaxPCIeSpeed            uint32
	PCIeInterfaceVersion    uint32
	SlotType                int32
	MaxPCIeInterfaceVersion uint32
	Reserved                [9]uint64
}

type pcieMetric struct {
	PCIeWidth                  uint16
	PCIeSpeed                  uint32
	PCIeBandwidth              uint32
	PCIeReplayCount            uint64
	PCIeL0ToRecoveryCount      uint64
	PCIeReplayRollOverCount    uint64
	PCIeNAKSentCount           uint64
	PCIeNAKReceivedCount       uint64
	PCIeLCPerfOtherEndRecovery uint32
	Reserved                   [12]uint64
}

type pcieInfo struct {
	Static   pcieStatic
	Metric   pcieMetric
	Reserved [32]uint64
}

type p2pCapability struct {
	IsIolinkCoherent      uint8
	IsIolinkAtomics32Bit  uint8
	IsIolinkAtomics64Bit  uint8
	IsIolinkDMA           uint8
	IsIolinkBiDirectional uint8
}

type processInfo struct {
	ProcessID   uint32
	PASID       uint32
	VRAMUsage   uint64
	SDMAUsage   uint64
	CUOccupancy uint32
}

// decode converts the native PCIe info into its public form.
func (p *pcieInfo) decode() *PCIeInfo {
	return &PCIeInfo{
		Static: PCIeStatic{
			MaxWidth:            p.Static.MaxPCIeWidth,
			MaxSpeed:            p.Static.MaxPCIeSpeed,
			InterfaceVersion:    p.Static.PCIeInterfaceVersion,
			SlotType:            CardFormFactor(p.Static.SlotType),
			MaxInterfaceVersion: p.Static.MaxPCIeInterfaceVersion,
		},
		Metric: PCIeMetric{
			Width:                       p.Metric.PCIeWidth,
			Speed:                       p.Metric.PCIeSpeed,
			Bandwidth:                   p.Metric.PCIeBandwidth,
			ReplayCount:                 p.Metric.PCIeReplayCount,
			L0ToRecoveryCount:           p.Metric.PCIeL0ToRecoveryCount,
			ReplayRollOverCount:         p.Metric.PCIeReplayRollOverCount,
			NAKSentCount:                p.Metric.PCIeNAKSentCount,
			NAKReceivedCount:            p.Metric.PCIeNAKReceivedCount,
			LCPerfOtherEndRecoveryCount: p.Metric.PCIeLCPerfOtherEndRecovery,
		},
	}
}

// cString decodes a NUL-terminated byte buffer into a Go string.
func cString(bs []byte) string {
	for i, b := range bs {
		if b == 0 {
			return string(bs[:i])
		}
	}
	return string(bs)
}

// sliceOf views a count/buffer pair as a slice. The native convention
// passes buffers as a pointer to the first element.
func sliceOf[T any](p *T, n int) []T {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice(p, n)
}

// writeCString fills a fixed-size native string buffer, NUL-terminated
// when it fits.
func writeCString(buf *byte, length uint32, s string) {
	out := sliceOf(buf, int(length))
	n := copy(out, s)
	if n < len(out) {
		out[n] = 0
	}
}
