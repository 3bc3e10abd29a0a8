// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"fmt"
)

// Status is an amdsmi_status_t return code.
type Status int32

const (
	StatusSuccess           Status = 0
	StatusInval             Status = 1
	StatusNotSupported      Status = 2
	StatusNotYetImplemented Status = 3
	StatusFailLoadModule    Status = 4
	StatusFailLoadSymbol    Status = 5
	StatusDRMError          Status = 6
	StatusAPIFailed         Status = 7
	StatusTimeout           Status = 8
	StatusRetry             Status = 9
	StatusNoPerm            Status = 10
	StatusInterrupt         Status = 11
	StatusIO                Status = 12
	StatusAddressFault      Status = 13
	StatusFileError         Status = 14
	StatusOutOfResources    Status = 15
	StatusInternalException Status = 16
	StatusInputOutOfBounds  Status = 17
	StatusInitError         Status = 18
	StatusRefcountOverflow  Status = 19
	StatusDirectoryNotFound Status = 20
	StatusBusy              Status = 30
	StatusNotFound          Status = 31
	StatusNotInit           Status = 32
	StatusNoSlot            Status = 33
	StatusDriverNotLoaded   Status = 34
	StatusMoreData          Status = 39
	StatusNoData            Status = 40
	StatusInsufficientSize  Status = 41
	StatusUnexpectedSize    Status = 42
)

// LegacyStatus is an rsmi_status_t return code, still produced by the
// rsmi_* compatibility entry points (partitions, xgmi, version).
type LegacyStatus uint32

const (
	LegacySuccess           LegacyStatus = 0x0
	LegacyInvalidArgs       LegacyStatus = 0x1
	LegacyNotSupported      LegacyStatus = 0x2
	LegacyFileError         LegacyStatus = 0x3
	LegacyPermission        LegacyStatus = 0x4
	LegacyOutOfResources    LegacyStatus = 0x5
	LegacyInternalException LegacyStatus = 0x6
	LegacyInputOutOfBounds  LegacyStatus = 0x7
	LegacyInitError         LegacyStatus = 0x8
	LegacyNotYetImplemented LegacyStatus = 0x9
	LegacyNotFound          LegacyStatus = 0xA
	LegacyInsufficientSize  LegacyStatus = 0xB
	LegacyInterrupt         LegacyStatus = 0xC
	LegacyUnexpectedSize    LegacyStatus = 0xD
	LegacyNoData            LegacyStatus = 0xE
	LegacyUnknownError      LegacyStatus = 0xFFFFFFFF
)

var statusMessages = map[Status]string{
	StatusSuccess:           "Operation was successful",
	StatusInval:             "Invalid parameters",
	StatusNotSupported:      "Command not supported",
	StatusNotYetImplemented: "Not implemented yet",
	StatusFailLoadModule:    "Failed to load library module",
	StatusFailLoadSymbol:    "Failed to load symbol",
	StatusDRMError:          "Error when calling libdrm",
	StatusAPIFailed:         "API call failed",
	StatusTimeout:           "Timeout in API call",
	StatusRetry:             "Retry operation",
	StatusNoPerm:            "Permission denied",
	StatusInterrupt:         "Interrupt occurred during execution",
	StatusIO:                "I/O Error",
	StatusAddressFault:      "Bad address",
	StatusFileError:         "Problem accessing a file",
	StatusOutOfResources:    "Not enough memory",
	StatusInternalException: "Internal exception was caught",
	StatusInputOutOfBounds:  "Input is out of allowable or safe range",
	StatusInitError:         "Error occurred during initialization",
	StatusRefcountOverflow:  "Internal reference counter exceeded INT32_MAX",
	StatusDirectoryNotFound: "Directory not found",
	StatusBusy:              "Processor busy",
	StatusNotFound:          "Processor not found",
	StatusNotInit:           "Processor not initialized",
	StatusNoSlot:            "No more free slot",
	StatusDriverNotLoaded:   "Processor driver not loaded",
	StatusMoreData:          "More data than buffer size",
	StatusNoData:            "No data found for input",
	StatusInsufficientSize:  "Insufficient resources available",
	StatusUnexpectedSize:    "Unexpected amount of data read",
}

var legacyStatusMessages = map[LegacyStatus]string{
	LegacySuccess:           "Operation was successful",
	LegacyInvalidArgs:       "Invalid arguments provided",
	LegacyNotSupported:      "Not supported on the given system",
	LegacyFileError:         "Problem accessing a file",
	LegacyPermission:        "Permission denied",
	LegacyOutOfResources:    "Unable to acquire memory or other resource",
	LegacyInternalException: "An internal exception was caught",
	LegacyInputOutOfBounds:  "Provided input is out of allowable or safe range",
	LegacyInitError:         "Error occured during rsmi initialization",
	LegacyNotYetImplemented: "Requested function is not implemented on this setup",
	LegacyNotFound:          "Item searched for but not found",
	LegacyInsufficientSize:  "Insufficient resources available",
	LegacyInterrupt:         "Interrupt occured during execution",
	LegacyUnexpectedSize:    "Unexpected amount of data read",
	LegacyNoData:            "No data found for the given input",
	LegacyUnknownError:      "Unknown error occured",
}

// Message returns the static diagnostic text for the code. Unknown
// codes are rendered numerically rather than dropped.
func (s Status) Message() string {
	if msg, found := statusMessages[s]; found {
		return msg
	}
	return fmt.Sprintf("Unknown error code: %d", int32(s))
}

func (s LegacyStatus) Message() string {
	if msg, found := legacyStatusMessages[s]; found {
		return msg
	}
	return fmt.Sprintf("Unknown error code: %d", uint32(s))
}

// ok reports whether an amdsmi call succeeded. On failure it logs the
// diagnostic, preferring the string the library itself produces via
// amdsmi_status_code_to_string and falling back to the static table
// when that entry point is unavailable or returns nothing.
func (s *SMI) ok(op string, st Status) bool {
	if st == StatusSuccess {
		return true
	}
	msg := s.lib.StatusString(st)
	if msg == "" {
		msg = st.Message()
	}
	s.logger.Error("amdsmi call failed", "op", op, "code", int32(st), "error", msg)
	return false
}

// okLegacy is the rsmi_* counterpart of ok. The legacy entry points
// have no message call of their own; the static table is authoritative.
func (s *SMI) okLegacy(op string, st LegacyStatus) bool {
	if st == LegacySuccess {
		return true
	}
	s.logger.Error("rsmi call failed", "op", op, "code", uint32(st), "error", st.Message())
	return false
}
