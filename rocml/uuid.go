// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"fmt"
	"strings"
)

// UUID output formats accepted by DeviceUUID.
const (
	// UUIDFormatROC is the ROCm form: "GPU-" followed by the UUID.
	UUIDFormatROC = "roc"
	// UUIDFormatRaw is the bare UUID with no prefix.
	UUIDFormatRaw = "raw"
	// UUIDFormatNV is the NVIDIA-style form: "GPU-" followed by the
	// UUID grouped 8-4-4-4-12.
	UUIDFormatNV = "nv"
)

// DeviceUUID returns the UUID of a device in the requested format.
// When the native UUID entry point is unavailable the BDF is expanded
// into a pseudo-UUID instead: unique on this host, but not the HSA
// UUID. Returns "" when no identifier can be produced at all.
func (s *SMI) DeviceUUID(dev int, format string) (string, error) {
	switch format {
	case UUIDFormatROC, UUIDFormatRaw, UUIDFormatNV:
	default:
		return "", fmt.Errorf("%w: invalid uuid format %q, use roc, raw or nv", ErrInvalidArgument, format)
	}

	h, err := s.handle(dev)
	if err != nil {
		return "", err
	}

	var buf [maxStringLength]byte
	length := uint32(maxStringLength)
	if st := s.lib.DeviceUUID(h, &length, &buf[0]); st == StatusSuccess {
		return formatUUID(cString(buf[:]), format), nil
	}

	s.logger.Warn("Native device UUID unavailable, deriving one from BDF", "dev", dev)
	bdf, err := s.bdf(dev)
	if err != nil || bdf == MetricUnavailable {
		s.logger.Error("Failed to derive BDF-based ID", "dev", dev)
		return "", err
	}
	return formatUUID(fmt.Sprintf("%032x", uint64(bdf)), format), nil
}

// formatUUID renders a raw or prefixed UUID string in the requested
// format. The format string is validated by the caller.
func formatUUID(uuid, format string) string {
	raw := strings.TrimPrefix(uuid, "GPU-")
	switch format {
	case UUIDFormatRaw:
		return raw
	case UUIDFormatNV:
		return "GPU-" + groupUUID(raw)
	default:
		return "GPU-" + raw
	}
}

// groupUUID inserts the canonical 8-4-4-4-12 hyphens into an ungrouped
// 32-char hex string. Already-grouped or unexpected-length input is
// passed through unchanged.
func groupUUID(raw string) string {
	if strings.Contains(raw, "-") || len(raw) != 32 {
		return raw
	}
	return strings.Join([]string{
		raw[:8], raw[8:12], raw[12:16], raw[16:20], raw[20:32],
	}, "-")
}
