// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

// enumerate runs the native count/buffer protocol: a first call with a
// nil buffer yields the element count, a second call fills a buffer of
// that size. The native layer may shrink the count between calls; the
// returned slice is trimmed to what was actually written.
func enumerate[T any](fetch func(count *uint32, buf *T) Status) ([]T, Status) {
	var count uint32
	if st := fetch(&count, nil); st != StatusSuccess {
		return nil, st
	}
	if count == 0 {
		return nil, StatusSuccess
	}
	buf := make([]T, count)
	if st := fetch(&count, &buf[0]); st != StatusSuccess {
		return nil, st
	}
	if int(count) < len(buf) {
		buf = buf[:count]
	}
	return buf, StatusSuccess
}
