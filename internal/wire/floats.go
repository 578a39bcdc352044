package wire

import (
	"unsafe"
)

// floatsView reinterprets a byte slice as a []float32, the same
// reinterpret-in-place technique the teacher uses on mmap'd buffers in
// internal/uapi/marshal.go. buf must have length a multiple of 4; decode
// is the only caller and only ever passes such slices.
//
// The wire format's length-prefix headers (1-byte tag plus one or two
// 8-byte counts) put the float region 9 or 17 bytes into Reader.body.
// Reader.Recv starts body 3 bytes into an allocator-aligned allocation, so
// both offsets fall on a 4-byte boundary and buf is reinterpreted in place.
// Reinterpreting an unaligned []byte as []float32 is undefined behavior
// on strict-alignment architectures, so alignFloatBytes still checks the
// pointer and copies onto a freshly allocated (and therefore aligned)
// buffer whenever buf is not on a 4-byte boundary.
func floatsView(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	buf = alignFloatBytes(buf)
	return unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), len(buf)/4)
}

// alignFloatBytes returns buf unchanged if it is already 4-byte aligned,
// otherwise copies it into a fresh, allocator-aligned buffer.
func alignFloatBytes(buf []byte) []byte {
	if uintptr(unsafe.Pointer(&buf[0]))%4 == 0 {
		return buf
	}
	aligned := make([]byte, len(buf))
	copy(aligned, buf)
	return aligned
}

// bytesView reinterprets a []float32 as a read-only byte slice without
// copying, for the send path's "borrowed payload" discipline (SPEC_FULL.md
// §9): the sender never copies the caller's float slice into the
// serialization buffer, only the length prefix and tag go into scratch.
func bytesView(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}
