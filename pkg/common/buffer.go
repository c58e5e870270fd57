package common

import "bytes"

// Buffer wraps a mutable byte slice with cursor-relative and absolute
// access to fixed-width little-endian integers, null-terminated strings
// and raw sub-slices. The whole archive is held in memory; there is no
// streaming mode.
type Buffer struct {
	data   []byte
	cursor int
}

// NewBuffer wraps an existing byte slice. The cursor starts at zero.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Len returns the current length of the underlying storage.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the underlying storage.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Cursor returns the current cursor position.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// Seek sets the cursor to an absolute position, clamped to the buffer range.
func (b *Buffer) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(b.data) {
		pos = len(b.data)
	}
	b.cursor = pos
}

// check validates that size bytes starting at pos are inside the buffer.
func (b *Buffer) check(pos, size int) error {
	if pos < 0 || size < 0 || pos+size > len(b.data) {
		return &FormatError{Offset: pos, Msg: "read past end of buffer"}
	}
	return nil
}

// UintAt reads an unsigned little-endian integer of 1 to 4 bytes at an
// absolute position without moving the cursor.
func (b *Buffer) UintAt(pos, size int) (uint32, error) {
	if err := b.check(pos, size); err != nil {
		return 0, err
	}
	var v uint32
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint32(b.data[pos+i])
	}
	return v, nil
}

// Uint8At reads an unsigned 8-bit integer at an absolute position.
func (b *Buffer) Uint8At(pos int) (uint8, error) {
	v, err := b.UintAt(pos, 1)
	return uint8(v), err
}

// Uint16At reads an unsigned little-endian 16-bit integer at an absolute position.
func (b *Buffer) Uint16At(pos int) (uint16, error) {
	v, err := b.UintAt(pos, 2)
	return uint16(v), err
}

// Uint24At reads an unsigned little-endian 24-bit integer at an absolute position.
func (b *Buffer) Uint24At(pos int) (uint32, error) {
	return b.UintAt(pos, 3)
}

// Uint32At reads an unsigned little-endian 32-bit integer at an absolute position.
func (b *Buffer) Uint32At(pos int) (uint32, error) {
	return b.UintAt(pos, 4)
}

// ReadUint reads an unsigned little-endian integer of 1 to 4 bytes at the
// cursor and advances it.
func (b *Buffer) ReadUint(size int) (uint32, error) {
	v, err := b.UintAt(b.cursor, size)
	if err != nil {
		return 0, err
	}
	b.cursor += size
	return v, nil
}

// ReadUint8 reads an unsigned 8-bit integer at the cursor and advances it.
func (b *Buffer) ReadUint8() (uint8, error) {
	v, err := b.ReadUint(1)
	return uint8(v), err
}

// ReadUint16 reads an unsigned 16-bit integer at the cursor and advances it.
func (b *Buffer) ReadUint16() (uint16, error) {
	v, err := b.ReadUint(2)
	return uint16(v), err
}

// ReadUint24 reads an unsigned 24-bit integer at the cursor and advances it.
func (b *Buffer) ReadUint24() (uint32, error) {
	return b.ReadUint(3)
}

// ReadUint32 reads an unsigned 32-bit integer at the cursor and advances it.
func (b *Buffer) ReadUint32() (uint32, error) {
	return b.ReadUint(4)
}

// ReadBytes reads size raw bytes at the cursor and advances it.
func (b *Buffer) ReadBytes(size int) ([]byte, error) {
	if err := b.check(b.cursor, size); err != nil {
		return nil, err
	}
	out := b.data[b.cursor : b.cursor+size]
	b.cursor += size
	return out, nil
}

// SliceAt returns a bounds-checked sub-slice of the buffer.
func (b *Buffer) SliceAt(pos, size int) ([]byte, error) {
	if err := b.check(pos, size); err != nil {
		return nil, err
	}
	return b.data[pos : pos+size], nil
}

// CStringAt reads a null-terminated ASCII string at base+offset without
// disturbing the cursor. A base or offset of zero is the "no symbol"
// sentinel and yields an empty string.
func (b *Buffer) CStringAt(base, offset int) string {
	if base == 0 || offset == 0 {
		return ""
	}
	pos := base + offset
	if pos < 0 || pos >= len(b.data) {
		return ""
	}
	end := bytes.IndexByte(b.data[pos:], 0)
	if end < 0 {
		end = len(b.data) - pos
	}
	return string(b.data[pos : pos+end])
}

// AppendUint appends an unsigned little-endian integer of 1 to 4 bytes and
// moves the cursor to the new end of the buffer.
func (b *Buffer) AppendUint(v uint32, size int) {
	for i := 0; i < size; i++ {
		b.data = append(b.data, byte(v))
		v >>= 8
	}
	b.cursor = len(b.data)
}

// AppendUint8 appends an unsigned 8-bit integer.
func (b *Buffer) AppendUint8(v uint8) {
	b.AppendUint(uint32(v), 1)
}

// AppendUint16 appends an unsigned 16-bit integer.
func (b *Buffer) AppendUint16(v uint16) {
	b.AppendUint(uint32(v), 2)
}

// AppendUint24 appends an unsigned 24-bit integer.
func (b *Buffer) AppendUint24(v uint32) {
	b.AppendUint(v, 3)
}

// AppendUint32 appends an unsigned 32-bit integer.
func (b *Buffer) AppendUint32(v uint32) {
	b.AppendUint(v, 4)
}

// AppendBytes appends raw bytes and moves the cursor to the new end.
func (b *Buffer) AppendBytes(p []byte) {
	b.data = append(b.data, p...)
	b.cursor = len(b.data)
}

// PutUintAt overwrites an unsigned little-endian integer at an absolute
// position. The target space must already exist; explicit-offset writes
// never extend the buffer.
func (b *Buffer) PutUintAt(pos int, v uint32, size int) error {
	if err := b.check(pos, size); err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		b.data[pos+i] = byte(v)
		v >>= 8
	}
	return nil
}

// PutUint16At overwrites an unsigned 16-bit integer at an absolute position.
func (b *Buffer) PutUint16At(pos int, v uint16) error {
	return b.PutUintAt(pos, uint32(v), 2)
}

// PutUint24At overwrites an unsigned 24-bit integer at an absolute position.
func (b *Buffer) PutUint24At(pos int, v uint32) error {
	return b.PutUintAt(pos, v, 3)
}

// PutUint32At overwrites an unsigned 32-bit integer at an absolute position.
func (b *Buffer) PutUint32At(pos int, v uint32) error {
	return b.PutUintAt(pos, v, 4)
}

// Align rounds the cursor up to a power-of-two boundary. If pad is true
// the storage is zero-filled up to the new cursor.
func (b *Buffer) Align(alignment int, pad bool) {
	mask := alignment - 1
	next := (b.cursor + mask) &^ mask
	if next > b.cursor {
		if pad {
			for len(b.data) < next {
				b.data = append(b.data, 0)
			}
		}
		b.cursor = next
	}
}
