package cpu

import "io"

// Keyboard feeds KBSR/KBDR. Ready must not block; ReadByte returns io.EOF
// (or any error) once input has ended.
type Keyboard interface {
	Ready() bool
	ReadByte() (byte, error)
}

// BytesKeyboard is a Keyboard over a fixed byte string, handy for tests and
// batch runs. It is always ready until the bytes run out.
type BytesKeyboard struct {
	data []byte
	pos  int
}

func NewBytesKeyboard(data []byte) *BytesKeyboard {
	return &BytesKeyboard{data: data}
}

func (k *BytesKeyboard) Ready() bool {
	return true
}

func (k *BytesKeyboard) ReadByte() (byte, error) {
	if k.pos >= len(k.data) {
		return 0, io.EOF
	}
	b := k.data[k.pos]
	k.pos++
	return b, nil
}

// Remaining returns the bytes not consumed yet.
func (k *BytesKeyboard) Remaining() int {
	return len(k.data) - k.pos
}
