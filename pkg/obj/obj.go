// Package obj reads and writes LC-3 object files: big-endian 16-bit words,
// the first of which is the load address.
package obj

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoOrigin is returned for object data too short to hold a load address.
var ErrNoOrigin = errors.New("object file has no origin")

// Image is a contiguous block of words loaded at Origin.
type Image struct {
	Origin uint16
	Words  []uint16
}

// End returns the address following the last word, wrapping at x10000.
func (img Image) End() uint16 {
	return uint16((int(img.Origin) + len(img.Words)) & 0xFFFF)
}

// Decode parses raw object bytes. A trailing odd byte is ignored.
func Decode(data []byte) (Image, error) {
	if len(data) < 2 {
		return Image{}, ErrNoOrigin
	}
	img := Image{Origin: binary.BigEndian.Uint16(data)}
	data = data[2:]
	img.Words = make([]uint16, len(data)/2)
	for i := range img.Words {
		img.Words[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return img, nil
}

// Encode returns the object file bytes for img.
func Encode(img Image) []byte {
	out := make([]byte, 2+len(img.Words)*2)
	binary.BigEndian.PutUint16(out, img.Origin)
	for i, w := range img.Words {
		binary.BigEndian.PutUint16(out[2+i*2:], w)
	}
	return out
}

func Read(r io.Reader) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, eris.Wrap(err, "failed to read object data")
	}
	return Decode(data)
}

func Write(w io.Writer, img Image) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(Encode(img)); err != nil {
		return eris.Wrap(err, "failed to write object data")
	}
	return eris.Wrap(bw.Flush(), "failed to write object data")
}

func ReadFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, eris.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	img, err := Read(f)
	if err != nil {
		return Image{}, eris.Wrapf(err, "failed to load %s", path)
	}
	return img, nil
}

func WriteFile(path string, img Image) error {
	if err := os.WriteFile(path, Encode(img), 0644); err != nil {
		return eris.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// SwapExt replaces the extension of path (if any) with ext.
func SwapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
