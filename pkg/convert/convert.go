// Package convert turns hand-written binary or hex listings into LC-3
// object images. Each non-blank line holds one word; the first word is the
// load origin. Anything after ';' is a comment.
package convert

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"lc3tools/pkg/asm"
	"lc3tools/pkg/obj"
)

type Format int

const (
	Binary Format = iota
	Hex
)

func (f Format) String() string {
	if f == Hex {
		return "hex"
	}
	return "binary"
}

func (f Format) digits() int {
	if f == Hex {
		return 4
	}
	return 16
}

func (f Format) base() int {
	if f == Hex {
		return 16
	}
	return 2
}

// FormatFor picks the format from the file extension: .bin or .hex.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin":
		return Binary, nil
	case ".hex":
		return Hex, nil
	}
	return 0, eris.Errorf("%s: input must end in .bin or .hex", path)
}

// Convert reads a listing. Errors are an asm.ErrorList naming every bad
// line.
func Convert(r io.Reader, f Format) (obj.Image, error) {
	var (
		words []uint16
		errs  asm.ErrorList
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := sc.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		w, err := parseWord(text, f)
		if err != "" {
			errs = append(errs, &asm.Error{Line: lineNo, Msg: err})
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return obj.Image{}, eris.Wrap(err, "failed to read listing")
	}
	if len(errs) > 0 {
		return obj.Image{}, errs
	}
	if len(words) == 0 {
		return obj.Image{}, obj.ErrNoOrigin
	}
	return obj.Image{Origin: words[0], Words: words[1:]}, nil
}

func parseWord(text string, f Format) (uint16, string) {
	if len(text) != f.digits() {
		return 0, fmt.Sprintf("expected %d %s digits, found '%s'", f.digits(), f, text)
	}
	v, err := strconv.ParseUint(text, f.base(), 16)
	if err != nil {
		return 0, fmt.Sprintf("invalid %s digits '%s'", f, text)
	}
	return uint16(v), ""
}

// ConvertFile converts path and writes the object file next to it. It
// returns the path written.
func ConvertFile(path string) (string, error) {
	f, err := FormatFor(path)
	if err != nil {
		return "", err
	}
	in, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "failed to open %s", path)
	}
	defer in.Close()

	img, err := Convert(in, f)
	if err != nil {
		return "", err
	}
	out := obj.SwapExt(path, ".obj")
	if err := obj.WriteFile(out, img); err != nil {
		return "", err
	}
	return out, nil
}
