// Package grid lays text out on a fixed grid of character cells. Screen is
// the scrolling console the GUI draws the LC-3 display into.
package grid

import "sync"

// GetGridCoords converts a cell index into column and row for a grid cols
// cells wide.
func GetGridCoords(index, cols int) (int, int) {
	return index % cols, index / cols
}

const tabWidth = 8

// Screen is a cols x rows text buffer written like a terminal: '\n' moves
// to the next line, '\r' to its start, '\b' back one cell, and output past
// the last row scrolls the buffer up. It is safe for concurrent use.
type Screen struct {
	mu     sync.Mutex
	cols   int
	rows   int
	cells  []byte
	cursor int
}

func NewScreen(cols, rows int) *Screen {
	s := &Screen{cols: cols, rows: rows, cells: make([]byte, cols*rows)}
	s.clear()
	return s
}

func (s *Screen) Size() (cols, rows int) {
	return s.cols, s.rows
}

func (s *Screen) clear() {
	for i := range s.cells {
		s.cells[i] = ' '
	}
	s.cursor = 0
}

// Clear blanks the screen and homes the cursor.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// Write implements io.Writer. Bytes outside printable ASCII other than the
// control characters above are ignored.
func (s *Screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range p {
		s.put(b)
	}
	return len(p), nil
}

func (s *Screen) put(b byte) {
	x, _ := GetGridCoords(s.cursor, s.cols)
	switch {
	case b == '\n':
		s.cursor += s.cols - x
	case b == '\r':
		s.cursor -= x
		return
	case b == '\b':
		if x > 0 {
			s.cursor--
		}
		return
	case b == '\t':
		n := tabWidth - x%tabWidth
		if x+n > s.cols {
			n = s.cols - x
		}
		s.cursor += n
	case b >= 0x20 && b < 0x7F:
		s.cells[s.cursor] = b
		s.cursor++
	default:
		return
	}
	if s.cursor >= len(s.cells) {
		s.scroll()
	}
}

func (s *Screen) scroll() {
	copy(s.cells, s.cells[s.cols:])
	last := s.cells[len(s.cells)-s.cols:]
	for i := range last {
		last[i] = ' '
	}
	s.cursor -= s.cols
}

// Cells returns a copy of the buffer, row after row.
func (s *Screen) Cells() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.cells))
	copy(out, s.cells)
	return out
}

// Line returns row y with trailing blanks removed.
func (s *Screen) Line(y int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.cells[y*s.cols : (y+1)*s.cols]
	end := len(row)
	for end > 0 && row[end-1] == ' ' {
		end--
	}
	return string(row[:end])
}

// Cursor returns the cursor's column and row.
func (s *Screen) Cursor() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GetGridCoords(s.cursor, s.cols)
}
