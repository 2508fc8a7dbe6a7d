// Package console supplies the simulator's two input channels: command
// lines for the debugger and keystrokes for the LC-3 keyboard.
package console

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync"
)

// Source is read by both the command loop and the LC-3 keyboard.
type Source interface {
	// Ready reports whether a byte can be read without blocking.
	Ready() bool
	ReadByte() (byte, error)
	// ReadLine returns the next line without its line terminator.
	ReadLine() (string, error)
	// Flush discards whatever input is already buffered.
	Flush()
}

// Pump reads an io.Reader in a background goroutine so that Ready never
// blocks. It serves stdin and the GUI key queue.
type Pump struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	err  error
}

func NewPump(r io.Reader) *Pump {
	p := &Pump{}
	p.cond = sync.NewCond(&p.mu)
	go p.run(r)
	return p
}

func (p *Pump) run(r io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		p.mu.Lock()
		p.buf = append(p.buf, chunk[:n]...)
		if err != nil {
			p.err = err
		}
		p.cond.Broadcast()
		p.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// Ready is also true once the reader has ended, so that the next read
// reports the end of input instead of leaving the LC-3 polling.
func (p *Pump) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) > 0 || p.err != nil
}

// Done reports whether the reader has ended and every byte was consumed.
func (p *Pump) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) == 0 && p.err != nil
}

func (p *Pump) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 && p.err == nil {
		p.cond.Wait()
	}
	if len(p.buf) == 0 {
		return 0, p.err
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	return b, nil
}

func (p *Pump) ReadLine() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if i := bytes.IndexByte(p.buf, '\n'); i >= 0 {
			line := string(p.buf[:i])
			p.buf = p.buf[i+1:]
			return trimLine(line), nil
		}
		if p.err != nil {
			if len(p.buf) == 0 {
				return "", p.err
			}
			line := string(p.buf)
			p.buf = nil
			return trimLine(line), nil
		}
		p.cond.Wait()
	}
}

func (p *Pump) Flush() {
	p.mu.Lock()
	p.buf = nil
	p.mu.Unlock()
}

// Script is a Source over a script file. It is always ready: reading past
// its end reports io.EOF instead of waiting.
type Script struct {
	r *bufio.Reader
}

func NewScript(r io.Reader) *Script {
	return &Script{r: bufio.NewReader(r)}
}

func (s *Script) Ready() bool {
	return true
}

func (s *Script) ReadByte() (byte, error) {
	return s.r.ReadByte()
}

func (s *Script) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return trimLine(line), nil
}

// Flush is a no-op: discarding would swallow the rest of the script.
func (s *Script) Flush() {}

func trimLine(s string) string {
	return strings.TrimRight(s, "\r\n")
}
