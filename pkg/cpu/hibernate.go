package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

const (
	entryState       = "machine_state.json"
	entryMemory      = "memory.bin"
	entryBreakpoints = "breakpoints.json"
)

// machineState is the JSON-serializable snapshot of the control state.
type machineState struct {
	Regs          [8]uint16 `json:"regs"`
	PC            uint16    `json:"pc"`
	IR            uint16    `json:"ir"`
	PSR           uint16    `json:"psr"`
	SysBreakpoint int       `json:"sys_breakpoint"`
	FinishDepth   int       `json:"finish_depth"`
	KBSRReady     bool      `json:"kbsr_ready"`
	DSRReady      bool      `json:"dsr_ready"`
	RandomDevice  bool      `json:"random_device"`
}

// HibernateToBytes serialises the machine into an in-memory ZIP archive.
// extras are stored as additional entries (the simulator keeps its symbol
// table there); they must not reuse the machine's own entry names.
func (c *CPU) HibernateToBytes(extras map[string][]byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	// ── 1. machine_state.json ─────────────────────────────────────────────
	state := machineState{
		Regs:          c.Regs,
		PC:            c.PC,
		IR:            c.IR,
		PSR:           c.PSR,
		SysBreakpoint: c.SysBreakpoint,
		FinishDepth:   c.FinishDepth,
		KBSRReady:     c.kbsrReady,
		DSRReady:      c.dsrReady,
		RandomDevice:  c.RandomDevice,
	}
	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal machine state: %w", err)
	}
	if err := writeZipEntry(zw, entryState, jsonData); err != nil {
		return nil, err
	}

	// ── 2. memory.bin (big-endian, like object files) ─────────────────────
	if err := writeZipEntry(zw, entryMemory, uint16SliceToBE(c.Memory[:])); err != nil {
		return nil, err
	}

	// ── 3. breakpoints.json ───────────────────────────────────────────────
	bpJSON, err := json.Marshal(c.BreakpointList())
	if err != nil {
		return nil, fmt.Errorf("marshal breakpoints: %w", err)
	}
	if err := writeZipEntry(zw, entryBreakpoints, bpJSON); err != nil {
		return nil, err
	}

	// ── 4. extras ─────────────────────────────────────────────────────────
	names := make([]string, 0, len(extras))
	for name := range extras {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch name {
		case entryState, entryMemory, entryBreakpoints:
			return nil, fmt.Errorf("snapshot entry %q is reserved", name)
		}
		if err := writeZipEntry(zw, name, extras[name]); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes applies an archive produced by HibernateToBytes and
// returns the extra entries it carried.
func (c *CPU) RestoreFromBytes(data []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	// ── 1. machine_state.json ─────────────────────────────────────────────
	jsonData, err := readZipEntry(fileMap, entryState)
	if err != nil {
		return nil, err
	}
	var state machineState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, fmt.Errorf("unmarshal machine state: %w", err)
	}

	// ── 2. memory.bin ─────────────────────────────────────────────────────
	memData, err := readZipEntry(fileMap, entryMemory)
	if err != nil {
		return nil, err
	}
	if len(memData) != len(c.Memory)*2 {
		return nil, fmt.Errorf("%s is %d bytes, want %d", entryMemory, len(memData), len(c.Memory)*2)
	}

	// ── 3. breakpoints.json ───────────────────────────────────────────────
	var bps []uint16
	if bpJSON, err := readZipEntry(fileMap, entryBreakpoints); err == nil {
		if err := json.Unmarshal(bpJSON, &bps); err != nil {
			return nil, fmt.Errorf("unmarshal breakpoints: %w", err)
		}
	}

	c.Regs = state.Regs
	c.PC = state.PC
	c.IR = state.IR
	c.PSR = state.PSR
	c.SysBreakpoint = state.SysBreakpoint
	c.FinishDepth = state.FinishDepth
	c.RandomDevice = state.RandomDevice
	c.ResetDevices()
	c.kbsrReady = state.KBSRReady
	c.dsrReady = state.DSRReady

	c.Memory = [65536]uint16{}
	beToUint16Slice(memData, c.Memory[:])

	c.ClearBreakpoints()
	for _, addr := range bps {
		c.Breakpoints[addr] = true
	}

	// ── 4. extras ─────────────────────────────────────────────────────────
	extras := make(map[string][]byte)
	for name := range fileMap {
		switch name {
		case entryState, entryMemory, entryBreakpoints:
			continue
		}
		d, err := readZipEntry(fileMap, name)
		if err != nil {
			return nil, err
		}
		extras[name] = d
	}
	return extras, nil
}

// HibernateToFile writes the hibernation archive to the given file path.
func (c *CPU) HibernateToFile(path string, extras map[string][]byte) error {
	data, err := c.HibernateToBytes(extras)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from path and restores it.
func (c *CPU) RestoreFromFile(path string) (map[string][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.RestoreFromBytes(data)
}

// ── helpers ────────────────────────────────────────────────────────────────

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func uint16SliceToBE(src []uint16) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		binary.BigEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func beToUint16Slice(src []byte, dst []uint16) {
	for i := range dst {
		dst[i] = binary.BigEndian.Uint16(src[i*2:])
	}
}
