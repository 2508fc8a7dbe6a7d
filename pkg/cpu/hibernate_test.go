package cpu

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"testing"
)

func TestCPU_HibernateCoreState(t *testing.T) {
	c1 := NewCPU()
	c1.Regs[0] = 0x1234
	c1.Regs[1] = 0xABCD
	c1.Regs[7] = 0x3007
	c1.PC = 0x3042
	c1.IR = 0x1261
	c1.PSR = 0x8001
	c1.SysBreakpoint = 0x3043
	c1.FinishDepth = 3
	c1.RandomDevice = false

	data, err := c1.HibernateToBytes(nil)
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}

	c2 := NewCPU()
	if _, err := c2.RestoreFromBytes(data); err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}

	if c2.Regs != c1.Regs {
		t.Errorf("Regs mismatch: got %v, want %v", c2.Regs, c1.Regs)
	}
	if c2.PC != c1.PC {
		t.Errorf("PC: got 0x%04X, want 0x%04X", c2.PC, c1.PC)
	}
	if c2.IR != c1.IR {
		t.Errorf("IR: got 0x%04X, want 0x%04X", c2.IR, c1.IR)
	}
	if c2.PSR != c1.PSR {
		t.Errorf("PSR: got 0x%04X, want 0x%04X", c2.PSR, c1.PSR)
	}
	if c2.SysBreakpoint != c1.SysBreakpoint {
		t.Errorf("SysBreakpoint: got %d, want %d", c2.SysBreakpoint, c1.SysBreakpoint)
	}
	if c2.FinishDepth != 3 {
		t.Errorf("FinishDepth: got %d, want 3", c2.FinishDepth)
	}
	if c2.RandomDevice {
		t.Errorf("RandomDevice: got true, want false")
	}
}

func TestCPU_HibernateMemory(t *testing.T) {
	c1 := NewCPU()
	c1.Memory[0x0000] = 0xAAAA
	c1.Memory[0x3000] = 0x1261
	c1.Memory[0xFDFF] = 0x5555
	c1.Breakpoints[0x3000] = true
	c1.Breakpoints[0x3010] = true

	data, err := c1.HibernateToBytes(nil)
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}

	c2 := NewCPU()
	c2.Memory[0x4000] = 0xFFFF
	c2.Breakpoints[0x5000] = true
	if _, err := c2.RestoreFromBytes(data); err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}
	if c2.Memory != c1.Memory {
		t.Errorf("memory differs after restore")
	}
	bps := c2.BreakpointList()
	if len(bps) != 2 || bps[0] != 0x3000 || bps[1] != 0x3010 {
		t.Errorf("breakpoints: got %v", bps)
	}
}

func TestCPU_HibernateExtras(t *testing.T) {
	c1 := NewCPU()
	extras := map[string][]byte{"symbols.sym": []byte("//\tSTART  3000\n")}
	data, err := c1.HibernateToBytes(extras)
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}
	got, err := NewCPU().RestoreFromBytes(data)
	if err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}
	if string(got["symbols.sym"]) != string(extras["symbols.sym"]) {
		t.Errorf("extras: got %q", got["symbols.sym"])
	}

	if _, err := c1.HibernateToBytes(map[string][]byte{entryMemory: nil}); err == nil {
		t.Errorf("expected error for reserved entry name")
	}
}

func TestCPU_RestoreGarbage(t *testing.T) {
	if _, err := NewCPU().RestoreFromBytes([]byte("not a zip")); err == nil {
		t.Errorf("expected error for non-zip data")
	}
}

func TestCPU_RestoreTruncatedMemory(t *testing.T) {
	c1 := NewCPU()
	c1.Memory[0xFFFF] = 0xBEEF
	data, err := c1.HibernateToBytes(nil)
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if f.Name == entryMemory {
			body = body[:len(body)-2]
		}
		fw, err := w.Create(f.Name)
		if err != nil {
			t.Fatalf("create %s: %v", f.Name, err)
		}
		fw.Write(body)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	c2 := NewCPU()
	c2.Regs[3] = 7
	if _, err := c2.RestoreFromBytes(buf.Bytes()); err == nil {
		t.Fatalf("expected error for truncated memory image")
	}
	if c2.Regs[3] != 7 {
		t.Errorf("failed restore changed registers")
	}
}

func TestCPU_HibernateAndResume(t *testing.T) {
	c1, _ := newTestCPU()
	loadProgram(c1, 0x3000,
		0x1261, // ADD R1,R1,#1
		0x147B, // ADD R2,R1,#-5
		0x09FD, // BRn #-3
	)
	haltAt(c1, 0x3003)
	for i := 0; i < 4; i++ {
		c1.Step()
	}

	path := filepath.Join(t.TempDir(), "state.lc3snap")
	if err := c1.HibernateToFile(path, nil); err != nil {
		t.Fatalf("HibernateToFile: %v", err)
	}

	c2, _ := newTestCPU()
	if _, err := c2.RestoreFromFile(path); err != nil {
		t.Fatalf("RestoreFromFile: %v", err)
	}
	c2.RandomDevice = false
	if s := c2.Run(); s != StopHalted {
		t.Fatalf("resumed run: expected halted, got %v", s)
	}
	if c2.Regs[1] != 5 {
		t.Errorf("resumed run: expected R1=5, got %d", c2.Regs[1])
	}
}
