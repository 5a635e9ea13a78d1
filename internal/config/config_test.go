package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
[gc]
initial-threshold = 4096
stress = true

[vm]
instruction-limit = 1000
trace = true

[log]
verbosity = 2
file = "lox.log"
`
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.GC.InitialThreshold != 4096 {
		t.Errorf("initial threshold = %d, want 4096", c.GC.InitialThreshold)
	}
	if c.GC.GrowFactor != 2 {
		t.Errorf("grow factor = %d, want default 2", c.GC.GrowFactor)
	}
	if !c.GC.Stress || !c.VM.Trace {
		t.Errorf("expected stress and trace enabled")
	}
	if c.VM.InstructionLimit != 1000 {
		t.Errorf("instruction limit = %d, want 1000", c.VM.InstructionLimit)
	}
	if c.Log.Verbosity != 2 || c.Log.File != "lox.log" {
		t.Errorf("log = %+v", c.Log)
	}
	if c.Path == "" {
		t.Errorf("expected Path to be set")
	}

	hc := c.HeapConfig()
	if hc.InitialThreshold != 4096 || hc.GrowFactor != 2 || !hc.Stress {
		t.Errorf("heap config = %+v", hc)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	if err := os.WriteFile(path, []byte("[gc]\ngrow-factor = -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected negative grow factor to be rejected")
	}

	if err := os.WriteFile(path, []byte("[gc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected parse error")
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("expected read error")
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[vm]\ninstruction-limit = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Find(nested)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if c.VM.InstructionLimit != 7 {
		t.Errorf("instruction limit = %d, want 7", c.VM.InstructionLimit)
	}
}

func TestFindWithoutFileReturnsDefaults(t *testing.T) {
	c, err := Find(t.TempDir())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if c.GC.InitialThreshold != 1024*1024 || c.Path != "" {
		t.Errorf("expected defaults, got %+v", c)
	}
}
