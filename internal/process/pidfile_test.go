package process

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "runtime.pid")
	in := Record{PID: 4242, StartUnix: 1700000000, Path: "/opt/app/binaries/neural-os-node", Args: []string{"server.bundle.cjs"}}
	if err := WritePIDFile(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.PID != in.PID || got.StartUnix != in.StartUnix || got.Path != in.Path || len(got.Args) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestReadPIDFile_PIDOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.pid")
	if err := os.WriteFile(path, []byte("12345\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec, err := ReadPIDFile(path)
	if err != nil || rec.PID != 12345 || rec.Path != "" {
		t.Fatalf("rec=%+v err=%v", rec, err)
	}
}

func TestReadPIDFile_BadContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPIDFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestReadPIDFile_IgnoresCorruptMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.pid")
	if err := os.WriteFile(path, []byte("77\n{not json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec, err := ReadPIDFile(path)
	if err != nil || rec.PID != 77 {
		t.Fatalf("rec=%+v err=%v", rec, err)
	}
}

func TestRemovePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pid")
	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if err := os.WriteFile(path, []byte("1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemovePIDFile(""); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}
