package process

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is what the pid file remembers about the runtime child so a later
// run can tell whether the pid still belongs to it.
type Record struct {
	PID       int      `json:"pid"`
	StartUnix int64    `json:"start_unix,omitempty"`
	Path      string   `json:"path,omitempty"`
	Args      []string `json:"args,omitempty"`
}

// WritePIDFile stores the pid on the first line followed by rec as JSON.
func WritePIDFile(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	meta, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data := strconv.Itoa(rec.PID) + "\n" + string(meta) + "\n"
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadPIDFile parses a file written by WritePIDFile. A file holding only a pid
// yields a Record with just PID set.
func ReadPIDFile(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	first, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return Record{}, err
	}
	rec := Record{PID: pid}
	if rest = strings.TrimSpace(rest); rest != "" {
		var meta Record
		if json.Unmarshal([]byte(rest), &meta) == nil {
			rec = meta
			rec.PID = pid
		}
	}
	return rec, nil
}

// RemovePIDFile deletes path; a missing file is not an error.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
