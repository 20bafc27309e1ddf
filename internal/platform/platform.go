// Package platform maps the host OS and CPU architecture to the bundled
// runtime artifact built for it. Hosts missing from the table are unsupported.
package platform

import (
	"fmt"
	"runtime"
	"sort"
)

// Platform is an (OS, architecture) pair using Go's GOOS/GOARCH names.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string { return p.OS + "/" + p.Arch }

// Current returns the platform this binary runs on.
func Current() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Table maps a supported platform to the target triple suffix of its bundled binary.
type Table map[Platform]string

// DefaultTable is the allow-list of platforms that ship a bundled runtime.
func DefaultTable() Table {
	return Table{
		{OS: "darwin", Arch: "arm64"}: "aarch64-apple-darwin",
		{OS: "darwin", Arch: "amd64"}: "x86_64-apple-darwin",
	}
}

// UnsupportedError means no bundled artifact exists for the platform.
// It is not retryable: the same host will always resolve the same way.
type UnsupportedError struct {
	Platform Platform
	// KnownOS is true when the OS is supported but the architecture is not.
	KnownOS bool
}

func (e *UnsupportedError) Error() string {
	if e.KnownOS {
		return fmt.Sprintf("unsupported sidecar architecture: %s", e.Platform.Arch)
	}
	return fmt.Sprintf("unsupported sidecar platform: %s", e.Platform.OS)
}

// Triple returns the target triple for p or an *UnsupportedError.
func (t Table) Triple(p Platform) (string, error) {
	if triple, ok := t[p]; ok {
		return triple, nil
	}
	knownOS := false
	for k := range t {
		if k.OS == p.OS {
			knownOS = true
			break
		}
	}
	return "", &UnsupportedError{Platform: p, KnownOS: knownOS}
}

// BinaryName returns "<prefix>-<triple>" for p.
func (t Table) BinaryName(prefix string, p Platform) (string, error) {
	triple, err := t.Triple(p)
	if err != nil {
		return "", err
	}
	name := prefix + "-" + triple
	if p.OS == "windows" {
		name += ".exe"
	}
	return name, nil
}

// Platforms lists the supported platforms in stable order.
func (t Table) Platforms() []Platform {
	out := make([]Platform, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
