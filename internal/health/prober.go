package health

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Defaults match the local API server contract.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8787
	DefaultPath           = "/api/health"
	DefaultConnectTimeout = 450 * time.Millisecond
	DefaultReadTimeout    = 450 * time.Millisecond
)

// Prober performs one HTTP health check over a raw TCP connection.
// It has no retry logic of its own.
type Prober struct {
	Host           string
	Port           int
	Path           string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// NewProber returns a prober for the default loopback endpoint.
func NewProber() *Prober {
	return &Prober{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Path:           DefaultPath,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
	}
}

// Addr returns host:port.
func (p *Prober) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ProbeOnce connects, sends GET <path> with Connection: close, reads the whole
// response and succeeds iff the status line is HTTP/1.0 or HTTP/1.1 with code 200.
func (p *Prober) ProbeOnce() error {
	addr := p.Addr()
	conn, err := net.DialTimeout("tcp", addr, valOr(p.ConnectTimeout, DefaultConnectTimeout))
	if err != nil {
		return &ProbeError{Op: "connect", Err: err}
	}
	defer func() { _ = conn.Close() }()

	rw := valOr(p.ReadTimeout, DefaultReadTimeout)
	_ = conn.SetDeadline(time.Now().Add(rw))

	path := p.Path
	if path == "" {
		path = DefaultPath
	}
	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", path, addr)
	if _, err := io.WriteString(conn, req); err != nil {
		return &ProbeError{Op: "request", Err: err}
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return &ProbeError{Op: "read", Err: err}
	}

	line := firstLine(body)
	if isOKStatusLine(line) {
		return nil
	}
	return &ProbeError{Op: "status", StatusLine: line}
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	if sc.Scan() {
		return strings.TrimRight(sc.Text(), "\r")
	}
	return ""
}

func isOKStatusLine(line string) bool {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return false
	}
	if parts[0] != "HTTP/1.1" && parts[0] != "HTTP/1.0" {
		return false
	}
	return parts[1] == "200"
}

func valOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
