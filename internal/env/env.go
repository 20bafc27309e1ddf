// Package env composes the environment handed to the managed runtime process.
package env

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

type Var map[string]string

// Env layers variables with increasing precedence:
// OS environment, configured extras, then the port aliases.
type Env struct {
	base     Var
	extra    Var
	port     int
	portVars []string
}

func New() *Env {
	return &Env{base: make(Var), extra: make(Var)}
}

// FromOS snapshots the current process environment as the base layer.
func (e *Env) FromOS() *Env {
	e.base = parse(os.Environ())
	return e
}

// With adds "KEY=VALUE" entries. Malformed entries and empty keys are skipped.
func (e *Env) With(kvs ...string) *Env {
	for k, v := range parse(kvs) {
		e.extra[k] = v
	}
	return e
}

// WithPort sets every alias name to the same port value.
func (e *Env) WithPort(port int, names ...string) *Env {
	e.port = port
	e.portVars = append(e.portVars[:0], names...)
	return e
}

// Build returns the composed environment in "KEY=VALUE" form, sorted by key.
// ${VAR} references in extras are expanded against the composed map.
func (e *Env) Build() []string {
	m := make(Var, len(e.base)+len(e.extra)+len(e.portVars))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.extra {
		m[k] = v
	}
	if e.port > 0 {
		p := strconv.Itoa(e.port)
		for _, name := range e.portVars {
			if name = strings.TrimSpace(name); name != "" {
				m[name] = p
			}
		}
	}
	// expand from the unexpanded layers so the result does not depend on map order
	expanded := make(Var, len(m))
	for k, v := range m {
		if _, ok := e.extra[k]; ok {
			v = expand(v, m)
		}
		expanded[k] = v
	}

	keys := make([]string, 0, len(expanded))
	for k := range expanded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expanded[k])
	}
	return out
}

func parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		m[kv[:i]] = kv[i+1:]
	}
	return m
}

// expand replaces each ${NAME} with its value in m in a single pass.
// Unknown names and any other '$' text are kept verbatim.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
