package process

import (
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Spec describes the runtime process to launch.
type Spec struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Args    []string `json:"args,omitempty"`
	WorkDir string   `json:"work_dir,omitempty"`
	Env     []string `json:"-"`

	// Stdout and Stderr receive the child's output. Nil discards it.
	// The process closes them once the child has been reaped.
	Stdout io.WriteCloser `json:"-"`
	Stderr io.WriteCloser `json:"-"`
}

// String renders the command line for log and error messages.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Path
	}
	return s.Path + " " + strings.Join(s.Args, " ")
}

// waitDelay bounds how long Wait keeps copying output after the child exits
// when a grandchild still holds the pipe.
const waitDelay = time.Second

// command builds the *exec.Cmd for s. Returned closers must be closed once the
// child has been reaped, or immediately if Start fails.
func (s Spec) command() (*exec.Cmd, []io.Closer, error) {
	// #nosec G204
	cmd := exec.Command(s.Path, s.Args...)
	cmd.Dir = s.WorkDir
	if len(s.Env) > 0 {
		cmd.Env = s.Env
	}
	configureSysProcAttr(cmd)

	var closers []io.Closer
	var null *os.File
	devnull := func() (io.Writer, error) {
		if null == nil {
			f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
			if err != nil {
				return nil, err
			}
			null = f
			closers = append(closers, f)
		}
		return null, nil
	}

	for _, bind := range []struct {
		w   io.WriteCloser
		dst *io.Writer
	}{{s.Stdout, &cmd.Stdout}, {s.Stderr, &cmd.Stderr}} {
		if bind.w == nil {
			w, err := devnull()
			if err != nil {
				closeAll(closers)
				return nil, nil, err
			}
			*bind.dst = w
			continue
		}
		*bind.dst = bind.w
		closers = append(closers, bind.w)
		if _, ok := bind.w.(*os.File); !ok {
			cmd.WaitDelay = waitDelay
		}
	}
	return cmd, closers, nil
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
