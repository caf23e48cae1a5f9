package prompt

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal is the device a prompt runs on. MakeRaw is the only place device
// modes change; the returned func restores the mode captured before the call.
type Terminal interface {
	io.Reader
	io.Writer
	// Size reports columns and rows. A zero height means the row count is
	// unknown.
	Size() (width, height int, err error)
	MakeRaw() (restore func() error, err error)
}

type stdio struct {
	in  *os.File
	out *os.File
}

// Stdio returns the controlling terminal on stdin/stdout.
func Stdio() Terminal {
	return &stdio{in: os.Stdin, out: os.Stdout}
}

func (t *stdio) Read(p []byte) (int, error)  { return t.in.Read(p) }
func (t *stdio) Write(p []byte) (int, error) { return t.out.Write(p) }

func (t *stdio) Size() (int, int, error) {
	return term.GetSize(int(t.out.Fd()))
}

func (t *stdio) MakeRaw() (func() error, error) {
	fd := int(t.in.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error { return term.Restore(fd, old) }, nil
}

// IsInteractive reports whether both stdin and stdout are attached to a
// terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
