package console

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"
)

type LineReader interface {
	ReadLine() (string, error)
}

// NewLineReader edits lines in raw mode when stdin is a terminal and reads
// plain lines otherwise. The returned writer must be used for all output so
// the terminal can keep the prompt intact.
func NewLineReader(stdin *os.File, stdout io.Writer, prompt string) (LineReader, io.Writer) {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return &scannerReader{scanner: bufio.NewScanner(stdin)}, stdout
	}

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{stdin, stdout}, prompt)
	return &terminalReader{fd: fd, terminal: t}, t
}

type terminalReader struct {
	fd       int
	terminal *term.Terminal
}

func (r *terminalReader) ReadLine() (string, error) {
	oldState, err := term.MakeRaw(r.fd)
	if err != nil {
		return "", err
	}

	if width, height, err := term.GetSize(r.fd); err == nil {
		r.terminal.SetSize(width, height)
	}

	line, err := r.terminal.ReadLine()
	if restoreErr := term.Restore(r.fd, oldState); err == nil {
		err = restoreErr
	}
	return line, err
}

type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
