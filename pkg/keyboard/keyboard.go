// Package keyboard reads single keystrokes without waiting for Enter.
package keyboard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode"

	"golang.org/x/term"
)

// Control keys.
const (
	KeyCtrlC rune = 0x03
	KeyEsc   rune = 0x1b
)

// ErrInterrupted is returned when Ctrl-C is read in raw mode.
var ErrInterrupted = errors.New("keyboard: interrupted")

// Reader returns one lowercased key per call.
type Reader struct {
	keys     chan keyResult
	in       *bufio.Reader
	stop     func() error
	done     chan struct{}
	once     sync.Once
	finished chan struct{}
}

type keyResult struct {
	key rune
	err error
}

// NewReader reads keys from r. Any byte source works, which keeps tests
// independent of a terminal.
func NewReader(r io.Reader) *Reader {
	k := &Reader{
		keys:     make(chan keyResult),
		in:       bufio.NewReader(r),
		stop:     func() error { return nil },
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go k.loop()
	return k
}

// OpenTerminal puts stdin into raw mode and returns a Reader over it.
// Close restores the terminal.
func OpenTerminal() (*Reader, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("keyboard: stdin is not a terminal")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("keyboard: raw mode: %w", err)
	}
	k := NewReader(os.Stdin)
	k.stop = func() error { return term.Restore(fd, state) }
	return k, nil
}

// loop exits once Close is called and the pending read returns.
func (k *Reader) loop() {
	defer close(k.finished)
	for {
		r, _, err := k.in.ReadRune()
		res := keyResult{key: r, err: err}
		select {
		case k.keys <- res:
		case <-k.done:
			return
		}
		if err != nil {
			close(k.keys)
			return
		}
	}
}

// ReadKey blocks for the next key. Letters are lowercased; Ctrl-C returns
// ErrInterrupted and end of input returns io.EOF.
func (k *Reader) ReadKey(ctx context.Context) (rune, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-k.done:
		return 0, io.EOF
	case res, ok := <-k.keys:
		if !ok {
			return 0, io.EOF
		}
		if res.err != nil {
			return 0, res.err
		}
		if res.key == KeyCtrlC {
			return 0, ErrInterrupted
		}
		return unicode.ToLower(res.key), nil
	}
}

// Close stops delivering keys and restores the terminal if OpenTerminal
// changed it. Further ReadKey calls return io.EOF.
func (k *Reader) Close() error {
	var err error
	k.once.Do(func() {
		close(k.done)
		err = k.stop()
	})
	return err
}

// WaitEnter reads until a newline or carriage return, for "Press Enter"
// prompts in cooked mode.
func WaitEnter(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' || b == '\r' {
			return nil
		}
	}
}

type crlfWriter struct {
	w io.Writer
}

// CRLF wraps w so each "\n" is written as "\r\n". Raw mode turns off the
// terminal's own newline translation.
func CRLF(w io.Writer) io.Writer {
	return crlfWriter{w: w}
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
