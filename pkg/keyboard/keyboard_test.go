package keyboard

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadKey(t *testing.T) {
	k := NewReader(strings.NewReader("wA \x1b"))
	defer k.Close()
	ctx := context.Background()

	for _, want := range []rune{'w', 'a', ' ', KeyEsc} {
		got, err := k.ReadKey(ctx)
		if err != nil {
			t.Fatalf("ReadKey: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if _, err := k.ReadKey(ctx); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
	if _, err := k.ReadKey(ctx); err != io.EOF {
		t.Errorf("second read after end: got %v, want io.EOF", err)
	}
}

func TestReadKey_CtrlC(t *testing.T) {
	k := NewReader(strings.NewReader("\x03"))
	if _, err := k.ReadKey(context.Background()); !errors.Is(err, ErrInterrupted) {
		t.Errorf("got %v, want ErrInterrupted", err)
	}
}

func TestReadKey_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	k := NewReader(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := k.ReadKey(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}

	// A key typed later is still delivered.
	go pw.Write([]byte("Q"))
	got, err := k.ReadKey(context.Background())
	if err != nil || got != 'q' {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestClose_ReleasesPendingKey(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	k := NewReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := k.ReadKey(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want canceled", err)
	}

	// Nobody reads this key; Close must still let the reader goroutine exit.
	if _, err := pw.Write([]byte("w")); err != nil {
		t.Fatal(err)
	}
	if err := k.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-k.finished:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still blocked after Close")
	}

	if _, err := k.ReadKey(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("after Close: got %v, want io.EOF", err)
	}
	if err := k.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWaitEnter(t *testing.T) {
	if err := WaitEnter(strings.NewReader("yes\n")); err != nil {
		t.Errorf("WaitEnter: %v", err)
	}
	if err := WaitEnter(strings.NewReader("\r")); err != nil {
		t.Errorf("WaitEnter(CR): %v", err)
	}
	if err := WaitEnter(strings.NewReader("no newline")); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestCRLF(t *testing.T) {
	var b strings.Builder
	w := CRLF(&b)
	n, err := w.Write([]byte("Robot stopped safely\n\rCurrent Status: Robot Ready"))
	if err != nil || n != 49 {
		t.Fatalf("Write: %d, %v", n, err)
	}
	if got := b.String(); got != "Robot stopped safely\r\n\rCurrent Status: Robot Ready" {
		t.Errorf("got %q", got)
	}
}
