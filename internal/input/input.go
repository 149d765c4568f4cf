// Package input вводит распознанный текст в активное поле или в поток.
package input

import (
	"context"
	"io"
	"sync"
)

// Typer вводит текст.
type Typer interface {
	// Type вводит текст в текущее активное поле.
	Type(ctx context.Context, text string) error
}

// New создаёт платформо-специфичный Typer.
func New() (Typer, error) {
	return newTyper()
}

// WriterTyper пишет каждый фрагмент текста в w с переводом строки.
type WriterTyper struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter создаёт Typer поверх io.Writer (например, os.Stdout).
func NewWriter(w io.Writer) *WriterTyper {
	return &WriterTyper{w: w}
}

func (t *WriterTyper) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, text+"\n")
	return err
}
