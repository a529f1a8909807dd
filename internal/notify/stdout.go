package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/infodancer/smtp2tg/internal/render"
)

// Stdout implements Notifier by printing messages to standard output.
// It is used in dry-run mode in place of a real messaging backend.
type Stdout struct {
	writer io.Writer
}

// NewStdout creates a notifier that writes to os.Stdout.
func NewStdout() *Stdout {
	return &Stdout{writer: os.Stdout}
}

// NewStdoutWithWriter creates a notifier that writes to the given writer.
// This is useful for testing.
func NewStdoutWithWriter(w io.Writer) *Stdout {
	return &Stdout{writer: w}
}

// Name returns the name of this notifier.
func (s *Stdout) Name() string {
	return "stdout"
}

// Send prints the rendered message and its parse mode to the writer.
func (s *Stdout) Send(_ context.Context, msg render.Message) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("parse_mode: %s\n", msg.Dialect))
	b.WriteString(msg.Text + "\n")
	b.WriteString("========================================\n")

	if _, err := fmt.Fprint(s.writer, b.String()); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}

	return nil
}

// Ensure Stdout implements Notifier
var _ Notifier = (*Stdout)(nil)
