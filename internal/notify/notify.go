// Package notify delivers transient user-facing notices about pipeline
// outcomes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Variant selects how a notice is rendered.
type Variant string

const (
	VariantNormal      Variant = "normal"
	VariantDestructive Variant = "destructive"
)

// Notice is a short message for the operator.
type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

func (n Notice) String() string {
	return fmt.Sprintf("%s: %s", n.Title, n.Description)
}

// Destructive reports whether the notice describes a failure.
func (n Notice) Destructive() bool { return n.Variant == VariantDestructive }

// Notices emitted by the capture pipeline.
var (
	CameraUnavailable = Notice{Title: "Erro", Description: "Não foi possível acessar a câmera", Variant: VariantDestructive}
	ExtractSucceeded  = Notice{Title: "Sucesso!", Description: "Dados extraídos com sucesso", Variant: VariantNormal}
	ProcessFailed     = Notice{Title: "Erro", Description: "Erro ao processar a imagem", Variant: VariantDestructive}
	FillSucceeded     = Notice{Title: "Sucesso", Description: "Dados enviados para o formulário", Variant: VariantNormal}
	FillFailed        = Notice{Title: "Erro", Description: "Erro ao preencher o formulário", Variant: VariantDestructive}
)

// Notifier shows notices. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Nop discards notices.
type Nop struct{}

func (Nop) Notify(context.Context, Notice) {}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

// LogNotifier writes notices to a slog.Logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	if n.Destructive() {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notice", "title", n.Title, "description", n.Description, "variant", string(n.Variant))
}

var (
	titleNormal      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	titleDestructive = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8"))
	descriptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
)

// Render formats n for a terminal.
func Render(n Notice) string {
	title := titleNormal
	if n.Destructive() {
		title = titleDestructive
	}
	return title.Render(n.Title) + " " + descriptionStyle.Render(n.Description)
}

// ConsoleNotifier prints rendered notices, one per line.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (c *ConsoleNotifier) Notify(_ context.Context, n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, Render(n))
}

// ErrClosed is returned by Chan.Next after Close.
var ErrClosed = errors.New("notifier closed")

// Chan queues notices on a buffered channel for UIs that poll. A full
// buffer drops the notice.
type Chan struct {
	ch   chan Notice
	once sync.Once
	mu   sync.RWMutex
	done bool
}

func NewChan(buffer int) *Chan {
	if buffer <= 0 {
		buffer = 8
	}
	return &Chan{ch: make(chan Notice, buffer)}
}

func (c *Chan) Notify(_ context.Context, n Notice) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.done {
		return
	}
	select {
	case c.ch <- n:
	default:
	}
}

// C exposes the notice stream.
func (c *Chan) C() <-chan Notice { return c.ch }

// Next blocks until a notice arrives, ctx ends or the channel is closed.
func (c *Chan) Next(ctx context.Context) (Notice, error) {
	select {
	case n, ok := <-c.ch:
		if !ok {
			return Notice{}, ErrClosed
		}
		return n, nil
	case <-ctx.Done():
		return Notice{}, ctx.Err()
	}
}

func (c *Chan) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.done = true
		close(c.ch)
		c.mu.Unlock()
	})
}
