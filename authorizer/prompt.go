package authorizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Prompter asks the user for a line of input. It returns when a line was
// entered, the input failed, or ctx is done.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, message string) (string, error)

// Prompt calls f(ctx, message).
func (f PrompterFunc) Prompt(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// ConsolePrompter reads the code from a terminal with readline.
type ConsolePrompter struct {
	stdin  io.ReadCloser
	stdout io.Writer
}

// NewConsolePrompter creates a prompter on stdin/stdout. Pass a
// readline.CancelableStdin so an abandoned prompt can release the terminal.
func NewConsolePrompter(stdin io.ReadCloser, stdout io.Writer) *ConsolePrompter {
	return &ConsolePrompter{stdin: stdin, stdout: stdout}
}

// Prompt shows message and reads one line. Ctrl+C yields ErrPromptInterrupted,
// Ctrl+D or a closed input yields io.EOF.
func (p *ConsolePrompter) Prompt(ctx context.Context, message string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          message,
		Stdin:           p.stdin,
		Stdout:          p.stdout,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create readline instance: %w", err)
	}

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := rl.Readline()
		done <- result{line: line, err: err}
	}()

	select {
	case r := <-done:
		rl.Close()
		if errors.Is(r.err, readline.ErrInterrupt) {
			return "", ErrPromptInterrupted
		}
		if r.err != nil {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	case <-ctx.Done():
		// Closing may block on a pending terminal read.
		go rl.Close()
		return "", ctx.Err()
	}
}
