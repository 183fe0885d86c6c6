package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ErrNoInput is returned when the input stream ends before an answer.
var ErrNoInput = errors.New("no more operator input")

// Prompter asks the operator questions. Every method blocks until an answer
// arrives or ctx is cancelled.
type Prompter interface {
	// Confirm asks a yes/no question. An empty answer selects def.
	Confirm(ctx context.Context, question string, def bool) (bool, error)
	// Choose asks until the answer is one of choices. An empty answer
	// selects def.
	Choose(ctx context.Context, question string, choices []string, def string) (string, error)
	// Ask reads a free-text answer. An empty answer selects def.
	Ask(ctx context.Context, question, def string) (string, error)
	// Wait blocks until the operator presses Enter.
	Wait(ctx context.Context, message string) error
}

// Terminal prompts on out and reads answers line by line from in.
type Terminal struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

// NewTerminal returns a prompter over in and out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// start launches the reader goroutine on first use so stdin is untouched
// by commands that never prompt. The channel closes on EOF.
func (t *Terminal) start() {
	t.once.Do(func() {
		t.lines = make(chan string)
		go func() {
			defer close(t.lines)
			scanner := bufio.NewScanner(t.in)
			for scanner.Scan() {
				t.lines <- scanner.Text()
			}
		}()
	})
}

// readLine waits for the next line. A line left unread when ctx is
// cancelled stays with the reader goroutine.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	t.start()
	select {
	case <-ctx.Done():
		fmt.Fprintln(t.out)
		return "", ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			return "", ErrNoInput
		}
		return strings.TrimSpace(line), nil
	}
}

func (t *Terminal) ask(ctx context.Context, question, def string) (string, error) {
	suffix := ""
	if def != "" {
		suffix = color.New(color.Faint).Sprintf(" [%s]", def)
	}
	fmt.Fprintf(t.out, "  %s%s: ", question, suffix)
	answer, err := t.readLine(ctx)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (t *Terminal) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	d := "n"
	if def {
		d = "y"
	}
	for {
		answer, err := t.ask(ctx, question+" (y/n)", d)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(t.out, "    Please answer y or n")
	}
}

func (t *Terminal) Choose(ctx context.Context, question string, choices []string, def string) (string, error) {
	list := strings.Join(choices, "/")
	for {
		answer, err := t.ask(ctx, fmt.Sprintf("%s (%s)", question, list), def)
		if err != nil {
			return "", err
		}
		for _, c := range choices {
			if answer == c {
				return c, nil
			}
		}
		fmt.Fprintf(t.out, "    Please choose one of: %s\n", list)
	}
}

func (t *Terminal) Ask(ctx context.Context, question, def string) (string, error) {
	return t.ask(ctx, question, def)
}

func (t *Terminal) Wait(ctx context.Context, message string) error {
	fmt.Fprintf(t.out, "  %s ", message)
	_, err := t.readLine(ctx)
	return err
}
