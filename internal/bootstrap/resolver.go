package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// StaticResolver answers every request with a fixed URL. The empty
// StaticResolver selects offline mode, which suits non-interactive runs.
type StaticResolver string

// ResolveURL returns the fixed answer.
func (s StaticResolver) ResolveURL(ctx context.Context, unreachable string) (string, error) {
	return string(s), nil
}

// PromptResolver asks a human for the backend URL on a line-oriented
// stream, usually the terminal.
type PromptResolver struct {
	In  io.Reader
	Out io.Writer
}

// ResolveURL writes the question and reads one line. End of input counts
// as a blank answer. The read is abandoned when ctx is done.
func (p PromptResolver) ResolveURL(ctx context.Context, unreachable string) (string, error) {
	if unreachable != "" {
		fmt.Fprintf(p.Out, "Backend %s is unreachable.\n", unreachable)
	} else {
		fmt.Fprintln(p.Out, "No backend configured.")
	}
	fmt.Fprint(p.Out, "Enter backend URL or leave empty for offline mode: ")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", fmt.Errorf("reading backend url: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}
