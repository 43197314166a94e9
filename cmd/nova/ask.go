package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nadzzz/nova/internal/config"
	"github.com/nadzzz/nova/internal/message"
)

func newAskCmd(cfg *config.Config, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <utterance...>",
		Short: "Answer a single utterance and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg, flags, stdin, os.Stderr)
			if err := a.negotiate(cmd.Context(), flags); err != nil {
				return err
			}
			reply := a.ask(cmd.Context(), "cli", strings.Join(args, " "))
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func newChatCmd(cfg *config.Config, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session; type exit or quit to leave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg, flags, stdin, os.Stderr)
			if err := a.negotiate(cmd.Context(), flags); err != nil {
				return err
			}
			return chatLoop(cmd.Context(), a, stdin, cmd.OutOrStdout(), os.Stderr)
		},
	}
}

// chatLoop answers one utterance per input line until end of input or
// an exit word. Blank lines are skipped.
func chatLoop(ctx context.Context, a *app, in lineReader, out, prompt io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(prompt, "nova> ")
		line, err := in.ReadString('\n')
		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "exit", "quit":
			return nil
		case "":
		default:
			printReply(out, a.ask(ctx, "chat", text))
		}
		if err == io.EOF {
			fmt.Fprintln(prompt)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	}
}

type lineReader interface {
	ReadString(delim byte) (string, error)
}

func printReply(w io.Writer, reply *message.Reply) {
	fmt.Fprintln(w, reply.Text)
}
