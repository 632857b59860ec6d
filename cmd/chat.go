package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"djrag/api"
	"djrag/ui"
)

func newMessagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "messages <session-id>",
		Aliases: []string{"history"},
		Short:   "Print a session's history with citations",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			msgs, err := env.client.ListMessages(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load messages: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintln(out, "No messages yet.")
				return nil
			}

			p := newPrinter(out)
			for _, msg := range msgs {
				p.message(msg)
			}
			return nil
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <session-id> <question...>",
		Short: "Ask a question and print the answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			if question == "" {
				return fmt.Errorf("question is empty")
			}

			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			m := env.model(args[0])
			defer m.Shutdown()

			result, err := m.Send(cmd.Context(), question, nil)
			if err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			if result.Reply != nil {
				newPrinter(cmd.OutOrStdout()).answer(*result.Reply)
			}
			return nil
		},
	}
}

// printer writes messages for the terminal. Markdown is rendered only when
// the output is a terminal.
type printer struct {
	out      io.Writer
	markdown bool
	width    int
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:      out,
		markdown: isTerminal(out),
		width:    terminalWidth(out),
	}
}

func (p *printer) message(msg api.Message) {
	if msg.Role == api.RoleUser {
		fmt.Fprintf(p.out, "You: %s\n\n", msg.Content)
		return
	}
	fmt.Fprintln(p.out, "Assistant:")
	p.answer(msg)
	fmt.Fprintln(p.out)
}

func (p *printer) answer(msg api.Message) {
	if p.markdown {
		fmt.Fprintln(p.out, strings.TrimRight(ui.RenderMarkdown(msg.Content, p.width), "\n"))
	} else {
		fmt.Fprintln(p.out, msg.Content)
	}

	if len(msg.Sources) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Sources:")
		for i, src := range msg.Sources {
			fmt.Fprintf(p.out, "  %s\n", ui.FormatCitation(i+1, src))
			if excerpt := ui.Excerpt(src.Content); excerpt != "" {
				fmt.Fprintf(p.out, "      %s\n", excerpt)
			}
		}
	}

	if metrics := ui.FormatMetrics(msg.Metrics); metrics != "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, metrics)
	}
}
