package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <session-id> <file...>",
		Short: "Upload documents to a session",
		Long: `Upload documents to a session. Supported types are PDF, Word (.docx),
Excel (.xlsx), CSV, PowerPoint (.pptx) and plain text. Files are uploaded one
at a time; a failed file does not stop the rest.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			m := env.model(args[0])
			defer m.Shutdown()

			result, err := m.Send(cmd.Context(), "", args[1:])
			out := cmd.OutOrStdout()
			for _, path := range result.Uploaded {
				fmt.Fprintf(out, "Uploaded %s\n", filepath.Base(path))
			}
			for _, f := range result.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed %s: %v\n", filepath.Base(f.Path), f.Err)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d files failed", len(result.Failed), len(args)-1)
			}
			return err
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var title string

	ingest := &cobra.Command{
		Use:   "ingest <session-id> [file|-]",
		Short: "Add text to a session",
		Long: `Add text to a session so questions can be asked about it. The text is read
from the named file, or from standard input when the file is "-" or omitted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			text, err := readText(cmd.InOrStdin(), src)
			if err != nil {
				return err
			}

			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			m := env.model(args[0])
			defer m.Shutdown()

			if err := m.IngestTextInto(cmd.Context(), args[0], text, title); err != nil {
				return fmt.Errorf("failed to ingest text: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Text ingested successfully. You can now ask questions about it.")
			return nil
		},
	}
	ingest.Flags().StringVarP(&title, "title", "t", "", "title for the text")

	return ingest
}

func readText(stdin io.Reader, src string) (string, error) {
	if src == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s", src)
		}
		return "", fmt.Errorf("failed to read %s: %w", src, err)
	}
	return string(b), nil
}
