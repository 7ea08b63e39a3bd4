package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cryptosight-backend/internal/config"
	"cryptosight-backend/internal/tui"
	"cryptosight-backend/internal/widget"
)

func main() {
	defaults := config.LoadClient()

	var (
		baseURL string
		timeout time.Duration
		logFile string
	)

	rootCmd := &cobra.Command{
		Use:   "cryptosight-chat",
		Short: "Chat with the CryptoSight assistant from the terminal",
		Long: `A terminal chat widget for the CryptoSight backend.

Press ctrl+o to open or close the chat, tab to pick a suggested reply and
enter to send it. The conversation keeps going while the panel is closed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), baseURL, timeout, logFile)
		},
	}
	rootCmd.Flags().StringVar(&baseURL, "base-url", defaults.BaseURL, "CryptoSight server URL (CHAT_BASE_URL)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", defaults.Timeout, "per-request timeout (CHAT_TIMEOUT_SECONDS)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write debug logs to this file")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, baseURL string, timeout time.Duration, logFile string) error {
	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		defer f.Close()
		out = f
	}
	logger := zerolog.New(out).With().Timestamp().Str("component", "widget").Logger()

	httpClient, err := widget.NewHTTPClient(timeout)
	if err != nil {
		return err
	}
	creds, err := widget.NewCookieCredentials(httpClient, baseURL)
	if err != nil {
		return err
	}
	view := tui.NewProgramView()
	ctrl := widget.New(view, widget.NewHTTPTransport(httpClient, baseURL), creds, widget.WithLogger(logger))

	p := tea.NewProgram(tui.NewModel(ctx, ctrl, tui.DefaultMarkupStyles()), tea.WithAltScreen(), tea.WithContext(ctx))
	view.Attach(p)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run chat UI")
	}
	return nil
}
