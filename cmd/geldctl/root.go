package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/di"
	"github.com/aristath/geld/pkg/logger"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	plain    bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "geldctl",
		Short: "Operate the geld advisory databases",
		Long: `geldctl validates and repairs goal ownership slices, checks target
matrix files and previews rebalances without applying them.

Configuration is read from the same environment (and .env file) as the server.

Examples:
  geldctl validate-slices --client 7
  geldctl repair-slices --client 7
  geldctl validate-matrix --file matrices.yaml
  geldctl preview --client 7 --move 12=5000 --move 13=-2000 --cascade`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&opts.plain, "plain", false, "Print raw markdown instead of rendering it")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")

	root.AddCommand(
		newValidateSlicesCmd(opts),
		newRepairSlicesCmd(opts),
		newValidateMatrixCmd(opts),
		newPreviewCmd(opts),
	)
	return root
}

// withContainer loads configuration, wires the container and closes it after fn
func (o *rootOptions) withContainer(cmd *cobra.Command, fn func(c *di.Container, log zerolog.Logger) error) error {
	log := logger.New(logger.Config{Level: o.logLevel, Output: cmd.ErrOrStderr()})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	container, err := di.Wire(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	return fn(container, log)
}

// render writes markdown to out, styled for the terminal unless --plain is set
func (o *rootOptions) render(out io.Writer, markdown string) error {
	if o.plain {
		_, err := io.WriteString(out, markdown)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	styled, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(out, styled)
	return err
}
