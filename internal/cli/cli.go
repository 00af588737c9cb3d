// Package cli defines the ytdl-here command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lvcoi/ytdl-here/internal/app"
	"github.com/lvcoi/ytdl-here/internal/config"
	"github.com/lvcoi/ytdl-here/internal/engine"
)

// exitError carries an exit code decided by a subcommand that already
// reported its own failures.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type command struct {
	v       *viper.Viper
	streams app.Streams
	// newApp is swapped in tests.
	newApp func(cfg config.Config, mode app.Mode, streams app.Streams) (*app.App, error)
}

func defaultNewApp(cfg config.Config, mode app.Mode, streams app.Streams) (*app.App, error) {
	return app.New(cfg, mode, streams)
}

// NewRootCmd builds the command tree writing to streams.
func NewRootCmd(streams app.Streams) *cobra.Command {
	c := &command{v: config.New(), streams: streams, newApp: defaultNewApp}
	return c.root()
}

func (c *command) root() *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName + " [url]",
		Short: "Fetch videos and playlists from a URL, picking the format interactively",
		Long: "Paste, type or copy a video URL, choose a format from the list and the\n" +
			"download runs in the background while you queue the next one.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			mode := app.ModeTUI
			if cfg.Plain {
				mode = app.ModePlain
			}
			a, err := c.newApp(cfg, mode, c.streams)
			if err != nil {
				return err
			}
			defer a.Close()

			var initial string
			if len(args) == 1 {
				initial = args[0]
			}
			return a.Interactive(cmd.Context(), initial)
		},
	}
	root.SetIn(c.streams.In)
	root.SetOut(c.streams.Out)
	root.SetErr(c.streams.Err)

	if err := config.RegisterFlags(c.v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(c.formatsCmd(), c.getCmd(), c.historyCmd())
	return root
}

func (c *command) load(cmd *cobra.Command) (config.Config, error) {
	file, err := cmd.Flags().GetString(config.KeyConfigFile)
	if err != nil {
		return config.Config{}, engine.Wrap(engine.CategoryConfig, err)
	}
	return config.Load(c.v, file)
}

func (c *command) oneShot(cmd *cobra.Command) (*app.App, error) {
	cfg, err := c.load(cmd)
	if err != nil {
		return nil, err
	}
	return c.newApp(cfg, app.ModeOneShot, c.streams)
}

func (c *command) formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats <url>",
		Short: "List the formats available for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.oneShot(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Formats(cmd.Context(), args[0])
		},
	}
}

func (c *command) getCmd() *cobra.Command {
	var (
		format string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "get <url> [url...]",
		Short: "Download URLs without prompting",
		Long: "Download each URL with the given format id (single videos) or quality\n" +
			"tier (playlists, e.g. 1080p or \"audio only\"). Without --format the best\n" +
			"available quality is used.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.oneShot(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, code := a.Get(cmd.Context(), args, format, asJSON); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "format id or quality tier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON result per line instead of progress")
	return cmd
}

func (c *command) historyCmd() *cobra.Command {
	var (
		failed bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded download jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.oneShot(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.History(cmd.Context(), failed, limit)
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "only show failed jobs")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs to show (0 for all)")
	return cmd
}

// Run executes the command tree with args and returns the exit code.
func Run(ctx context.Context, args []string, streams app.Streams) int {
	root := NewRootCmd(streams)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(errWriter(streams), "error: %v\n", err)
	}
	return engine.ExitCode(err)
}

func errWriter(streams app.Streams) io.Writer {
	if streams.Err != nil {
		return streams.Err
	}
	return os.Stderr
}

// Execute runs the process command line and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:], app.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
}
