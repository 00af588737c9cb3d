// Package app wires configuration, logging, the extraction engine and the
// job history into the interactive and one-shot surfaces.
package app

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/lvcoi/ytdl-here/internal/config"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/history"
	"github.com/lvcoi/ytdl-here/internal/logging"
)

// Mode selects where logs go: the full-screen interface owns the terminal,
// so it logs to a file.
type Mode int

const (
	ModeTUI Mode = iota
	ModePlain
	ModeOneShot
)

type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type App struct {
	cfg     config.Config
	log     zerolog.Logger
	engine  engine.Engine
	history *history.Store
	in      io.Reader
	out     io.Writer
	closers []func() error
}

type Option func(*App)

// WithEngine replaces the engine chosen by configuration.
func WithEngine(e engine.Engine) Option {
	return func(a *App) { a.engine = e }
}

func New(cfg config.Config, mode Mode, streams Streams, opts ...Option) (*App, error) {
	logOpts := logging.Options{Level: cfg.LogLevel}
	if mode == ModeTUI {
		logOpts.File = cfg.LogFile
	} else {
		logOpts.Console = streams.Err
	}
	log, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, engine.Wrap(engine.CategoryConfig, err)
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		in:      streams.In,
		out:     streams.Out,
		closers: []func() error{closeLog},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.engine == nil {
		a.engine = newEngine(cfg, log)
	}

	if !cfg.NoHistory {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.HistoryDB).Msg("job history disabled")
		} else {
			a.history = store
			a.closers = append(a.closers, store.Close)
		}
	}
	a.log.Debug().Str("engine", a.engine.Name()).Str("dir", cfg.Dir).Msg("app ready")
	return a, nil
}

func newEngine(cfg config.Config, log zerolog.Logger) engine.Engine {
	if cfg.Engine == config.EngineNative {
		return engine.NewNative(log, engine.WithMP3(cfg.AudioMP3))
	}
	return engine.NewYtDlp(cfg.YtDlpPath, log)
}

// Close releases the history database and log file, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) dispatchOptions(sink dispatch.Sink) []dispatch.Option {
	opts := []dispatch.Option{dispatch.WithSink(sink), dispatch.WithLogger(a.log)}
	if a.history != nil {
		opts = append(opts, dispatch.WithRecorder(a.history))
	}
	return opts
}
