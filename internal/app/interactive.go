package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lvcoi/ytdl-here/internal/catalog"
	"github.com/lvcoi/ytdl-here/internal/clipwatch"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/plain"
	"github.com/lvcoi/ytdl-here/internal/session"
	"github.com/lvcoi/ytdl-here/internal/tui"
)

// Interactive runs one session on the configured surface. Transfers still
// running when the surface closes are waited for; the failed list is
// printed at the end.
func (a *App) Interactive(ctx context.Context, initialURL string) error {
	queue := session.NewQueue(session.DefaultQueueSize)
	disp := dispatch.New(ctx, a.engine, a.dispatchOptions(queue.Post)...)
	ctrl := session.NewController(ctx, session.Config{
		Builder:    catalog.NewBuilder(a.engine, a.cfg.FetchTimeout, a.log),
		Dispatcher: disp,
		Gate:       clipwatch.NewGate(a.cfg.EditCooldown),
		Dir:        a.cfg.Dir,
		Log:        a.log,
	})

	var err error
	if a.cfg.Plain {
		err = plain.Run(ctx, plain.Options{
			Controller: ctrl,
			Queue:      queue,
			In:         a.in,
			Out:        a.out,
			InitialURL: initialURL,
		})
	} else {
		err = a.runTUI(ctx, ctrl, queue, initialURL)
	}

	a.drain(disp, queue)
	return a.finish(disp.Failed().Snapshot(), err)
}

func (a *App) runTUI(ctx context.Context, ctrl *session.Controller, queue *session.Queue, initialURL string) error {
	var reader clipwatch.Reader
	if !a.cfg.NoClipboard {
		reader = clipwatch.SystemReader{}
	}
	model := tui.New(tui.Options{
		Controller:        ctrl,
		Queue:             queue,
		Clipboard:         reader,
		ClipboardInterval: a.cfg.ClipboardInterval,
		InitialURL:        initialURL,
	})
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithInput(a.in),
		tea.WithOutput(a.out),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// drain takes the queue over from the interface, prints events as text
// while the remaining workers finish, then closes the queue.
func (a *App) drain(disp *dispatch.Dispatcher, queue *session.Queue) {
	if n := disp.Active(); n > 0 {
		fmt.Fprintf(a.out, "Waiting for %d download(s) to finish...\n", n)
	}
	printer := plain.NewPrinter(a.out)
	for _, ev := range queue.Release() {
		printer.Event(ev)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev := <-queue.Events():
				printer.Event(ev)
			case <-stop:
				for {
					select {
					case ev := <-queue.Events():
						printer.Event(ev)
					default:
						return
					}
				}
			}
		}
	}()
	disp.Wait()
	close(stop)
	<-done
	queue.Close()
	if n := queue.Dropped(); n > 0 {
		a.log.Debug().Int64("dropped", n).Msg("progress events dropped")
	}
}

func (a *App) finish(failed []string, err error) error {
	if summary := session.Summary(failed); summary != "" {
		fmt.Fprint(a.out, summary)
	}
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return engine.Wrap(engine.CategoryPartialFailure, fmt.Errorf("%d download(s) failed", len(failed)))
	}
	return nil
}
