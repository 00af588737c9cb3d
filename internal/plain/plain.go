// Package plain is the line-oriented surface: prompts on stdin, a format
// table and textual progress on stdout.
package plain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lvcoi/ytdl-here/internal/session"
)

const (
	promptURL    = "Enter video URL for download options (or type 'exit' or 'quit'): "
	promptFormat = "\nEnter the number of the format to download: "
	promptDir    = "Enter download path or press enter to use %s: "
)

type stage int

const (
	stageURL stage = iota
	stageFetching
	stageFormat
	stageDir
)

type Options struct {
	Controller *session.Controller
	Queue      *session.Queue
	In         io.Reader
	Out        io.Writer
	InitialURL string
}

type loop struct {
	ctrl    *session.Controller
	out     io.Writer
	printer *Printer
	stage   stage
	results chan session.CatalogMsg
}

// Run drives the session until the user types exit or quit, input ends, or
// ctx is cancelled. Background transfers keep running after Run returns.
func Run(ctx context.Context, opts Options) error {
	l := &loop{
		ctrl:    opts.Controller,
		out:     opts.Out,
		printer: NewPrinter(opts.Out),
		results: make(chan session.CatalogMsg, 1),
	}
	lines := readLines(ctx, opts.In)

	if url := strings.TrimSpace(opts.InitialURL); url != "" {
		l.submit(url, session.SourceArgument)
	} else {
		l.prompt()
	}

	for {
		// Input waits while a fetch is in flight so answers line up with
		// the prompts that asked for them.
		in := lines
		if l.stage == stageFetching {
			in = nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-in:
			if !ok {
				return nil
			}
			if l.handle(line) {
				return nil
			}
		case msg := <-l.results:
			l.catalogReady(msg)
		case ev := <-opts.Queue.Events():
			l.ctrl.HandleEvent(ev)
			l.printer.Event(ev)
		}
	}
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (l *loop) prompt() {
	switch l.stage {
	case stageURL:
		fmt.Fprint(l.out, promptURL)
	case stageFormat:
		fmt.Fprint(l.out, promptFormat)
	case stageDir:
		fmt.Fprintf(l.out, promptDir, l.ctrl.State().Dir)
	}
}

// handle consumes one input line and reports whether the session is over.
func (l *loop) handle(line string) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}

	switch l.stage {
	case stageURL:
		if line != "" {
			l.submit(line, session.SourceTyped)
			return false
		}
	case stageFormat:
		l.choose(line)
		return false
	case stageDir:
		l.ctrl.SetDir(line)
		if err := l.ctrl.RequestDownload(); err != nil {
			fmt.Fprintf(l.out, "Error: %v\n", err)
		} else {
			fmt.Fprintln(l.out, l.ctrl.State().Status)
		}
		l.stage = stageURL
	}
	l.prompt()
	return false
}

func (l *loop) submit(url string, src session.Source) {
	cmd := l.ctrl.URLChanged(url, src)
	if cmd == nil {
		st := l.ctrl.State()
		if st.Phase == session.Ready {
			l.showCatalog()
			return
		}
		l.prompt()
		return
	}
	fmt.Fprintln(l.out, l.ctrl.State().Status)
	l.stage = stageFetching
	go func() {
		msg, _ := cmd().(session.CatalogMsg)
		l.results <- msg
	}()
}

func (l *loop) catalogReady(msg session.CatalogMsg) {
	if !l.ctrl.CatalogReady(msg) {
		return
	}
	st := l.ctrl.State()
	if st.Phase != session.Ready {
		fmt.Fprintln(l.out, st.Status)
		l.stage = stageURL
		l.prompt()
		return
	}
	l.showCatalog()
}

func (l *loop) showCatalog() {
	st := l.ctrl.State()
	fmt.Fprintln(l.out, st.Status)
	PrintCatalog(l.out, st.Catalog)
	l.stage = stageFormat
	l.prompt()
}

func (l *loop) choose(line string) {
	n, err := strconv.Atoi(line)
	if err == nil {
		err = l.ctrl.ChooseFormat(n - 1)
	}
	if err != nil {
		count := len(l.ctrl.State().Catalog.Entries)
		if errors.Is(err, session.ErrNotReady) {
			fmt.Fprintln(l.out, "No formats to choose from.")
			l.stage = stageURL
		} else {
			fmt.Fprintf(l.out, "Invalid choice, enter a number between 1 and %d.\n", count)
		}
		l.prompt()
		return
	}
	l.stage = stageDir
	l.prompt()
}
