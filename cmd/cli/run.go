package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/dojo-relay/internal/client/actions"
	"github.com/and161185/dojo-relay/internal/client/page"
	"github.com/and161185/dojo-relay/internal/client/session"
	"github.com/and161185/dojo-relay/internal/client/widget"
)

// subscribeTimeout bounds the wait for the surface to accept action events.
const subscribeTimeout = 5 * time.Second

type runOptions struct {
	Events     string
	Transcript string
	NoLog      bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full page flow against the relay",
		Long: `Run the full page flow: acquire a session, mount a terminal chat surface
and feed it widget action events.

Events are JSON objects, one after another, read from --events:
  {"type":"start_situation","itemId":"btn-1","payload":{"source":"cli"}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlow(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Events, "events", "-", "widget action events (- for stdin)")
	cmd.Flags().StringVar(&opts.Transcript, "transcript", "", "transcript HTML file for copy actions")
	cmd.Flags().BoolVar(&opts.NoLog, "no-log", false, "do not mirror actions to the relay")

	return cmd
}

type eventLine struct {
	Type    string         `json:"type"`
	ItemID  string         `json:"itemId"`
	Payload map[string]any `json:"payload"`
}

func runFlow(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	hc, err := root.httpClient()
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	log := root.logger()
	ids := root.identity(log)
	out := cmd.OutOrStdout()

	var sink actions.EventSink
	if !opts.NoLog {
		sink = actions.NewHTTPSink(root.Server, hc)
	}
	toaster := actions.NewToaster(0)
	copier := actions.NewCopier(
		fileTranscript{path: opts.Transcript, stdin: strings.NewReader("")},
		writerClipboard{w: out},
		toaster,
		log,
	)
	relay := actions.NewRelay(copier, sink, ids.GetOrCreate(), log)

	rt := newTerminalRuntime(out)
	flow := page.NewFlow(page.Config{
		Sessions: session.New(session.Config{BaseURL: root.Server, HTTPClient: hc}, ids, log),
		Loader:   widget.NewLoader(terminalHost{rt: rt}, log),
		Relay:    relay,
		Surface:  &terminalSurface{w: out},
	}, log)

	ctx := cmd.Context()
	res := flow.Run(ctx)
	if !res.Mounted {
		return errors.New(res.Message)
	}

	select {
	case <-rt.subscribed:
	case <-time.After(subscribeTimeout):
		return errors.New("chat surface did not accept action events")
	case <-ctx.Done():
		return ctx.Err()
	}

	in := cmd.InOrStdin()
	if opts.Events != "-" {
		f, err := os.Open(opts.Events)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	dec := json.NewDecoder(in)
	for {
		var ev eventLine
		if err := dec.Decode(&ev); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		rt.emit(ctx, widget.ActionEvent{Type: ev.Type, ItemID: ev.ItemID, Payload: ev.Payload})
		relay.Wait()
		if n, ok := toaster.Current(); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), n.Text)
		}
	}
	return nil
}

// terminalRuntime stands in for the hosted chat runtime.
type terminalRuntime struct {
	w io.Writer

	mu         sync.Mutex
	handler    widget.ActionHandler
	subscribed chan struct{}
}

func newTerminalRuntime(w io.Writer) *terminalRuntime {
	return &terminalRuntime{w: w, subscribed: make(chan struct{})}
}

func (r *terminalRuntime) Render(_ context.Context, mount, _ string) error {
	_, err := fmt.Fprintf(r.w, "chat surface ready (%s)\n", mount)
	return err
}

func (r *terminalRuntime) OnAction(h widget.ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	close(r.subscribed)
}

func (r *terminalRuntime) emit(ctx context.Context, ev widget.ActionEvent) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	if h != nil {
		h(ctx, ev)
	}
}

// terminalHost exposes the terminal runtime; there is no script to inject.
type terminalHost struct{ rt *terminalRuntime }

func (h terminalHost) Runtime() (widget.Runtime, bool) { return h.rt, true }

func (terminalHost) InjectScript(context.Context, string) error {
	return errors.New("no script runtime in a terminal")
}
