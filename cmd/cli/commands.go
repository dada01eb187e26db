package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/dojo-relay/internal/client/actions"
	"github.com/and161185/dojo-relay/internal/client/prefs"
	"github.com/and161185/dojo-relay/internal/client/session"
	"github.com/and161185/dojo-relay/internal/model"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dojo %s (%s)\n", version, buildDate)
		},
	}
}

func newDeviceIDCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device-id",
		Short: "Print the device identifier, creating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := opts.identity(opts.logger()).GetOrCreate()
			if id == "" {
				return errors.New(session.MsgNoDeviceID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

type sessionOutput struct {
	State     string     `json:"state"`
	Token     string     `json:"session_token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

func newSessionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Acquire a ChatKit session credential for this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hc, err := opts.httpClient()
			if err != nil {
				return fmt.Errorf("tls: %w", err)
			}
			log := opts.logger()
			c := session.New(session.Config{BaseURL: opts.Server, HTTPClient: hc}, opts.identity(log), log)
			snap := c.Start(cmd.Context())

			out := sessionOutput{State: snap.State.String(), Token: snap.Credential.Token, Message: snap.Message}
			if !snap.Credential.ExpiresAt.IsZero() {
				out.ExpiresAt = &snap.Credential.ExpiresAt
			}
			printJSON(cmd.OutOrStdout(), out)
			if snap.State != session.StateReady {
				return errors.New(snap.Message)
			}
			return nil
		},
	}
}

type actionOptions struct {
	ItemID     string
	Payload    string
	Transcript string
	NoLog      bool
}

func newActionCommand(root *rootOptions) *cobra.Command {
	opts := &actionOptions{}

	cmd := &cobra.Command{
		Use:   "action <type>",
		Short: "Replay a widget action",
		Long: `Replay a widget action as if the chat surface emitted it.

Message actions print the text that would be submitted. Copy actions read the
transcript markup from --transcript and print the copied text. The action is
mirrored to the relay's action log unless --no-log is set.

Example:
  dojo action copy_exchange_markdown --transcript thread.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ItemID, "item", "cli", "item identifier")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "action payload as a JSON object")
	cmd.Flags().StringVar(&opts.Transcript, "transcript", "-", "transcript HTML file for copy actions (- for stdin)")
	cmd.Flags().BoolVar(&opts.NoLog, "no-log", false, "do not mirror to the relay")

	return cmd
}

func runAction(cmd *cobra.Command, root *rootOptions, opts *actionOptions, actionType string) error {
	var payload map[string]any
	if opts.Payload != "" {
		if err := json.Unmarshal([]byte(opts.Payload), &payload); err != nil {
			return fmt.Errorf("invalid --payload JSON: %w", err)
		}
	}

	log := root.logger()
	var sink actions.EventSink
	if !opts.NoLog {
		hc, err := root.httpClient()
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		sink = actions.NewHTTPSink(root.Server, hc)
	}

	out := cmd.OutOrStdout()
	toaster := actions.NewToaster(0)
	copier := actions.NewCopier(
		fileTranscript{path: opts.Transcript, stdin: cmd.InOrStdin()},
		writerClipboard{w: out},
		toaster,
		log,
	)
	relay := actions.NewRelay(copier, sink, root.identity(log).GetOrCreate(), log)
	send := actions.SendMessage(&terminalSurface{w: out}, log)

	relay.Handle(cmd.Context(), actionType, opts.ItemID, send, payload)
	relay.Wait()
	if n, ok := toaster.Current(); ok {
		fmt.Fprintln(cmd.ErrOrStderr(), n.Text)
	}

	if _, ok := actions.Lookup(actionType); !ok {
		return fmt.Errorf("unknown action %q", actionType)
	}
	return nil
}

func newActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List known widget actions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, t := range actions.Known() {
				e, _ := actions.Lookup(string(t))
				if e.Kind == actions.KindMessage {
					fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", t, e.Message)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%-24s (copy)\n", t)
				}
			}
		},
	}
}

func newSizeCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size",
		Short: "Show or change the chat container size",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), prefs.New(root.store(), root.logger()).Size())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <size>",
		Short: "Set the container size (mobile, tablet, desktop, fullscreen)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := prefs.New(root.store(), root.logger())
			if err := p.Set(model.ContainerSize(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Size())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cycle",
		Short: "Switch to the next container size",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), prefs.New(root.store(), root.logger()).Cycle())
		},
	})
	return cmd
}

// ---- terminal adapters ----

// terminalSurface prints submitted messages.
type terminalSurface struct {
	w     io.Writer
	input terminalInput
}

func (s *terminalSurface) ActiveInput() (actions.Input, bool) {
	s.input.w = s.w
	return &s.input, true
}

type terminalInput struct {
	w     io.Writer
	value string
}

func (i *terminalInput) SetValue(v string) { i.value = v }

func (i *terminalInput) Dispatch(ev actions.InputEvent) {
	if ev.Type == "keydown" && ev.Key == "Enter" {
		fmt.Fprintln(i.w, i.value)
	}
}

type fileTranscript struct {
	path  string
	stdin io.Reader
}

func (f fileTranscript) HTML(context.Context) (string, error) {
	b, err := readAll(f.path, f.stdin)
	return string(b), err
}

type writerClipboard struct{ w io.Writer }

func (c writerClipboard) WriteText(_ context.Context, text string) error {
	_, err := fmt.Fprintln(c.w, text)
	return err
}
