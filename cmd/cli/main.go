// Command dojo is a CLI client for the Dojo relay: it acquires sessions,
// replays widget actions and manages local client state.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/client/device"
	"github.com/and161185/dojo-relay/internal/client/session"
	"github.com/and161185/dojo-relay/internal/client/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Server   string
	CACert   string
	Insecure bool
	StateDir string
	Verbose  bool
}

func (o *rootOptions) store() *storage.File {
	dir := o.StateDir
	if dir == "" {
		dir = storage.DefaultDir()
	}
	return storage.NewFile(dir)
}

func (o *rootOptions) logger() *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (o *rootOptions) httpClient() (*http.Client, error) {
	return session.NewHTTPClient(o.CACert, o.Insecure)
}

func (o *rootOptions) identity(log *zap.Logger) *device.Identity {
	return device.NewIdentity(o.store(), log)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dojo",
		Short:         "Dojo relay client",
		Long:          "Acquire ChatKit sessions through the Dojo relay and replay widget actions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "http://localhost:8080", "relay base URL")
	cmd.PersistentFlags().StringVar(&opts.CACert, "cacert", "", "CA cert (PEM)")
	cmd.PersistentFlags().BoolVar(&opts.Insecure, "insecure", false, "skip cert verify (dev)")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", "", "client state directory (default $XDG_CONFIG_HOME/dojo)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newDeviceIDCommand(opts))
	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newActionCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newActionsCommand())
	cmd.AddCommand(newSizeCommand(opts))

	return cmd
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readAll(p string, stdin io.Reader) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

// main runs the root command.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
