// Package cmd is the lppeer command line: a preview peer that talks to a running lpd from a terminal.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/uber/live-preview/src/lpd/controller/transport"
	"github.com/uber/live-preview/src/lpd/internal/serverinfofile"
	"go.uber.org/zap"
)

const (
	_relayKey   = "relay-url"
	_previewKey = "preview-address"
)

var (
	_info    = color.New(color.FgHiBlack)
	_ok      = color.New(color.Bold, color.FgGreen)
	_message = color.New(color.FgCyan)
	_warn    = color.New(color.Bold, color.FgYellow)
)

type options struct {
	relayURL string
	pageURL  string
	page     string
	infoFile string
	verbose  bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "lppeer",
	Short: "Join a live preview session from the terminal",
	Long: `lppeer connects to the relay hub of a running lpd as a preview peer.
Messages from the host are printed as they arrive and every line read from stdin is sent to the host.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := opts.resolve(afero.NewOsFs()); err != nil {
			return err
		}

		logger := zap.NewNop()
		if opts.verbose {
			var err error
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout(), logger.Sugar())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	home, _ := os.UserHomeDir()

	rootCmd.Flags().StringVar(&opts.relayURL, "relay", "", "Relay hub to connect to, read from the info file when empty")
	rootCmd.Flags().StringVar(&opts.pageURL, "url", "", "Page the peer reports as loaded")
	rootCmd.Flags().StringVar(&opts.page, "page", "/preview/index.html", "Page path used with the info file's preview address when --url is empty")
	rootCmd.Flags().StringVar(&opts.infoFile, "info-file", filepath.Join(home, ".lpd", "server-info.json"), "Server info file written by lpd")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log transport activity to stderr")
}

// resolve fills the relay and page urls missing from the flags using the daemon's info file.
func (o *options) resolve(fs afero.Fs) error {
	if o.relayURL != "" && o.pageURL != "" {
		return nil
	}

	fields, err := serverinfofile.Read(fs, o.infoFile)
	if err != nil {
		return fmt.Errorf("locating a running lpd: %w", err)
	}
	if o.relayURL == "" {
		o.relayURL = fields[_relayKey]
		if o.relayURL == "" {
			return fmt.Errorf("%s has no %q: lpd is not serving a relay hub", o.infoFile, _relayKey)
		}
	}
	if o.pageURL == "" {
		addr := fields[_previewKey]
		if addr == "" {
			return fmt.Errorf("%s has no %q", o.infoFile, _previewKey)
		}
		o.pageURL = "http://" + addr + o.page
	}
	return nil
}

// console serializes writes from the relay read goroutine and the input loop.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) printf(style *color.Color, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	style.Fprintf(c.w, format, args...)
}

// run connects a peer and forwards input lines until the input ends, the host shuts down or ctx is done.
func run(ctx context.Context, o options, in io.Reader, out io.Writer, logger *zap.SugaredLogger) error {
	c := &console{w: out}

	relay := transport.NewRelay(o.relayURL, logger)
	if err := relay.Dial(ctx); err != nil {
		return err
	}
	defer relay.Close()

	hostGone := make(chan struct{})
	var once sync.Once
	peer := transport.NewPeer(relay, transport.PeerCallbacks{
		OnConnect: func(clientID, url string) {
			c.printf(_ok, "connected as %s\n", clientID)
			c.printf(_info, "page %s\n", url)
		},
		OnMessage: func(message string) {
			c.printf(_message, "< %s\n", message)
		},
		OnClose: func() {
			once.Do(func() { close(hostGone) })
		},
	}, logger)

	if err := peer.Connect(ctx, o.pageURL); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return peer.Close(ctx)
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := peer.Send(ctx, line); err != nil {
				return err
			}
		case <-hostGone:
			c.printf(_warn, "host shut down\n")
			return peer.Close(ctx)
		case <-ctx.Done():
			return peer.Close(context.Background())
		}
	}
}
