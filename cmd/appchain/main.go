package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/citahub/appchain-go/pkg/appchain"
	"github.com/citahub/appchain-go/pkg/config"
	"github.com/citahub/appchain-go/pkg/journal"
	"github.com/citahub/appchain-go/pkg/log"
	"github.com/citahub/appchain-go/pkg/rpc"
)

const (
	flagConfig = "config"
	flagEnvDir = "env-dir"
	flagURL    = "url"
)

// metrics are registered once with the default prometheus registry.
var metrics = sync.OnceValue(rpc.NewMetrics)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "appchain",
		Short:        "AppChain JSON-RPC client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String(flagConfig, "", "YAML config file; the environment overrides it")
	root.PersistentFlags().String(flagEnvDir, ".", "directory holding the .env file")
	root.PersistentFlags().String(flagURL, "", "node URL, overrides APPCHAIN_NODE_URL")

	root.AddCommand(
		addressCmd(),
		signCmd(),
		unsignCmd(),
		blockNumberCmd(),
		metadataCmd(),
		balanceCmd(),
		sendCmd(),
		journalCmd(),
		benchCmd(),
		serveMetricsCmd(),
	)
	return root
}

// loadConfig reads the YAML file named by --config, or the .env file and the
// environment otherwise.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if url, _ := cmd.Flags().GetString(flagURL); url != "" {
		if err := os.Setenv("APPCHAIN_NODE_URL", url); err != nil {
			return nil, err
		}
	}

	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		return config.LoadFile(path)
	}
	dir, _ := cmd.Flags().GetString(flagEnvDir)
	return config.Load(dir)
}

// session is a configured client plus what must be released with it.
type session struct {
	cfg     *config.Config
	lg      log.Logger
	client  *appchain.Client
	journal *journal.Journal
	closers []io.Closer
}

func openSession(cmd *cobra.Command, withJournal bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	lg := log.NewZapLogger(cfg.Log).WithName("appchain")

	transport, err := cfg.NewTransport()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, lg: lg}
	if c, ok := transport.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	d := rpc.NewDispatcher(transport, cfg.DispatcherConfig(),
		rpc.WithLogger(lg),
		rpc.WithMetrics(metrics()),
	)
	opts := []appchain.Option{appchain.WithLogger(lg)}

	if withJournal && cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = j
		s.closers = append(s.closers, j)
		opts = append(opts, appchain.WithJournal(j))
	}

	s.client = appchain.New(d, opts...)
	return s, nil
}

func (s *session) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.lg.Warn("failed to close client", "error", err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.lg.Warn("failed to close resource", "error", err)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
