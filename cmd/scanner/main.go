// Command scanner watches Solana AMM pools and reports cross-pool arbitrage
// opportunities.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-arb-engine/internal/config"
	"solana-arb-engine/internal/export"
	"solana-arb-engine/internal/observability"
	"solana-arb-engine/internal/solana"
)

func main() {
	root := &cobra.Command{
		Use:          "scanner",
		Short:        "Solana DEX arbitrage scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path (default ./scanner.yaml when present)")
	config.AddFlags(root.PersistentFlags())

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Scan continuously and export accepted opportunities",
		RunE:  runScanner,
	}
	root.AddCommand(runCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single search pass",
		RunE:  runScan,
	}
	scanCmd.Flags().Bool("explain", false, "print the risk checklist of every evaluated opportunity")
	root.AddCommand(scanCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode <pool>...",
		Short: "Decode pool accounts and print their state",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDecode,
	}
	root.AddCommand(decodeCmd)

	classifyCmd := &cobra.Command{
		Use:   "classify <account>...",
		Short: "Guess the protocol of accounts owned by unregistered programs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}
	root.AddCommand(classifyCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres and ClickHouse schema",
		RunE:  runMigrate,
	}
	root.AddCommand(migrateCmd)

	outcomeCmd := &cobra.Command{
		Use:   "outcome",
		Short: "Record the execution outcome of an exported opportunity",
		RunE:  runOutcome,
	}
	outcomeCmd.Flags().String("opportunity-id", "", "exported opportunity id")
	outcomeCmd.Flags().String("route-key", "", "exported route key")
	outcomeCmd.Flags().Bool("success", false, "whether the transaction landed profitably")
	outcomeCmd.Flags().Int64("realized-profit", 0, "realized profit in base mint units")
	outcomeCmd.Flags().String("signature", "", "transaction signature")
	outcomeCmd.Flags().String("error", "", "executor error for failures")
	outcomeCmd.Flags().Int64("executed-at", 0, "execution time in unix ms (default now)")
	root.AddCommand(outcomeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runScanner(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	writer, closeOut, err := export.Open(cfg.Out, export.WithValuer(a.valuer.ValueUSD))
	if err != nil {
		return err
	}
	defer closeOut()

	var watcher solana.WSClient
	if cfg.WSEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
		if err != nil {
			return err
		}
		defer ws.Close()
		watcher = ws
	}

	s, err := a.scanner(st, writer, watcher)
	if err != nil {
		return err
	}

	srv := startHTTPServer(cfg.MetricsAddr, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err = s.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scanner stopped", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete", zap.Int("exported", writer.Written()))
	return nil
}

// startHTTPServer serves /health and /metrics.
func startHTTPServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
