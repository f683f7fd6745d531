package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"solana-arb-engine/internal/decoder"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/export"
	"solana-arb-engine/internal/risk"
	"solana-arb-engine/internal/scanner"
	"solana-arb-engine/internal/storage/migrations"
	pgstore "solana-arb-engine/internal/storage/postgres"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	explain, _ := cmd.Flags().GetBool("explain")

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

	s, err := a.scanner(st, writer, nil)
	if err != nil {
		return err
	}
	if cfg.Discover {
		if _, err := s.Discover(ctx); err != nil {
			logger.Warn("pool discovery incomplete", zap.Error(err))
		}
	}

	pass, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}

	if explain {
		w := cmd.ErrOrStderr()
		explainAll(w, pass.Result.Accepted, pass.Result.Verdicts)
		explainAll(w, pass.Result.Rejected, pass.Result.Verdicts)
	}
	return nil
}

func explainAll(w io.Writer, opps []*domain.Opportunity, verdicts map[string]*risk.Verdict) {
	for _, o := range opps {
		v, ok := verdicts[o.ID]
		if !ok {
			continue
		}
		fmt.Fprintln(w, risk.RenderMarkdown(o, v))
	}
}

// poolView is the printed form of a decoded pool.
type poolView struct {
	Address       string  `json:"address"`
	Protocol      string  `json:"protocol"`
	TokenAMint    string  `json:"token_a_mint"`
	TokenBMint    string  `json:"token_b_mint"`
	TokenAVault   string  `json:"token_a_vault"`
	TokenBVault   string  `json:"token_b_vault"`
	TokenAReserve uint64  `json:"token_a_reserve"`
	TokenBReserve uint64  `json:"token_b_reserve"`
	FeeBps        uint64  `json:"fee_bps"`
	Price         float64 `json:"price"`
	Slot          uint64  `json:"slot"`
}

type decodeFailure struct {
	Address string `json:"address"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := domain.ParseAddresses(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, addr := range addrs {
		var line any
		p, err := a.decodePool(ctx, addr)
		if err != nil {
			failed++
			kind, _ := decoder.KindOf(err)
			line = decodeFailure{Address: addr.String(), Kind: kind.String(), Error: err.Error()}
		} else {
			line = poolView{
				Address:       p.Address.String(),
				Protocol:      p.Protocol.String(),
				TokenAMint:    p.TokenAMint.String(),
				TokenBMint:    p.TokenBMint.String(),
				TokenAVault:   p.TokenAVault.String(),
				TokenBVault:   p.TokenBVault.String(),
				TokenAReserve: p.TokenAReserve,
				TokenBReserve: p.TokenBReserve,
				FeeBps:        p.FeeBps,
				Price:         p.Price(),
				Slot:          p.Slot,
			}
		}
		b, err := sonnet.Marshal(line)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pools failed to decode", failed, len(addrs))
	}
	return nil
}

func (a *app) decodePool(ctx context.Context, addr domain.Address) (*domain.PoolState, error) {
	acct, err := a.source.FetchAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	return a.decoder.Decode(ctx, *acct)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := domain.ParseAddresses(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	classifier := decoder.NewClassifier(a.registry)

	out := cmd.OutOrStdout()
	for _, addr := range addrs {
		acct, err := a.source.FetchAccount(ctx, addr)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", addr, err)
			continue
		}
		c := classifier.Classify(*acct)
		fmt.Fprintf(out, "%s owner=%s len=%d registered=%t pool_pattern=%t keys=%d amounts=%d\n",
			c.Address, c.Program, c.DataLength, c.Registered, c.LooksLikePool, c.KeyWindows, c.AmountFields)
		for _, cand := range c.Candidates {
			status := "layout ok"
			if cand.ExtractErr != nil {
				status = cand.ExtractErr.Error()
			}
			fmt.Fprintf(out, "  %-8s %s (%s)\n", cand.Protocol, cand.Reason, status)
		}
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
		return errors.New("migrate requires --postgres-dsn and --clickhouse-dsn")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN,
		pgstore.WithMaxConns(1),
		pgstore.WithApplicationName("solana-arb-engine-migrate"))
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		return err
	}
	logger.Info("postgres migrations applied", zap.Strings("files", applied))

	conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("clickhouse migrations applied", zap.Strings("files", applied))
	return nil
}

func runOutcome(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.UseMemory {
		return errors.New("outcome needs the postgres store; set --use-memory=false")
	}

	flags := cmd.Flags()
	o := &domain.ExecutionOutcome{}
	o.OpportunityID, _ = flags.GetString("opportunity-id")
	o.RouteKey, _ = flags.GetString("route-key")
	o.Success, _ = flags.GetBool("success")
	o.RealizedProfit, _ = flags.GetInt64("realized-profit")
	o.Signature, _ = flags.GetString("signature")
	o.Error, _ = flags.GetString("error")
	o.ExecutedAt, _ = flags.GetInt64("executed-at")
	if o.ExecutedAt == 0 {
		o.ExecutedAt = time.Now().UnixMilli()
	}
	if err := scanner.ValidateOutcome(o); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pgstore.NewOutcomeStore(pool).Insert(ctx, o); err != nil {
		return err
	}
	logger.Info("outcome recorded",
		zap.String("opportunity_id", o.OpportunityID),
		zap.String("route_key", o.RouteKey),
		zap.Bool("success", o.Success))
	return nil
}
