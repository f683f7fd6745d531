// Package config loads scanner configuration from flags, environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"solana-arb-engine/internal/cost"
	"solana-arb-engine/internal/decoder"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/history"
	"solana-arb-engine/internal/risk"
	"solana-arb-engine/internal/search"
	"solana-arb-engine/internal/swap"
)

// EnvPrefix prefixes every environment variable, e.g. ARB_RPC_ENDPOINT.
const EnvPrefix = "ARB"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCEndpoint      string
	WSEndpoint       string
	PostgresDSN      string
	PostgresMaxConns int32
	ClickhouseDSN    string
	UseMemory        bool
	LogLevel         string
	MetricsAddr      string
	Out              string

	Pools               []domain.Address
	Discover            bool
	MaxPoolsPerProtocol int
	ProgramAliases      map[domain.Address]domain.Protocol

	ScanInterval time.Duration
	PoolTTL      time.Duration
	PriceTTL     time.Duration
	Prices       []string // mint=usd pairs

	Decoder decoder.Config
	Swap    swap.Config
	Cost    cost.Config
	Search  search.Config
	Risk    risk.Config
	History history.Config
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	dec := decoder.DefaultConfig()
	rk := risk.DefaultConfig()
	dec.MinLiquidity = rk.MinLiquidity

	return Config{
		RPCEndpoint:         "https://api.mainnet-beta.solana.com",
		WSEndpoint:          "wss://api.mainnet-beta.solana.com",
		PostgresMaxConns:    4,
		UseMemory:           true,
		LogLevel:            "info",
		MetricsAddr:         ":9090",
		Out:                 "-",
		MaxPoolsPerProtocol: 200,
		ScanInterval:        5 * time.Second,
		PoolTTL:             30 * time.Second,
		PriceTTL:            5 * time.Minute,
		Decoder:             dec,
		Swap:                swap.DefaultConfig(),
		Cost:                cost.DefaultConfig(),
		Search:              search.DefaultConfig(),
		Risk:                rk,
		History:             history.DefaultConfig(),
	}
}

// AddFlags registers every option on fs with its default value.
func AddFlags(fs *pflag.FlagSet) {
	d := Defaults()

	fs.String("rpc-endpoint", d.RPCEndpoint, "Solana JSON-RPC HTTP endpoint")
	fs.String("ws-endpoint", d.WSEndpoint, "Solana websocket endpoint for account subscriptions")
	fs.String("postgres-dsn", "", "Postgres DSN of the execution outcome store")
	fs.Int32("postgres-max-conns", d.PostgresMaxConns, "Connection cap of the Postgres pool")
	fs.String("clickhouse-dsn", "", "ClickHouse DSN of the reserve snapshot store")
	fs.Bool("use-memory", d.UseMemory, "Keep outcomes and snapshots in memory instead of the databases")
	fs.String("log-level", d.LogLevel, "Log level: debug|info|warn|error")
	fs.String("metrics-addr", d.MetricsAddr, "Listen address of the /metrics endpoint")
	fs.String("out", d.Out, "JSON lines output path for accepted opportunities (- for stdout)")

	fs.StringSlice("pools", nil, "Pool account addresses")
	fs.Bool("discover", false, "Discover pools with getProgramAccounts")
	fs.Int("max-pools-per-protocol", d.MaxPoolsPerProtocol, "Discovery cap per protocol")
	fs.StringSlice("program-aliases", nil, "program=protocol pairs decoding forks with an existing layout")
	fs.StringSlice("base-mints", nil, "Allowed route base mints (empty allows every mint; non-WSOL bases need --prices for WSOL and the mint)")

	fs.Duration("scan-interval", d.ScanInterval, "Interval between search passes")
	fs.Duration("pool-ttl", d.PoolTTL, "Age after which a cached pool is stale")
	fs.Duration("price-ttl", d.PriceTTL, "Age after which a USD price is stale")
	fs.StringSlice("prices", nil, "Static USD prices as mint=usd pairs")

	fs.Uint64("min-liquidity", d.Risk.MinLiquidity, "Floor for both reserves of a pool")
	fs.Uint64("min-token-balance", d.Decoder.MinTokenBalance, "Floor for a single vault balance")
	fs.Float64("ratio-band-min", d.Decoder.RatioBandMin, "Lower bound of reserve_a / reserve_b")
	fs.Float64("ratio-band-max", d.Decoder.RatioBandMax, "Upper bound of reserve_a / reserve_b")
	fs.Bool("require-pda-vaults", d.Decoder.RequireProgramDerivedVaults, "Reject vaults owned by an on-curve authority")

	fs.Float64("max-trade-impact", d.Risk.MaxTradeImpact, "Risk gate ceiling on leg_input / reserve_in")
	fs.Float64("calc-max-trade-impact", d.Swap.MaxTradeImpact, "Swap calculator hard cap on amount_in / reserve_in")
	fs.Int64("min-profit-bps", d.Risk.MinProfitBps, "Minimum profit in basis points")
	fs.Int64("max-profit-bps", d.Risk.MaxProfitBps, "Maximum plausible profit in basis points")
	fs.StringSlice("ladder", formatUints(d.Search.Ladder), "Probe amounts in lamports, converted to each route base mint")
	fs.StringSlice("ladder-fractions", nil, "Probe amounts as fractions of the first leg's reserve_in")
	fs.Bool("triangular", d.Search.Triangular, "Also search three-leg cycles")
	fs.Int("concurrency", d.Search.Concurrency, "Parallel route evaluations")

	fs.Uint64("base-fee", d.Cost.BaseFee, "Base network fee in lamports")
	fs.Uint64("priority-fee", d.Cost.PriorityFee, "Priority fee in lamports")
	fs.Uint64("compute-units", d.Cost.ComputeUnits, "Compute units of one route transaction")
	fs.Uint64("compute-unit-price", d.Cost.ComputeUnitPrice, "Compute unit price in micro-lamports")
	fs.Float64("impact-cost-factor", d.Cost.ImpactCostFactor, "Share of the trade-size ratio charged as slippage")
	fs.StringSlice("discount-tables", nil, "Discount factors per protocol, e.g. raydium:0.9995/0.997/0.992/0.985")
	fs.StringSlice("discount-tier-bounds", formatFloats(swap.DefaultTierBounds), "Upper bounds of the discount tiers on amount_in / reserve_in")

	fs.Duration("volatility-window", d.History.VolatilityWindow, "Reserve snapshot lookback for volatility")
	fs.Float64("volatility-weight", d.History.VolatilityWeight, "Weight of volatility in the discount")
	fs.Int64("history-min-samples", d.History.MinSamples, "Attempts before the success factor departs from 1")
	fs.Duration("history-lookback", d.History.OutcomeLookback, "Execution outcome lookback (0 reads all)")
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v, Defaults())

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("scanner")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("rpc-endpoint", d.RPCEndpoint)
	v.SetDefault("ws-endpoint", d.WSEndpoint)
	v.SetDefault("postgres-max-conns", d.PostgresMaxConns)
	v.SetDefault("use-memory", d.UseMemory)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("metrics-addr", d.MetricsAddr)
	v.SetDefault("out", d.Out)
	v.SetDefault("max-pools-per-protocol", d.MaxPoolsPerProtocol)
	v.SetDefault("scan-interval", d.ScanInterval)
	v.SetDefault("pool-ttl", d.PoolTTL)
	v.SetDefault("price-ttl", d.PriceTTL)

	v.SetDefault("min-liquidity", d.Risk.MinLiquidity)
	v.SetDefault("min-token-balance", d.Decoder.MinTokenBalance)
	v.SetDefault("ratio-band-min", d.Decoder.RatioBandMin)
	v.SetDefault("ratio-band-max", d.Decoder.RatioBandMax)
	v.SetDefault("require-pda-vaults", d.Decoder.RequireProgramDerivedVaults)

	v.SetDefault("max-trade-impact", d.Risk.MaxTradeImpact)
	v.SetDefault("calc-max-trade-impact", d.Swap.MaxTradeImpact)
	v.SetDefault("min-profit-bps", d.Risk.MinProfitBps)
	v.SetDefault("max-profit-bps", d.Risk.MaxProfitBps)
	v.SetDefault("ladder", formatUints(d.Search.Ladder))
	v.SetDefault("triangular", d.Search.Triangular)
	v.SetDefault("concurrency", d.Search.Concurrency)

	v.SetDefault("base-fee", d.Cost.BaseFee)
	v.SetDefault("priority-fee", d.Cost.PriorityFee)
	v.SetDefault("compute-units", d.Cost.ComputeUnits)
	v.SetDefault("compute-unit-price", d.Cost.ComputeUnitPrice)
	v.SetDefault("impact-cost-factor", d.Cost.ImpactCostFactor)
	v.SetDefault("discount-tier-bounds", formatFloats(swap.DefaultTierBounds))

	v.SetDefault("volatility-window", d.History.VolatilityWindow)
	v.SetDefault("volatility-weight", d.History.VolatilityWeight)
	v.SetDefault("history-min-samples", d.History.MinSamples)
	v.SetDefault("history-lookback", d.History.OutcomeLookback)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Defaults()

	cfg.RPCEndpoint = v.GetString("rpc-endpoint")
	cfg.WSEndpoint = v.GetString("ws-endpoint")
	cfg.PostgresDSN = v.GetString("postgres-dsn")
	cfg.PostgresMaxConns = v.GetInt32("postgres-max-conns")
	cfg.ClickhouseDSN = v.GetString("clickhouse-dsn")
	cfg.UseMemory = v.GetBool("use-memory")
	cfg.LogLevel = strings.ToLower(v.GetString("log-level"))
	cfg.MetricsAddr = v.GetString("metrics-addr")
	cfg.Out = v.GetString("out")
	cfg.Discover = v.GetBool("discover")
	cfg.MaxPoolsPerProtocol = v.GetInt("max-pools-per-protocol")
	cfg.ScanInterval = v.GetDuration("scan-interval")
	cfg.PoolTTL = v.GetDuration("pool-ttl")
	cfg.PriceTTL = v.GetDuration("price-ttl")
	cfg.Prices = getStringSlice(v, "prices")

	var err error
	if cfg.Pools, err = domain.ParseAddresses(getStringSlice(v, "pools")); err != nil {
		return Config{}, fmt.Errorf("pools: %w", err)
	}
	if cfg.ProgramAliases, err = parseAliases(getStringSlice(v, "program-aliases")); err != nil {
		return Config{}, err
	}

	minLiquidity := v.GetUint64("min-liquidity")
	cfg.Decoder.MinLiquidity = minLiquidity
	cfg.Decoder.MinTokenBalance = v.GetUint64("min-token-balance")
	cfg.Decoder.RatioBandMin = v.GetFloat64("ratio-band-min")
	cfg.Decoder.RatioBandMax = v.GetFloat64("ratio-band-max")
	cfg.Decoder.RequireProgramDerivedVaults = v.GetBool("require-pda-vaults")

	cfg.Risk.MinLiquidity = minLiquidity
	cfg.Risk.MaxTradeImpact = v.GetFloat64("max-trade-impact")
	cfg.Risk.MinProfitBps = v.GetInt64("min-profit-bps")
	cfg.Risk.MaxProfitBps = v.GetInt64("max-profit-bps")

	cfg.Swap.MaxTradeImpact = v.GetFloat64("calc-max-trade-impact")
	bounds, err := parseFloats(getStringSlice(v, "discount-tier-bounds"))
	if err != nil {
		return Config{}, fmt.Errorf("discount-tier-bounds: %w", err)
	}
	if cfg.Swap.Discounts, err = parseDiscountTables(getStringSlice(v, "discount-tables"), bounds); err != nil {
		return Config{}, err
	}

	if cfg.Search.Ladder, err = parseUints(getStringSlice(v, "ladder")); err != nil {
		return Config{}, fmt.Errorf("ladder: %w", err)
	}
	if cfg.Search.LadderFractions, err = parseFloats(getStringSlice(v, "ladder-fractions")); err != nil {
		return Config{}, fmt.Errorf("ladder-fractions: %w", err)
	}
	if cfg.Search.BaseMints, err = domain.ParseAddresses(getStringSlice(v, "base-mints")); err != nil {
		return Config{}, fmt.Errorf("base-mints: %w", err)
	}
	cfg.Search.Triangular = v.GetBool("triangular")
	cfg.Search.Concurrency = v.GetInt("concurrency")

	cfg.Cost.BaseFee = v.GetUint64("base-fee")
	cfg.Cost.PriorityFee = v.GetUint64("priority-fee")
	cfg.Cost.ComputeUnits = v.GetUint64("compute-units")
	cfg.Cost.ComputeUnitPrice = v.GetUint64("compute-unit-price")
	cfg.Cost.ImpactCostFactor = v.GetFloat64("impact-cost-factor")

	cfg.History.VolatilityWindow = v.GetDuration("volatility-window")
	cfg.History.VolatilityWeight = v.GetFloat64("volatility-weight")
	cfg.History.MinSamples = v.GetInt64("history-min-samples")
	cfg.History.OutcomeLookback = v.GetDuration("history-lookback")

	return cfg, nil
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log-level %q must be debug|info|warn|error", c.LogLevel))
	}
	if c.RPCEndpoint == "" {
		errs = append(errs, errors.New("rpc-endpoint is required"))
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		errs = append(errs, errors.New("postgres-dsn and clickhouse-dsn are required unless use-memory is set"))
	}
	if c.PostgresMaxConns <= 0 {
		errs = append(errs, errors.New("postgres-max-conns must be positive"))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("scan-interval %s must be positive", c.ScanInterval))
	}
	if c.PoolTTL <= 0 {
		errs = append(errs, fmt.Errorf("pool-ttl %s must be positive", c.PoolTTL))
	}
	if c.PriceTTL <= 0 {
		errs = append(errs, fmt.Errorf("price-ttl %s must be positive", c.PriceTTL))
	}
	if c.MaxPoolsPerProtocol < 0 {
		errs = append(errs, fmt.Errorf("max-pools-per-protocol %d must not be negative", c.MaxPoolsPerProtocol))
	}
	if c.Search.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency %d must be positive", c.Search.Concurrency))
	}
	if c.Swap.MaxTradeImpact <= 0 || c.Swap.MaxTradeImpact >= 1 {
		errs = append(errs, fmt.Errorf("calc-max-trade-impact %g outside (0, 1)", c.Swap.MaxTradeImpact))
	}
	for _, p := range domain.Protocols {
		t, ok := c.Swap.Discounts[p]
		if !ok {
			errs = append(errs, fmt.Errorf("discount-tables: missing %s", p))
			continue
		}
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("discount-tables: %s: %w", p, err))
		}
	}

	for _, err := range []error{
		c.Decoder.Validate(),
		c.Cost.Validate(),
		c.Search.Validate(),
		c.Risk.Validate(),
		c.History.Validate(),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func parseAliases(pairs []string) (map[domain.Address]domain.Protocol, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[domain.Address]domain.Protocol, len(pairs))
	for _, pair := range pairs {
		program, name, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("program-aliases: %q is not program=protocol", pair)
		}
		addr, err := domain.ParseAddress(strings.TrimSpace(program))
		if err != nil {
			return nil, fmt.Errorf("program-aliases: %q: %w", pair, err)
		}
		p, err := domain.ParseProtocol(name)
		if err != nil {
			return nil, fmt.Errorf("program-aliases: %w", err)
		}
		out[addr] = p
	}
	return out, nil
}

// parseDiscountTables overrides the default tables with entries of the form
// protocol:f1/f2/.../fn, one factor per tier.
func parseDiscountTables(entries []string, bounds []float64) (map[domain.Protocol]swap.DiscountTable, error) {
	if len(bounds) == 0 {
		bounds = swap.DefaultTierBounds
	}

	defaults := swap.DefaultDiscountTables()
	tables := make(map[domain.Protocol]swap.DiscountTable, len(defaults))
	for p, t := range defaults {
		factors := make([]float64, len(t))
		for i, tier := range t {
			factors[i] = tier.Factor
		}
		if len(factors) != len(bounds)+1 {
			// custom bounds need explicit factors for every protocol
			continue
		}
		nt, err := swap.NewDiscountTable(bounds, factors)
		if err != nil {
			return nil, fmt.Errorf("discount-tier-bounds: %w", err)
		}
		tables[p] = nt
	}

	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("discount-tables: %q is not protocol:f1/f2/...", entry)
		}
		p, err := domain.ParseProtocol(name)
		if err != nil {
			return nil, fmt.Errorf("discount-tables: %w", err)
		}
		factors, err := parseFloats(strings.Split(list, "/"))
		if err != nil {
			return nil, fmt.Errorf("discount-tables: %s: %w", p, err)
		}
		if len(factors) != len(bounds)+1 {
			return nil, fmt.Errorf("discount-tables: %s has %d factors, want %d", p, len(factors), len(bounds)+1)
		}
		t, err := swap.NewDiscountTable(bounds, factors)
		if err != nil {
			return nil, fmt.Errorf("discount-tables: %s: %w", p, err)
		}
		tables[p] = t
	}
	return tables, nil
}

func parseUints(items []string) ([]uint64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]uint64, 0, len(items))
	for _, s := range items {
		n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloats(items []string) ([]float64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]float64, 0, len(items))
	for _, s := range items {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		out = append(out, f)
	}
	return out, nil
}

func formatUints(values []uint64) []string {
	out := make([]string, len(values))
	for i, n := range values {
		out[i] = strconv.FormatUint(n, 10)
	}
	return out
}

func formatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, f := range values {
		out[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
