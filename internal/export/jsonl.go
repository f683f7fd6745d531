// Package export hands accepted opportunities to an external executor as
// JSON lines.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sugawarayuuta/sonnet"

	"solana-arb-engine/internal/domain"
)

// ErrNotAccepted is returned when a non-accepted opportunity is submitted.
var ErrNotAccepted = errors.New("export: opportunity is not accepted")

// Valuer converts an amount of mint to USD. ok is false when no fresh price
// or decimals are known.
type Valuer func(mint domain.Address, amount int64) (usd decimal.Decimal, ok bool)

// LegRecord is one leg of an exported route.
type LegRecord struct {
	Pool        string `json:"pool"`
	Protocol    string `json:"protocol"`
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	InputLabel  string `json:"input_label"`
	OutputLabel string `json:"output_label"`
	AmountOut   uint64 `json:"amount_out"`
	FeeBps      uint64 `json:"fee_bps"`
}

// Record is the exported form of one opportunity.
type Record struct {
	ID                 string      `json:"id"`
	RouteKey           string      `json:"route_key"`
	Route              string      `json:"route"`
	Legs               []LegRecord `json:"legs"`
	BaseMint           string      `json:"base_mint"`
	AmountIn           uint64      `json:"amount_in"`
	ExpectedAmountOut  uint64      `json:"expected_amount_out"`
	NetworkFee         uint64      `json:"network_fee"`
	NetworkFeeLamports uint64      `json:"network_fee_lamports"`
	TradingFees        uint64      `json:"trading_fees"`
	PriceImpact        uint64      `json:"price_impact"`
	NetProfit          int64       `json:"net_profit"`
	NetProfitUSD       *string     `json:"net_profit_usd,omitempty"`
	ProfitBps          int64       `json:"profit_bps"`
	SuccessFactor      float64     `json:"success_factor"`
	VolatilityDiscount float64     `json:"volatility_discount"`
	RiskScore          float64     `json:"risk_score"`
	State              string      `json:"state"`
	DiscoveredAt       int64       `json:"discovered_at"`
}

// NewRecord converts an opportunity. valuer may be nil.
func NewRecord(o *domain.Opportunity, valuer Valuer) Record {
	r := Record{
		ID:                 o.ID,
		RouteKey:           o.RouteKey,
		Route:              o.Route.String(),
		BaseMint:           o.Route.BaseMint().String(),
		AmountIn:           o.AmountIn,
		ExpectedAmountOut:  o.ExpectedAmountOut,
		NetworkFee:         o.Costs.NetworkFee,
		NetworkFeeLamports: o.Costs.NetworkLamports,
		TradingFees:        o.Costs.TradingFees,
		PriceImpact:        o.Costs.PriceImpact,
		NetProfit:          o.NetProfit,
		ProfitBps:          o.ProfitBps,
		SuccessFactor:      o.SuccessFactor,
		VolatilityDiscount: o.VolatilityDiscount,
		RiskScore:          o.RiskScore,
		State:              o.State.String(),
		DiscoveredAt:       o.DiscoveredAt,
	}

	for i, leg := range o.Route.Legs() {
		lr := LegRecord{
			Pool:        leg.Pool.Address.String(),
			Protocol:    leg.Pool.Protocol.String(),
			InputMint:   leg.InputMint.String(),
			OutputMint:  leg.OutputMint.String(),
			InputLabel:  domain.MintLabel(leg.InputMint),
			OutputLabel: domain.MintLabel(leg.OutputMint),
			FeeBps:      leg.Pool.FeeBps,
		}
		if i < len(o.LegOutputs) {
			lr.AmountOut = o.LegOutputs[i]
		}
		r.Legs = append(r.Legs, lr)
	}

	if valuer != nil {
		if usd, ok := valuer(o.Route.BaseMint(), o.NetProfit); ok {
			s := usd.StringFixed(6)
			r.NetProfitUSD = &s
		}
	}
	return r
}

// Writer writes accepted opportunities as JSON lines. It is safe for
// concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	valuer  Valuer
	written int
}

// Option configures a Writer.
type Option func(*Writer)

// WithValuer adds USD valuation of net profit to every record.
func WithValuer(v Valuer) Option {
	return func(w *Writer) {
		w.valuer = v
	}
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	wr := &Writer{w: w}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// Open opens path for appending; "-" or "" writes to stdout. The returned
// close function is a no-op for stdout.
func Open(path string, opts ...Option) (*Writer, func() error, error) {
	if path == "" || path == "-" {
		return NewWriter(os.Stdout, opts...), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open export file: %w", err)
	}
	return NewWriter(f, opts...), f.Close, nil
}

// Submit writes one line per opportunity. Every opportunity must be in
// state Accepted; nothing is written otherwise.
func (w *Writer) Submit(ctx context.Context, opps []*domain.Opportunity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf []byte
	for _, o := range opps {
		if o.State != domain.StateAccepted {
			return fmt.Errorf("%w: %s is %s", ErrNotAccepted, o.ID, o.State)
		}
		line, err := sonnet.Marshal(NewRecord(o, w.valuer))
		if err != nil {
			return fmt.Errorf("marshal opportunity %s: %w", o.ID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if len(buf) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("write opportunities: %w", err)
	}
	w.written += len(opps)
	return nil
}

// Written returns the number of records written so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// ReadRecords parses a JSON lines stream written by Writer. Blank lines are
// skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []Record
	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := sonnet.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return records, nil
}
