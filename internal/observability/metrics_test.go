package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test_arb", reg)

	m.PoolsDecoded.WithLabelValues("raydium").Inc()
	m.DecodeFailures.WithLabelValues("orca", "too_short").Add(2)

	if got := testutil.ToFloat64(m.PoolsDecoded.WithLabelValues("raydium")); got != 1 {
		t.Errorf("pools decoded = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.DecodeFailures.WithLabelValues("orca", "too_short")); got != 2 {
		t.Errorf("decode failures = %g, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}
	for _, f := range families {
		if name := f.GetName(); len(name) < 9 || name[:9] != "test_arb_" {
			t.Errorf("metric %s outside namespace", name)
		}
	}
}

func TestRecordSearchPass(t *testing.T) {
	m := DefaultMetrics
	before := testutil.ToFloat64(m.RoutesEvaluated)
	rejectedBefore := testutil.ToFloat64(m.OpportunitiesRejected.WithLabelValues("fee-margin-too-thin"))

	RecordSearchPass(PassStats{
		Duration:        150 * time.Millisecond,
		RoutesEvaluated: 4,
		Accepted:        1,
		RejectedReasons: []string{"fee-margin-too-thin", "fee-margin-too-thin"},
		BestNetProfit:   12345,
	})

	if got := testutil.ToFloat64(m.RoutesEvaluated) - before; got != 4 {
		t.Errorf("routes evaluated delta = %g, want 4", got)
	}
	if got := testutil.ToFloat64(m.OpportunitiesRejected.WithLabelValues("fee-margin-too-thin")) - rejectedBefore; got != 2 {
		t.Errorf("rejected delta = %g, want 2", got)
	}
	if got := testutil.ToFloat64(m.BestNetProfit); got != 12345 {
		t.Errorf("best net profit = %g, want 12345", got)
	}
}

func TestRecordDBQuery_CountsErrors(t *testing.T) {
	errs := DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test_op")
	before := testutil.ToFloat64(errs)

	RecordDBQuery("postgres", "test_op", 0.01, nil)
	RecordDBQuery("postgres", "test_op", 0.01, errors.New("boom"))

	if got := testutil.ToFloat64(errs) - before; got != 1 {
		t.Errorf("errors delta = %g, want 1", got)
	}
}
