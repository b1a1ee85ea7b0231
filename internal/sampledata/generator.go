package sampledata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
)

// legitimateMix is the cumulative share of each type among legitimate rows.
var legitimateMix = []struct { //nolint:gochecknoglobals // fixed distribution
	kind string
	upTo float64
}{
	{TypeCashOut, 0.35},
	{TypePayment, 0.69},
	{TypeCashIn, 0.91},
	{TypeTransfer, 0.99},
	{TypeDebit, 1},
}

// Generator produces PaySim-shaped transactions. Fraudulent rows follow the
// data set's pattern: a TRANSFER or CASH_OUT that drains the origin account.
type Generator struct {
	rng       *rand.Rand
	fraudRate float64
	steps     int
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64, fraudRate float64, steps int) *Generator {
	if steps < 1 {
		steps = 1
	}
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fraudRate: math.Min(math.Max(fraudRate, 0), 1),
		steps:     steps,
	}
}

// Generate returns n transactions ordered by step. Exactly round(n*fraudRate)
// of them are fraudulent.
func (g *Generator) Generate(n int) []Transaction {
	frauds := int(math.Round(float64(n) * g.fraudRate))
	isFraud := make([]bool, n)
	for _, i := range g.rng.Perm(n)[:frauds] {
		isFraud[i] = true
	}

	out := make([]Transaction, n)
	for i := range out {
		step := 1 + i*g.steps/max(n, 1)
		if isFraud[i] {
			out[i] = g.fraud(step)
		} else {
			out[i] = g.legitimate(step)
		}
	}
	return out
}

func (g *Generator) fraud(step int) Transaction {
	kind := TypeTransfer
	if g.rng.IntN(2) == 1 {
		kind = TypeCashOut
	}
	balance := g.money(5000, 2_000_000)
	t := Transaction{
		Step:           step,
		Type:           kind,
		Amount:         balance,
		NameOrig:       g.customer(),
		OldBalanceOrg:  balance,
		NewBalanceOrig: 0,
		NameDest:       g.customer(),
		IsFraud:        true,
	}
	t.IsFlaggedFraud = kind == TypeTransfer && t.Amount > flaggedThreshold
	return t
}

func (g *Generator) legitimate(step int) Transaction {
	kind := g.pick()
	t := Transaction{Step: step, Type: kind, NameOrig: g.customer()}

	switch kind {
	case TypeCashIn:
		t.Amount = g.money(10, 300_000)
		t.OldBalanceOrg = g.money(0, 3_000_000)
		t.NewBalanceOrig = round2(t.OldBalanceOrg + t.Amount)
		t.NameDest = g.customer()
		t.OldBalanceDest = g.money(0, 1_000_000)
		t.NewBalanceDest = math.Max(0, round2(t.OldBalanceDest-t.Amount))
	case TypePayment:
		t.Amount = g.money(1, 30_000)
		t.OldBalanceOrg = g.money(0, 200_000)
		t.NewBalanceOrig = math.Max(0, round2(t.OldBalanceOrg-t.Amount))
		t.NameDest = g.merchant()
	default:
		t.Amount = g.money(10, 500_000)
		// legitimate transfers rarely empty the origin account
		t.OldBalanceOrg = round2(t.Amount + g.money(100, 1_000_000))
		t.NewBalanceOrig = round2(t.OldBalanceOrg - t.Amount)
		t.NameDest = g.customer()
		t.OldBalanceDest = g.money(0, 2_000_000)
		t.NewBalanceDest = round2(t.OldBalanceDest + t.Amount)
	}
	return t
}

func (g *Generator) pick() string {
	u := g.rng.Float64()
	for _, m := range legitimateMix {
		if u < m.upTo {
			return m.kind
		}
	}
	return TypePayment
}

func (g *Generator) money(lo, hi float64) float64 {
	return round2(lo + g.rng.Float64()*(hi-lo))
}

func (g *Generator) customer() string { return "C" + strconv.Itoa(1e8+g.rng.IntN(9e8)) }
func (g *Generator) merchant() string { return "M" + strconv.Itoa(1e8+g.rng.IntN(9e8)) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Write encodes txs as CSV with Header.
func Write(w io.Writer, txs []Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range txs {
		if err := cw.Write(t.record()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (t Transaction) record() []string {
	return []string{
		strconv.Itoa(t.Step),
		t.Type,
		money(t.Amount),
		t.NameOrig,
		money(t.OldBalanceOrg),
		money(t.NewBalanceOrig),
		t.NameDest,
		money(t.OldBalanceDest),
		money(t.NewBalanceDest),
		flag(t.IsFraud),
		flag(t.IsFlaggedFraud),
	}
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
