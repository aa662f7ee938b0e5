package discrepancy

import (
	"math"
	"testing"

	"finrecon/internal/account"
	"finrecon/internal/join"
	"finrecon/internal/table"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestClassifyFlagsOutlierAsMajor(t *testing.T) {
	var recs []Record
	for _, v := range []float64{10, 12, 11, 100} {
		recs = append(recs, Record{Key: "k", Variance: v})
	}
	out := Classify(recs)
	want := []Severity{Minor, Minor, Minor, Major}
	for i, w := range want {
		if out[i].Severity != w {
			t.Fatalf("record %d (variance=%v) severity got=%s want=%s", i, out[i].Variance, out[i].Severity, w)
		}
	}
	if recs[0].Severity != "" {
		t.Fatalf("Classify must not modify its input")
	}
}

func TestClassifyUsesAbsoluteVariance(t *testing.T) {
	out := Classify([]Record{{Variance: -10}, {Variance: 12}, {Variance: -11}, {Variance: -100}})
	if out[3].Severity != Major || out[0].Severity != Minor {
		t.Fatalf("got %+v", out)
	}
}

func TestClassifyMissingIsAlwaysMajor(t *testing.T) {
	out := Classify([]Record{
		{Variance: 1},
		{Variance: 1},
		{Variance: 0.5, MissingInLeft: true},
		{Variance: 1, MissingInRight: true},
	})
	if out[2].Severity != Major || out[3].Severity != Major {
		t.Fatalf("missing records must be major: %+v", out)
	}
	if out[0].Severity != Minor {
		t.Fatalf("got %s want minor", out[0].Severity)
	}
}

func TestThresholdSingleRecordUsesMedian(t *testing.T) {
	if got := Threshold([]float64{42}); !almostEqual(got, 42) {
		t.Fatalf("Threshold got=%v want=42", got)
	}
	out := Classify([]Record{{Variance: 42}})
	if out[0].Severity != Minor {
		t.Fatalf("single record at the threshold is minor, got=%s", out[0].Severity)
	}
	if got := Threshold([]float64{10, 12, 11, 100}); math.Abs(got-56.0075) > 1e-3 {
		t.Fatalf("Threshold got=%v", got)
	}
}

func TestBuildVarianceAndMissingSides(t *testing.T) {
	keys := join.Keys{Left: []string{"Acct"}, Right: []string{"account"}}
	left := table.New([]string{"Acct", "Amount"}, []table.Row{
		{"Acct": "1234-5678 Revenue", "Amount": 100.0},
		{"Acct": "2000-0001", "Amount": 50.0},
		{"Acct": "3000-0001", "Amount": 10.0},
	})
	right := table.New([]string{"account", "amount"}, []table.Row{
		{"account": "1234-5678 Revenue", "amount": -100.0},
		{"account": "2000-0001", "amount": 45.5},
		{"account": "4000-0001", "amount": 7.0},
	})
	joined := join.Join(left, right, keys)
	recs := Build(Input{
		Rows:         joined.Rows,
		Keys:         keys,
		Columns:      []Column{{Left: "Amount", Right: "amount"}},
		AccountLeft:  "Acct",
		AccountRight: "account",
		Flips:        account.NewFlipSet("1234-5678"),
	})
	if len(recs) != 3 {
		t.Fatalf("records got=%d want=3: %+v", len(recs), recs)
	}
	if recs[0].Account != "2000-0001" || !almostEqual(recs[0].Variance, 4.5) {
		t.Fatalf("first record got=%+v", recs[0])
	}
	if !recs[1].MissingInRight || !almostEqual(recs[1].Variance, 10) {
		t.Fatalf("left-only record got=%+v", recs[1])
	}
	if !recs[2].MissingInLeft || !almostEqual(recs[2].Variance, -7) || recs[2].Keys["Acct"] != "4000-0001" {
		t.Fatalf("right-only record got=%+v", recs[2])
	}
}
