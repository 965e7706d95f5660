package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"go.uber.org/goleak"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/types"
)

const scenarioYAML = `
pool:
  name: Staked ETH
  slug: steth
  unit: wei
steps:
  - op: mint
    to: "0x00000000000000000000000000000000000000a1"
    amount: "1000"
  - op: rebase
    amount: "+5000"
  - op: transfer
    from: "0x00000000000000000000000000000000000000a1"
    to: "0x00000000000000000000000000000000000000b2"
    amount: "400"
    reference: gift
  - op: burn
    from: "0x00000000000000000000000000000000000000b2"
    amount: "2000"
    expect_error: true
`

// holderRows maps shares to balance for every holder row in the output.
func holderRows(t *testing.T, out string) map[string]string {
	t.Helper()
	rows := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) != 3 || !strings.HasPrefix(f[0], "0x") {
			continue
		}
		rows[f[1]] = f[2]
	}
	return rows
}

func TestSimulate(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	if err := runSimulate(cmd, []string{path}); err != nil {
		t.Fatalf("runSimulate: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "step 4: burn failed as expected") {
		t.Errorf("expected failure line, got:\n%s", out)
	}
	if !strings.Contains(out, "seq=3") {
		t.Errorf("expected three committed entries, got:\n%s", out)
	}
	if !strings.Contains(out, "total_shares=1000  pooled_value=5000") {
		t.Errorf("unexpected totals:\n%s", out)
	}

	want := map[string]string{"600": "3000", "400": "2000"}
	if diff := cmp.Diff(want, holderRows(t, out)); diff != "" {
		t.Errorf("holders mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulateErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "pool:\n  name: x\n  colour: red\n",
			wantErr: "decode scenario",
		},
		{
			name: "unexpected success",
			yaml: `steps:
  - op: mint
    to: "0x00000000000000000000000000000000000000a1"
    amount: "1"
    expect_error: true
`,
			wantErr: "expected an error",
		},
		{
			name: "underflow",
			yaml: `steps:
  - op: burn
    from: "0x00000000000000000000000000000000000000a1"
    amount: "1"
`,
			wantErr: "step 1 (burn)",
		},
		{
			name:    "unknown op",
			yaml:    "steps:\n  - op: split\n",
			wantErr: "unknown op",
		},
		{
			name:    "bad pool cap",
			yaml:    "pool:\n  cap: ten\n",
			wantErr: "pool cap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := ParseScenario(strings.NewReader(tt.yaml))
			if err == nil {
				var buf bytes.Buffer
				err = simulate(context.Background(), &buf, sc)
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSimulatePoolCap(t *testing.T) {
	sc, err := ParseScenario(strings.NewReader(`
pool:
  cap: "100"
steps:
  - op: mint
    to: "0x00000000000000000000000000000000000000a1"
    amount: "101"
`))
	if err != nil {
		t.Fatal(err)
	}

	err = simulate(context.Background(), &bytes.Buffer{}, sc)
	if !errors.Is(err, shareledger.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestParseSigned(t *testing.T) {
	tests := []struct {
		in       string
		positive bool
		want     uint64
		wantErr  bool
	}{
		{in: "500", positive: true, want: 500},
		{in: "+500", positive: true, want: 500},
		{in: "-150", positive: false, want: 150},
		{in: "", wantErr: true},
		{in: "+-5", wantErr: true},
		{in: "-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			positive, n, err := parseSigned(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if positive != tt.positive || !n.Eq(types.NewAmount(tt.want)) {
				t.Errorf("parseSigned(%q) = %v, %s; want %v, %d", tt.in, positive, n, tt.positive, tt.want)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		shares  string
		amount  string
		total   string
		pooled  string
		want    string
		wantErr error
	}{
		{name: "shares to balance", shares: "1000", total: "1000", pooled: "5000", want: "balance 5000\n"},
		{name: "amount to shares", amount: "500", total: "1000", pooled: "5000", want: "shares 100\n"},
		{name: "rounds down", shares: "1", total: "3", pooled: "10", want: "balance 3\n"},
		{name: "no shares outstanding", shares: "1", total: "0", pooled: "10", wantErr: shareledger.ErrDivisionByZero},
		{name: "no pooled value", amount: "1", total: "10", pooled: "0", wantErr: shareledger.ErrDivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			convertShares, convertAmount = tt.shares, tt.amount
			convertTotalShares, convertPooledValue = tt.total, tt.pooled
			defer func() {
				convertShares, convertAmount, convertTotalShares, convertPooledValue = "", "", "", ""
			}()

			var buf bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&buf)

			err := runConvert(cmd, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("runConvert: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SHARELEDGER_LOG_LEVEL", "debug")
	t.Setenv("SHARELEDGER_CAP", "1000")

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.LogLevel.String() != "DEBUG" {
		t.Errorf("LogLevel = %v, want DEBUG", c.LogLevel)
	}
	capAmount, ok := c.DefaultCap()
	if !ok || !capAmount.Eq(types.NewAmount(1000)) {
		t.Errorf("DefaultCap = %s, %v; want 1000, true", capAmount, ok)
	}

	t.Setenv("SHARELEDGER_CAP", "lots")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid cap")
	}
}
