package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/store/memory"
	"github.com/xraph/shareledger/types"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario.yaml]",
	Short: "Run a scenario of share operations and print the resulting holders",
	Long: `Runs mint, burn, transfer and rebase steps from a YAML scenario against a
fresh in-memory pool, then prints every holder's shares and balance.

Example scenario:

  pool:
    name: Staked ETH
    unit: wei
  steps:
    - op: mint
      to: "0x00000000000000000000000000000000000000a1"
      amount: "1000"
    - op: rebase
      amount: "+5000"
    - op: burn
      from: "0x00000000000000000000000000000000000000a1"
      amount: "2000"
      expect_error: true`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

// Scenario is a pool definition followed by the steps applied to it.
type Scenario struct {
	Pool  ScenarioPool `yaml:"pool"`
	Steps []Step       `yaml:"steps"`
}

// ScenarioPool describes the simulated pool.
type ScenarioPool struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
	Unit string `yaml:"unit"`
	Cap  string `yaml:"cap"`
}

// Step is a single operation. Rebase amounts carry a sign: "+500" raises
// the pooled value and "-500" lowers it.
type Step struct {
	Op          string `yaml:"op"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Amount      string `yaml:"amount"`
	Reference   string `yaml:"reference"`
	ExpectError bool   `yaml:"expect_error"`
}

// ParseScenario decodes a YAML scenario, rejecting unknown fields.
func ParseScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if s.Pool.Name == "" {
		s.Pool.Name = "simulation"
	}
	return &s, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	sc, err := ParseScenario(f)
	if err != nil {
		return err
	}
	return simulate(cmd.Context(), cmd.OutOrStdout(), sc)
}

func simulate(ctx context.Context, out io.Writer, sc *Scenario) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []shareledger.Option{shareledger.WithLogger(logger)}
	if c, ok := cfg.DefaultCap(); ok {
		opts = append(opts, shareledger.WithDefaultCap(c))
	}

	eng := shareledger.New(memory.New(), opts...)
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			logger.Warn("stop engine", "error", err)
		}
	}()

	p := &pool.Pool{Name: sc.Pool.Name, Slug: sc.Pool.Slug, Unit: sc.Pool.Unit}
	if sc.Pool.Cap != "" {
		c, err := types.ParseAmount(sc.Pool.Cap)
		if err != nil {
			return fmt.Errorf("pool cap: %w", err)
		}
		p.Cap = &c
	}
	if err := eng.CreatePool(ctx, p); err != nil {
		return err
	}

	for i, step := range sc.Steps {
		err := applyStep(ctx, eng, p.ID, step)
		switch {
		case err != nil && step.ExpectError:
			fmt.Fprintf(out, "step %d: %s failed as expected: %v\n", i+1, step.Op, err)
		case err != nil:
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		case step.ExpectError:
			return fmt.Errorf("step %d (%s): expected an error", i+1, step.Op)
		}
	}

	if err := eng.Verify(ctx, p.ID); err != nil {
		return err
	}

	l, err := eng.Open(ctx, p.ID)
	if err != nil {
		return err
	}
	return printLedger(out, p, l)
}

func applyStep(ctx context.Context, eng *shareledger.Engine, poolID id.PoolID, step Step) error {
	var opts []shareledger.EntryOption
	if step.Reference != "" {
		opts = append(opts, shareledger.WithReference(step.Reference))
	}

	switch step.Op {
	case "mint":
		to, amount, err := parseTarget(step.To, step.Amount)
		if err != nil {
			return err
		}
		_, err = eng.Mint(ctx, poolID, to, amount, opts...)
		return err
	case "burn":
		from, amount, err := parseTarget(step.From, step.Amount)
		if err != nil {
			return err
		}
		_, err = eng.Burn(ctx, poolID, from, amount, opts...)
		return err
	case "transfer":
		from, amount, err := parseTarget(step.From, step.Amount)
		if err != nil {
			return err
		}
		to, err := types.ParseAccount(step.To)
		if err != nil {
			return err
		}
		_, err = eng.Transfer(ctx, poolID, from, to, amount, opts...)
		return err
	case "rebase":
		positive, delta, err := parseSigned(step.Amount)
		if err != nil {
			return err
		}
		_, err = eng.Rebase(ctx, poolID, positive, delta, opts...)
		return err
	default:
		return fmt.Errorf("%w: unknown op %q", shareledger.ErrInvalidInput, step.Op)
	}
}

func parseTarget(account, amount string) (types.Account, types.Amount, error) {
	acct, err := types.ParseAccount(account)
	if err != nil {
		return types.Account{}, types.Amount{}, err
	}
	n, err := types.ParseAmount(amount)
	if err != nil {
		return types.Account{}, types.Amount{}, err
	}
	return acct, n, nil
}

// parseSigned reads "+N", "-N" or "N" (positive).
func parseSigned(s string) (bool, types.Amount, error) {
	if s == "" {
		return false, types.Amount{}, errors.New("missing amount")
	}
	positive := true
	switch s[0] {
	case '-':
		positive = false
		s = s[1:]
	case '+':
		s = s[1:]
	}
	n, err := types.ParseAmount(s)
	if err != nil {
		return false, types.Amount{}, err
	}
	return positive, n, nil
}

func printLedger(out io.Writer, p *pool.Pool, l *shareledger.Ledger) error {
	fmt.Fprintf(out, "pool %s (%s)  seq=%d  total_shares=%s  pooled_value=%s\n",
		p.Name, p.ID, l.Seq(), l.TotalShares(), l.PooledValue())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSHARES\tBALANCE")
	for _, acct := range l.Holders() {
		bal, err := l.BalanceOf(acct)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", acct.Hex(), l.SharesOf(acct), bal)
	}
	return w.Flush()
}
