package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/types"
)

var (
	convertTotalShares string
	convertPooledValue string
	convertShares      string
	convertAmount      string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert between shares and value at given pool totals",
	Long: `Converts shares to a balance (--shares) or a value to shares (--amount)
for a pool holding --total-shares shares worth --pooled-value. Results round
down.

Example:
  shareledger convert --total-shares 1000 --pooled-value 5000 --shares 1000`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTotalShares, "total-shares", "", "Total shares outstanding")
	convertCmd.Flags().StringVar(&convertPooledValue, "pooled-value", "", "Total pooled value")
	convertCmd.Flags().StringVar(&convertShares, "shares", "", "Shares to convert to a balance")
	convertCmd.Flags().StringVar(&convertAmount, "amount", "", "Value to convert to shares")
	_ = convertCmd.MarkFlagRequired("total-shares")
	_ = convertCmd.MarkFlagRequired("pooled-value")
	convertCmd.MarkFlagsOneRequired("shares", "amount")
	convertCmd.MarkFlagsMutuallyExclusive("shares", "amount")
}

func runConvert(cmd *cobra.Command, _ []string) error {
	total, err := types.ParseAmount(convertTotalShares)
	if err != nil {
		return fmt.Errorf("--total-shares: %w", err)
	}
	pooled, err := types.ParseAmount(convertPooledValue)
	if err != nil {
		return fmt.Errorf("--pooled-value: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case convertShares != "":
		shares, err := types.ParseAmount(convertShares)
		if err != nil {
			return fmt.Errorf("--shares: %w", err)
		}
		bal, err := shareledger.BalanceFor(shares, pooled, total)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "balance %s\n", bal)
	case convertAmount != "":
		amount, err := types.ParseAmount(convertAmount)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		shares, err := shareledger.SharesFor(amount, total, pooled)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "shares %s\n", shares)
	default:
		return errors.New("one of --shares or --amount is required")
	}

	logger.Debug("converted", "total_shares", total.String(), "pooled_value", pooled.String())
	return nil
}
