package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

var (
	initOwner string
	initItems []string
	auditN    int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ledger with an owner and initial stock",
	Example: `  vendctl init --owner owner --item chocolate=1 --item water=3
  vendctl init --owner owner`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items := make([]domain.ItemAmount, 0, len(initItems))
		for _, s := range initItems {
			ia, err := domain.ParseItemAmount(s)
			if err != nil {
				return err
			}
			items = append(items, ia)
		}

		caller := sender
		if caller == "" {
			caller = initOwner
		}
		resp, err := client.Instantiate(cmd.Context(), caller, initOwner, items)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <item>",
	Short: "Take one unit of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := domain.ParseItem(args[0])
		if err != nil {
			return err
		}
		resp, err := client.Withdraw(cmd.Context(), sender, item)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var restockCmd = &cobra.Command{
	Use:   "restock <item> <amount>",
	Short: "Add stock to an item (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := domain.ParseItem(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		resp, err := client.Restock(cmd.Context(), sender, item, amount)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Show the current count of every item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := client.Items(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, items)
		}
		for _, ia := range items {
			fmt.Fprintf(out, "%-10s %d\n", ia.Item, ia.Amount)
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent audit records of a local ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := client.Audit(cmd.Context(), auditN)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, records)
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-12s %-12s %s\n",
				r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), r.Action, r.Sender, formatEvents(r.Events))
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initOwner, "owner", "", "owner identity")
	initCmd.Flags().StringArrayVar(&initItems, "item", nil, "initial amount as item=count (repeatable)")
	_ = initCmd.MarkFlagRequired("owner")

	auditCmd.Flags().IntVarP(&auditN, "limit", "n", 20, "number of records")
}

func printResponse(w io.Writer, resp domain.Response) error {
	if jsonOutput {
		return writeJSON(w, resp)
	}
	for _, a := range resp.Attributes {
		fmt.Fprintf(w, "%s: %s\n", a.Key, a.Value)
	}
	for _, e := range resp.Events {
		fmt.Fprintf(w, "event %s\n", formatEvents([]domain.Event{e}))
	}
	return nil
}

func formatEvents(events []domain.Event) string {
	var s string
	for i, e := range events {
		if i > 0 {
			s += "; "
		}
		s += string(e.Type)
		for _, a := range e.Attributes() {
			s += " " + a.Key + "=" + a.Value
		}
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
