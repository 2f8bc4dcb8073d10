package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/adstudio/studio/internal/app/studio"
	"github.com/adstudio/studio/internal/domain"
)

// ─── Credits CLI ────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsShowCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
	creditsCmd.AddCommand(creditsCheckoutCmd)

	creditsShowCmd.Flags().Bool("history", false, "Include the transaction window")
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and top up the credit balance",
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Reconcile and print the balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, _ := cmd.Flags().GetBool("history")
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			bal, err := app.Ledger.Refresh(ctx)
			if err != nil {
				return err
			}
			var txs []domain.CreditTransaction
			if history {
				txs = app.Ledger.History()
			}
			if jsonOutput {
				return printJSON(struct {
					domain.CreditBalance
					History []domain.CreditTransaction `json:"history,omitempty"`
				}{bal, txs})
			}
			printBalance(bal)
			printHistory(txs)
			return nil
		})
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant AMOUNT",
	Short: "Add test credits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[0])
		}
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			bal, err := app.Ledger.GrantTestCredits(ctx, amount)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(bal)
			}
			fmt.Fprintf(os.Stdout, "Added %d credits.\n", amount)
			printBalance(bal)
			return nil
		})
	},
}

var creditsCheckoutCmd = &cobra.Command{
	Use:   "checkout [PACK]",
	Short: "Print the payment link for a credit pack",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pack := ""
		if len(args) == 1 {
			pack = args[0]
		}
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			url, err := app.Ledger.StartCheckout(ctx, pack)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, url)
			return nil
		})
	},
}

func printBalance(bal domain.CreditBalance) {
	fmt.Fprintf(os.Stdout, "Balance:  %d\n", bal.Balance)
	fmt.Fprintf(os.Stdout, "Earned:   %d\n", bal.TotalEarned)
	fmt.Fprintf(os.Stdout, "Spent:    %d\n", bal.TotalSpent)
	fmt.Fprintf(os.Stdout, "Source:   %s\n", bal.Source)
}

func printHistory(txs []domain.CreditTransaction) {
	for _, tx := range txs {
		fmt.Fprintf(os.Stdout, "  %s  %-8s %6d  %-9s %s\n",
			tx.CreatedAt.Format("2006-01-02 15:04"), tx.Type, tx.Amount, tx.Status, tx.Description)
	}
}
