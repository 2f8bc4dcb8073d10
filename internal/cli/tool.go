package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adstudio/studio/internal/app/results"
	"github.com/adstudio/studio/internal/app/studio"
	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/domain/payload"
)

// ─── Tool CLI ───────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(toolCmd)
	toolCmd.AddCommand(toolListCmd)
	toolCmd.AddCommand(toolRunCmd)
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)

	toolRunCmd.Flags().StringArrayP("input", "i", nil, "Tool input as key=value (repeatable)")
	toolRunCmd.Flags().Bool("save", false, "Save the result as a generation record")
}

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Run generation tools",
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools and their credit cost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return printJSON(domain.Tools())
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCOST\tKIND")
		for _, t := range domain.Tools() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, t.Name, t.Cost, t.Kind)
		}
		return tw.Flush()
	},
}

var toolRunCmd = &cobra.Command{
	Use:   "run TOOL_ID",
	Short: "Run a tool and print its result",
	Long: `Run a tool with the given inputs. Paid tools deduct their cost after a
successful generation. Content-planner results replace the stored calendar.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolID := domain.ToolID(args[0])
		raw, _ := cmd.Flags().GetStringArray("input")
		save, _ := cmd.Flags().GetBool("save")
		inputs, err := parseInputs(raw)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			// The balance must be known for the insufficient-credit check.
			if _, err := app.Ledger.Refresh(ctx); err != nil {
				return err
			}
			st, err := app.Invocations.Submit(ctx, toolID, inputs)
			if st.Result == nil {
				return err
			}
			printResult(toolID, st)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			if save {
				id, err := app.Invocations.Save(ctx, toolID)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Saved as %s\n", id)
			}
			return nil
		})
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse saved generation records",
}

var resultsListCmd = &cobra.Command{
	Use:   "list TOOL_ID",
	Short: "List saved results for a tool, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolID := domain.ToolID(args[0])
		if _, ok := domain.LookupTool(toolID); !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownTool, toolID)
		}
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			userID, err := requireUser(app)
			if err != nil {
				return err
			}
			recs, err := app.Results.List(ctx, toolID, userID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(os.Stdout, "No saved results.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTITLE")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), results.Title(rec))
			}
			return tw.Flush()
		})
	},
}

// parseInputs turns key=value pairs into tool inputs. Integer and boolean
// values are typed; everything else stays a string.
func parseInputs(pairs []string) (domain.Inputs, error) {
	in := domain.Inputs{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("input %q must be key=value", p)
		}
		switch {
		case isInt(v):
			n, _ := strconv.Atoi(v)
			in[k] = n
		case v == "true" || v == "false":
			in[k] = v == "true"
		default:
			in[k] = v
		}
	}
	return in, nil
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func printResult(toolID domain.ToolID, st domain.ToolInvocationState) {
	if jsonOutput {
		printJSON(map[string]any{
			"state":  st,
			"result": payload.Parse(toolID, st.Result),
		})
		return
	}
	fmt.Fprintf(os.Stdout, "%s\n\n", payload.DisplayTitle(toolID, st.Result, nil))
	switch r := payload.Parse(toolID, st.Result).(type) {
	case payload.Calendar:
		fmt.Fprintf(os.Stdout, "Calendar with %d scheduled days", len(r.Days))
		if r.Period > 0 {
			fmt.Fprintf(os.Stdout, " over %d", r.Period)
		}
		fmt.Fprintln(os.Stdout)
		if r.Strategy != "" {
			fmt.Fprintf(os.Stdout, "Strategy: %s\n", r.Strategy)
		}
	case payload.Ad:
		if r.Headline != "" {
			fmt.Fprintf(os.Stdout, "Headline: %s\n", r.Headline)
		}
		if r.Text != "" {
			fmt.Fprintln(os.Stdout, r.Text)
		}
		if r.ImageURL != "" {
			fmt.Fprintf(os.Stdout, "Image: %s\n", r.ImageURL)
		}
	case payload.Video:
		if r.Hook != "" {
			fmt.Fprintf(os.Stdout, "Hook: %s\n", r.Hook)
		}
		for i, s := range r.Scenes {
			fmt.Fprintf(os.Stdout, "%2d. %s\n", i+1, s)
		}
		if r.Script != "" {
			fmt.Fprintln(os.Stdout, r.Script)
		}
	case payload.Text:
		fmt.Fprintln(os.Stdout, r.Body)
	case payload.Hashtags:
		fmt.Fprintln(os.Stdout, strings.Join(r.Tags, " "))
	case payload.Unknown:
		fmt.Fprintf(os.Stdout, "(unrecognised result: %s)\n%s\n", r.Reason, r.Raw)
	}
}
