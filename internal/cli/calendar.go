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

// ─── Calendar CLI ───────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(calendarCmd)
	calendarCmd.AddCommand(calendarShowCmd)
	calendarCmd.AddCommand(calendarDayCmd)
	calendarCmd.AddCommand(calendarVideoCmd)

	calendarVideoCmd.Flags().String("kind", string(domain.EntryPost), "Entry kind: post or story")
	calendarVideoCmd.Flags().Int("index", 0, "Entry position within the day")
	calendarVideoCmd.Flags().Bool("prefill", false, "Only print the video inputs; do not generate")
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Inspect the content calendar",
}

var calendarShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Load the stored calendar and print the day grid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			userID, err := requireUser(app)
			if err != nil {
				return err
			}
			ix, err := app.Calendar.Load(ctx, userID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(ix.Grid())
			}
			if ix.Empty() {
				fmt.Fprintln(os.Stdout, "No calendar yet. Run the content-planner tool to create one.")
				return nil
			}
			for _, d := range ix.Grid() {
				fmt.Fprintf(os.Stdout, "Day %-3d %-12s posts=%d stories=%d\n", d.Day, d.Type, d.Posts, d.Stories)
			}
			return nil
		})
	},
}

var calendarDayCmd = &cobra.Command{
	Use:   "day N",
	Short: "Print one day's posts and stories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("day must be an integer, got %q", args[0])
		}
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			userID, err := requireUser(app)
			if err != nil {
				return err
			}
			ix, err := app.Calendar.Load(ctx, userID)
			if err != nil {
				return err
			}
			if n < 1 || n > ix.MaxDay() {
				return fmt.Errorf("%w: %d", domain.ErrDayOutOfRange, n)
			}
			d, ok := app.Calendar.Select(n)
			if !ok {
				fmt.Fprintf(os.Stdout, "Day %d: %s\n", n, ix.DayType(n))
				return nil
			}
			if jsonOutput {
				return printJSON(d)
			}
			fmt.Fprintf(os.Stdout, "Day %d: %s\n", n, ix.DayType(n))
			for i, p := range d.Posts {
				fmt.Fprintf(os.Stdout, "  post %d  [%s/%s] %s\n", i, p.Type, p.Format, p.Content)
			}
			for i, s := range d.Stories {
				fmt.Fprintf(os.Stdout, "  story %d [%s/%s] %s\n", i, s.Type, s.Format, s.Content)
			}
			if d.Notes != "" {
				fmt.Fprintf(os.Stdout, "  notes: %s\n", d.Notes)
			}
			return nil
		})
	},
}

var calendarVideoCmd = &cobra.Command{
	Use:   "video N",
	Short: "Regenerate a calendar entry as a video script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("day must be an integer, got %q", args[0])
		}
		kind, _ := cmd.Flags().GetString("kind")
		index, _ := cmd.Flags().GetInt("index")
		prefill, _ := cmd.Flags().GetBool("prefill")
		if kind != string(domain.EntryPost) && kind != string(domain.EntryStory) {
			return fmt.Errorf("kind must be post or story, got %q", kind)
		}
		return withApp(cmd, func(ctx context.Context, app *studio.App) error {
			userID, err := requireUser(app)
			if err != nil {
				return err
			}
			if _, err := app.Calendar.Load(ctx, userID); err != nil {
				return err
			}
			if prefill {
				inputs, err := app.Calendar.PrefillVideo(n, domain.EntryKind(kind), index)
				if err != nil {
					return err
				}
				return printJSON(inputs)
			}
			if _, err := app.Ledger.Refresh(ctx); err != nil {
				return err
			}
			st, err := app.Calendar.RegenerateAsVideo(ctx, n, domain.EntryKind(kind), index)
			if st.Result == nil {
				return err
			}
			printResult(domain.ToolVideoScript, st)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			return nil
		})
	},
}
