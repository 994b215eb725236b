package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/arena/internal/adapters/backend"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/leaderboard"
)

func newLeaderboardCmd(c *cli) *cobra.Command {
	var eventID, stage, group, match string

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print an event's leaderboard",
		Long: `Prints the standings of one group. Without --stage and --group the first
stage and its first group are shown; --match selects "overall" (default) or
one match's results.

Example:
  arena leaderboard --event 7 --stage 2 --match 31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := c.startService(ctx)
			if err != nil {
				return err
			}
			defer svc.Stop()

			view, err := svc.Leaderboard(ctx, c.session(), leaderboard.ID(eventID), service.Filter{
				Stage: leaderboard.ID(stage),
				Group: leaderboard.ID(group),
				Match: match,
			})
			if err != nil && (view.Status != leaderboard.StatusNotFound || service.IsUnauthorized(err)) {
				return userError(err)
			}
			if err != nil {
				view.Error = backend.Message(err)
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&eventID, "event", "", "event id (required)")
	f.StringVar(&stage, "stage", "", "stage id (default: first stage)")
	f.StringVar(&group, "group", "", "group id (default: first group of the stage)")
	f.StringVar(&match, "match", leaderboard.Overall, `"overall" or a match id`)
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func printView(w io.Writer, v leaderboard.View) {
	if v.Status == leaderboard.StatusNotFound {
		msg := "No leaderboard found for this event."
		if v.Error != "" {
			msg += " " + v.Error
		}
		fmt.Fprintln(w, msg)
		return
	}

	fmt.Fprintf(w, "Stage: %s\n", choiceLabel(v.Stages, v.StageID))
	fmt.Fprintf(w, "Group: %s\n", choiceLabel(v.Groups, v.GroupID))
	matchLabel := "Overall"
	if v.Match != leaderboard.Overall {
		matchLabel = choiceLabel(v.Matches, leaderboard.ID(v.Match))
	}
	fmt.Fprintf(w, "Match: %s\n\n", matchLabel)

	if len(v.Rows) == 0 {
		fmt.Fprintln(w, "No results yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tKILLS\tPOINTS")
	for _, r := range v.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Placement, r.Name, r.Kills, r.Points)
	}
	_ = tw.Flush()
}

func choiceLabel(choices []leaderboard.Choice, id leaderboard.ID) string {
	if id == "" {
		return "-"
	}
	for _, ch := range choices {
		if ch.ID == id {
			return strings.TrimSpace(ch.Label)
		}
	}
	return id.String()
}
