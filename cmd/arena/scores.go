package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/scores"
)

func newScoresCmd(c *cli) *cobra.Command {
	var eventID, matchID string
	var sets []string

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Correct a match's results",
		Long: `Loads a match from the event's leaderboard, applies the given cell edits and
submits every row in one batch. Rows are numbered from 0 in the order the
backend lists them; fields are username, placement, kills, bonus_points and
penalty_points.

Example:
  arena scores --event 7 --match 31 --set 0.kills=7 --set 2.penalty_points=1.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			edits := make([]scores.Assignment, 0, len(sets))
			for _, s := range sets {
				a, err := scores.ParseAssignment(s)
				if err != nil {
					return err
				}
				edits = append(edits, a)
			}

			ctx := cmd.Context()
			svc, err := c.startService(ctx)
			if err != nil {
				return err
			}
			defer svc.Stop()

			ack, err := svc.EditMatch(ctx, c.session(), leaderboard.ID(eventID), leaderboard.ID(matchID), edits)
			if err != nil {
				return userError(err)
			}
			msg := ack.Message
			if msg == "" {
				msg = "Match result updated."
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&eventID, "event", "", "event id whose leaderboard holds the match (required)")
	f.StringVar(&matchID, "match", "", "match id (required)")
	f.StringArrayVar(&sets, "set", nil, "cell edit as <row>.<field>=<value>; repeatable")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("match")
	return cmd
}
