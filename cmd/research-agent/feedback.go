// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/internal/feedback"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record and summarize ratings of research responses",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <query>",
	Short: "Record a 1-5 rating for a response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, _ := cmd.Flags().GetInt("rating")
		comments, _ := cmd.Flags().GetString("comments")
		responseFile, _ := cmd.Flags().GetString("response-file")

		var response string
		if responseFile != "" {
			data, err := os.ReadFile(responseFile)
			if err != nil {
				return eris.Wrapf(err, "read %s", responseFile)
			}
			response = string(data)
		}

		store, err := feedback.NewStore(agentCfg.Feedback.Dir)
		if err != nil {
			return err
		}
		path, err := store.Add(args[0], response, rating, comments)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the count, mean and histogram of ratings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := feedback.NewStore(agentCfg.Feedback.Dir)
		if err != nil {
			return err
		}
		st, err := store.Stats()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "records: %d\nmean rating: %.2f\n", st.Count, st.Mean)
		for r := 5; r >= 1; r-- {
			fmt.Fprintf(w, "  %d: %d\n", r, st.Histogram[r])
		}
		return nil
	},
}

func init() {
	feedbackAddCmd.Flags().Int("rating", 0, "rating from 1 (poor) to 5 (excellent)")
	feedbackAddCmd.Flags().String("comments", "", "free-text comments")
	feedbackAddCmd.Flags().String("response-file", "", "file holding the rated response, e.g. a saved report")
	_ = feedbackAddCmd.MarkFlagRequired("rating")

	feedbackCmd.AddCommand(feedbackAddCmd, feedbackStatsCmd)
	rootCmd.AddCommand(feedbackCmd)
}
