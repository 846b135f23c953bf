package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"agent-cost-governor/internal/app"
)

var recommendSelection string

var recommendCmd = &cobra.Command{
	Use:   "recommend [task description]",
	Short: "Rank service candidates for a task by cost and fit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.TrimSpace(strings.Join(args, " "))
		if task == "" {
			return errors.New("task description must not be empty")
		}

		opts := app.RecommendOptions{
			Task:          task,
			UserSelection: recommendSelection,
		}
		return getApp().Recommend(cmd.Context(), opts)
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recommendSelection, "selected", "", "Candidate ID the user already picked, to compare against the recommendation")
}
