package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizpool-service/internal/config"
)

// NewSettleCmd runs one settlement pass for a quiz from the command line,
// for organizer tooling and cron-style invocation.
func NewSettleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <quiz-id>",
		Short: "Run one reward settlement pass for a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			svcs, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svcs.cleanup()

			quizID := args[0]
			quiz, err := svcs.quizzes.GetQuiz(cmd.Context(), quizID)
			if err != nil {
				return err
			}
			state, err := svcs.engine.Settle(cmd.Context(), quiz)
			if err != nil {
				return err
			}

			fmt.Printf("quiz %s: pool %d, remaining %d, distribution %s\n",
				state.QuizID, state.TotalPool, state.Remaining, state.Distribution)
			for _, w := range state.Winners {
				fmt.Printf("  %s\t%d\n", w.ParticipantID, w.Amount)
			}
			return nil
		},
	}
}
