package commands

import (
	"context"
	"fmt"

	"github.com/rtms/taskboard/internal/suggest"
	"github.com/spf13/cobra"
)

// NewSuggestCommand creates the suggest command
func NewSuggestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Print AI task suggestions based on your current tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd, a)
		},
	}
}

func runSuggest(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}

	tasks, err := a.api.Tasks(ctx, s.Token)
	if err != nil {
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, suggest.Timeout)
	defer cancel()
	suggestions, err := a.ai.Suggest(ctx, tasks)
	if err != nil {
		return fmt.Errorf("failed to fetch suggestions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(suggestions) == 0 {
		fmt.Fprintln(out, "No suggestions")
		return nil
	}
	fmt.Fprintln(out, "Suggested tasks:")
	for i, title := range suggestions {
		fmt.Fprintf(out, "%d. %s\n", i+1, title)
	}
	return nil
}
