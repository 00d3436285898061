package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rtms/taskboard/pkg/models"
	"github.com/spf13/cobra"
)

const wrapWidth = 72

// NewShowCommand creates the show command
func NewShowCommand(a *app) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show your tasks without the TUI",
		Long: `Show your tasks in a non-interactive format.
With --cached the last list fetched on this machine is printed without
contacting the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cached {
				return showCached(cmd, a)
			}
			return showTasks(cmd, a)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Print the locally cached list")
	return cmd
}

func showTasks(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}

	tasks, err := a.api.Tasks(ctx, s.Token)
	if err != nil {
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}
	if err := a.store.SaveTasks(ctx, s.UserID, tasks); err != nil {
		a.logger.Warn("saving task snapshot", "error", err)
	}

	printTasks(cmd.OutOrStdout(), tasks)
	return nil
}

func showCached(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}

	tasks, capturedAt, err := a.store.LoadTasks(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("failed to read cached tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cached tasks")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cached at %s\n\n", capturedAt.Local().Format("2006-01-02 15:04"))
	printTasks(cmd.OutOrStdout(), tasks)
	return nil
}

func printTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}

	fmt.Fprintln(w, "Tasks:")
	fmt.Fprintln(w, "======")
	for i, task := range tasks {
		check := " "
		if task.Done() {
			check = "x"
		}
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, check, task.Title)
		if task.Description != "" {
			fmt.Fprintln(w, indent.String(wordwrap.String(strings.TrimSpace(task.Description), wrapWidth), 3))
		}
		if !task.CreatedAt.IsZero() {
			fmt.Fprintf(w, "   Created: %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(w)
	}
}

// NewAddCommand creates the add command
func NewAddCommand(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}

			in := models.TaskInput{
				Title:       strings.TrimSpace(strings.Join(args, " ")),
				Description: strings.TrimSpace(description),
				Status:      models.StatusPending,
			}
			if in.Title == "" {
				return fmt.Errorf("title is required")
			}

			task, err := a.api.CreateTask(ctx, s.Token, in)
			if err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s: %s\n", task.ID, task.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}
