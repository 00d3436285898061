package commands

import (
	"fmt"
	"time"

	"github.com/rtms/taskboard/internal/realtime"
	"github.com/rtms/taskboard/pkg/models"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print push update events for the current session",
		Long: `Connect to the push update channel and print every event as it arrives.
Events for other users are shown but marked, since the dashboard ignores them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Exit after this many events (0 waits until interrupted)")
	return cmd
}

func runWatch(cmd *cobra.Command, a *app, limit int) error {
	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}

	feed := realtime.New(a.cfg.WSURL, a.logger)
	defer feed.Close()

	// The callback runs on the feed's read loop and must never block it.
	events := make(chan models.UpdateEvent, 16)
	unsubscribe := feed.Subscribe(func(e models.UpdateEvent) {
		select {
		case events <- e:
		default:
			a.logger.Warn("watch output is behind, dropping event", "type", e.Type, "user", e.UserID)
		}
	})
	defer unsubscribe()

	if err := feed.Connect(ctx, s.Token); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s\n", a.cfg.WSURL)
	fmt.Fprintln(out, "==========================================")

	for seen := 0; limit == 0 || seen < limit; seen++ {
		select {
		case <-ctx.Done():
			return nil
		case <-feed.Done():
			if err := feed.Err(); err != nil {
				return fmt.Errorf("update channel closed: %w", err)
			}
			return nil
		case e := <-events:
			owner := "yours"
			if e.UserID != s.UserID {
				owner = "other user"
			}
			fmt.Fprintf(out, "%s  %s  user=%s (%s)\n", time.Now().Format("15:04:05"), e.Type, e.UserID, owner)
		}
	}
	return nil
}
