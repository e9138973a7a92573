package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/clipforge/internal/polling"
	"github.com/raphaelgruber/clipforge/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	watchPlain  bool
	watchFollow bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [idea-id]",
	Short: "Follow ideas, stages and the run log live",
	Long: `Watch the project while work runs on the server. On a terminal an
interactive board is shown: select ideas, run stages with 1-6, toggle the
run log with l. Polling stops once nothing is in flight and resumes after
any action.

Without a terminal (or with --plain) changes are printed line by line and
the command exits when all work has settled, unless --follow is given.

Examples:
  clipforge watch
  clipforge watch i_42
  clipforge watch --plain --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print changes as lines instead of the interactive board")
	watchCmd.Flags().BoolVarP(&watchFollow, "follow", "f", false, "keep watching after work has settled (plain mode)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	projectID, err := requireProject()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc := newServices(projectID)
	if len(args) == 1 {
		if err := svc.workspace.Select(ctx, args[0]); err != nil {
			return err
		}
	} else {
		svc.workspace.Restore(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- svc.workspace.Run(ctx)
	}()

	interactive := !watchPlain && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		collapsed := svc.bookmarks.LogsCollapsed(ctx, projectID)
		err = runWatchUI(ctx, svc, collapsed)
	} else {
		err = watchPlainLines(ctx, svc)
	}

	cancel()
	if runErr := <-done; runErr != nil && err == nil && ctx.Err() == nil {
		err = runErr
	}
	return err
}

// watchPlainLines prints one line per idea whenever its status changes.
func watchPlainLines(ctx context.Context, svc *services) error {
	views, unsubscribe := svc.workspace.Subscribe()
	defer unsubscribe()

	notes, unsubscribeNotes := svc.notices.Subscribe()
	defer unsubscribeNotes()

	seen := make(map[string]string)
	var waiting bool
	for {
		select {
		case <-ctx.Done():
			return nil

		case active, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			for _, n := range active {
				if _, printed := seen["notice:"+n.ID]; !printed {
					seen["notice:"+n.ID] = ""
					fmt.Printf("%s [%s] %s\n", stamp(n.CreatedAt), n.Level, n.Message)
				}
			}

		case v, ok := <-views:
			if !ok {
				return nil
			}
			if v.Waiting != waiting {
				waiting = v.Waiting
				if waiting {
					fmt.Printf("%s generating ideas...\n", stamp(v.UpdatedAt))
				} else {
					fmt.Printf("%s idea batch complete (%d ideas)\n", stamp(v.UpdatedAt), len(v.Ideas))
				}
			}
			printChangedIdeas(v, seen)

			if !watchFollow && settled(v) {
				return nil
			}
		}
	}
}

func printChangedIdeas(v service.View, seen map[string]string) {
	for _, idea := range v.Ideas {
		line := fmt.Sprintf("%-10s %-10s %s", truncate(idea.ID, 10), idea.Status, truncate(idea.Topic, 60))
		if seen[idea.ID] == line {
			continue
		}
		seen[idea.ID] = line
		fmt.Printf("%s %s\n", stamp(v.UpdatedAt), line)
	}
}

// settled reports whether the view has loaded and nothing is in flight.
func settled(v service.View) bool {
	return v.Loaded &&
		!polling.IdeaListActive(v.Ideas, v.Waiting) &&
		!polling.IdeaDetailActive(v.Detail)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Local().Format("15:04:05")
}
