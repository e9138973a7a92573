package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logsLimit     int
	logsStats     bool
	logsCollapsed bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the AI run log of the project",
	Long: `Show the most recent AI runs of the project: operation, status, model
and latency. With --stats an aggregate per operation is printed as well.

--collapsed is remembered per project: once set, only the statistics are
shown until --collapsed=false.

Examples:
  clipforge logs
  clipforge logs --limit 200 --stats
  clipforge logs --collapsed`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "l", 0, "number of entries (default from config)")
	logsCmd.Flags().BoolVarP(&logsStats, "stats", "s", false, "print per-operation statistics")
	logsCmd.Flags().BoolVar(&logsCollapsed, "collapsed", false, "hide the log table and show statistics only (remembered)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID, err := requireProject()
	if err != nil {
		return err
	}
	if logsLimit > 0 {
		cfg.RunLogLimit = logsLimit
	}

	svc := newServices(projectID)
	if cmd.Flags().Changed("collapsed") {
		if err := svc.bookmarks.SetLogsCollapsed(ctx, projectID, logsCollapsed); err != nil {
			logger.Warn("failed to save log view preference", "error", err)
		}
	}
	collapsed := svc.bookmarks.LogsCollapsed(ctx, projectID)

	if err := svc.workspace.RefreshLogs(ctx); err != nil {
		return err
	}

	if !collapsed {
		printRunLogs(os.Stdout, svc.workspace.RunLogs())
	}
	if logsStats || collapsed {
		if !collapsed {
			fmt.Println()
		}
		printStats(os.Stdout, svc.workspace.Stats())
	}
	return nil
}
