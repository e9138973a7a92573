package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/raphaelgruber/clipforge/internal/service"
	"github.com/spf13/cobra"
)

var (
	stageWait        bool
	stageWaitTimeout time.Duration
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Run pipeline stages",
}

var stageRunCmd = &cobra.Command{
	Use:   "run <idea-id> <stage>",
	Short: "Create, regenerate or retry one stage of an idea",
	Long: `Trigger one pipeline stage of an idea. The board decides whether this is a
first run, a new version or a retry; blocked stages are refused locally.

Stages: script, caption, image-prompt, video-prompt, image, video

Examples:
  clipforge stage run i_42 script
  clipforge stage run i_42 image-prompt
  clipforge stage run i_42 video --wait`,
	Args: cobra.ExactArgs(2),
	RunE: runStage,
}

func init() {
	stageRunCmd.Flags().BoolVarP(&stageWait, "wait", "w", false, "wait until the idea has no running work")
	stageRunCmd.Flags().DurationVar(&stageWaitTimeout, "wait-timeout", 10*time.Minute, "give up waiting after this long (0 = never)")
	stageCmd.AddCommand(stageRunCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ideaID := args[0]
	stage, err := pipeline.ParseStage(args[1])
	if err != nil {
		return err
	}

	svc := newServices(cfg.ProjectID)
	if err := svc.workspace.Select(ctx, ideaID); err != nil {
		return err
	}
	board, ok := svc.generation.Board(ideaID)
	if !ok {
		return fmt.Errorf("idea not found: %s", ideaID)
	}

	view := board.Stage(stage)
	if view.Action.Disabled {
		return fmt.Errorf("%w: %s: %s", service.ErrStageBlocked, stage, view.Action.Reason)
	}

	res, err := svc.generation.InvokeStage(ctx, ideaID, stage, view.Action.Regenerate)
	if err != nil {
		return err
	}
	if res.Duplicate {
		fmt.Printf("%s is already pending for idea %s (request %s)\n", stage, ideaID, res.RequestID)
	} else {
		fmt.Printf("Submitted %s (%s) for idea %s\n", stage, view.Action.Label, ideaID)
		fmt.Printf("  Request: %s\n", res.RequestID)
		if res.Job != nil {
			fmt.Printf("  Job: %s\n", res.Job.JobID)
		}
	}

	if !stageWait {
		return nil
	}

	fmt.Println("Waiting for the idea to settle...")
	if _, err := svc.generation.WaitIdle(ctx, ideaID, cfg.PollInterval, stageWaitTimeout); err != nil {
		if errors.Is(err, service.ErrWaitTimeout) {
			return fmt.Errorf("%w; the stage keeps running on the server", err)
		}
		return err
	}
	fmt.Println()
	return showBoard(ctx, svc, ideaID)
}
