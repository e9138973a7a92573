package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/service"
	"github.com/spf13/cobra"
)

var (
	genPersona     string
	genTopic       string
	genCount       int
	genFormat      string
	genWait        bool
	genWaitTimeout time.Duration
)

var ideasCmd = &cobra.Command{
	Use:   "ideas",
	Short: "List and generate content ideas",
}

var ideasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the project's ideas",
	Long: `List the ideas of the current project with the status of their stages.
The selected idea is marked with *.

Examples:
  clipforge ideas list
  clipforge ideas list --project p_123`,
	Args: cobra.NoArgs,
	RunE: runIdeasList,
}

var ideasGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a batch of ideas for a persona",
	Long: `Ask the backend to generate a batch of ideas. Generation runs in the
background; with --wait the command follows the idea list and run logs
until the batch shows up.

Examples:
  clipforge ideas generate --persona per_1 --topic "cold brew" --count 5
  clipforge ideas generate --persona per_1 --topic "home office" --format carousel --wait`,
	Args: cobra.NoArgs,
	RunE: runIdeasGenerate,
}

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Inspect a single idea",
}

var ideaShowCmd = &cobra.Command{
	Use:   "show [idea-id]",
	Short: "Show the stage board of an idea",
	Long: `Show the six pipeline stages of an idea: what is done, what is running
and what can be triggered next. Without an id the last selected idea of the
project is shown.

Examples:
  clipforge idea show i_42
  clipforge idea show`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIdeaShow,
}

func init() {
	ideasGenerateCmd.Flags().StringVar(&genPersona, "persona", "", "persona id (required)")
	ideasGenerateCmd.Flags().StringVar(&genTopic, "topic", "", "topic to generate ideas about (required)")
	ideasGenerateCmd.Flags().IntVarP(&genCount, "count", "n", 5, fmt.Sprintf("number of ideas (1-%d)", service.MaxIdeasPerBatch))
	ideasGenerateCmd.Flags().StringVar(&genFormat, "format", "short", "content format (short, reel, carousel, ...)")
	ideasGenerateCmd.Flags().BoolVarP(&genWait, "wait", "w", false, "wait until the batch completes")
	ideasGenerateCmd.Flags().DurationVar(&genWaitTimeout, "wait-timeout", 5*time.Minute, "give up waiting after this long (0 = never)")
	_ = ideasGenerateCmd.MarkFlagRequired("persona")
	_ = ideasGenerateCmd.MarkFlagRequired("topic")

	ideasCmd.AddCommand(ideasListCmd)
	ideasCmd.AddCommand(ideasGenerateCmd)
	ideaCmd.AddCommand(ideaShowCmd)
}

func runIdeasList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID, err := requireProject()
	if err != nil {
		return err
	}

	svc := newServices(projectID)
	if err := svc.workspace.RefreshIdeas(ctx); err != nil {
		return err
	}
	selected := svc.bookmarks.SelectedIdea(ctx, projectID)
	printIdeas(os.Stdout, svc.workspace.Ideas(), selected)
	return nil
}

func runIdeasGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID, err := requireProject()
	if err != nil {
		return err
	}

	svc := newServices(projectID)
	job, err := svc.generation.GenerateIdeas(ctx, models.GenerateIdeasInput{
		PersonaID: genPersona,
		Topic:     genTopic,
		Count:     genCount,
		Format:    genFormat,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Generating %d ideas about %q (job %s)\n", genCount, genTopic, job.JobID)
	if !genWait {
		fmt.Println("Use 'clipforge ideas list' or 'clipforge watch' to follow progress.")
		return nil
	}

	fmt.Println("Waiting for the batch to complete...")
	if err := svc.generation.WaitBatch(ctx, cfg.PollInterval, genWaitTimeout); err != nil {
		if errors.Is(err, service.ErrWaitTimeout) {
			return fmt.Errorf("%w; the batch is still running on the server, check again with 'clipforge ideas list'", err)
		}
		return err
	}

	ideas := svc.workspace.Ideas()
	fmt.Printf("Batch complete: %d new ideas\n\n", max(0, len(ideas)-svc.generation.BatchBaseline()))
	printIdeas(os.Stdout, ideas, "")
	return nil
}

func runIdeaShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc := newServices(cfg.ProjectID)

	ideaID := ""
	if len(args) == 1 {
		ideaID = args[0]
	} else if cfg.ProjectID != "" {
		ideaID = svc.bookmarks.SelectedIdea(ctx, cfg.ProjectID)
	}
	if ideaID == "" {
		return fmt.Errorf("no idea selected: pass an idea id")
	}

	return showBoard(ctx, svc, ideaID)
}

// showBoard selects ideaID, fetches its history and prints its board.
func showBoard(ctx context.Context, svc *services, ideaID string) error {
	if err := svc.workspace.Select(ctx, ideaID); err != nil {
		return err
	}
	detail := svc.workspace.Detail()
	if detail == nil {
		return fmt.Errorf("idea not found: %s", ideaID)
	}
	board, _ := svc.generation.Board(ideaID)
	printBoard(os.Stdout, detail.Idea, board)
	return nil
}
