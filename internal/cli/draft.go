package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/clipforge/internal/export"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/publish"
	"github.com/spf13/cobra"
)

var (
	draftCaption  string
	draftAssets   []string
	draftSchedule string
	draftReason   string
	exportFormat  string
	exportOut     string
	exportUpload  bool
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Assemble, moderate, approve and publish post drafts",
	Long: `Work with the post draft of an idea. A draft moves through
draft -> approved -> published; moderation runs on a draft, and a failed
moderation can only be approved with an override reason.`,
}

var draftShowCmd = &cobra.Command{
	Use:   "show <idea-id>",
	Short: "Show the idea's post draft and its latest moderation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newServices(cfg.ProjectID).drafts.Latest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printDraft(os.Stdout, d)
		return nil
	},
}

var draftAssembleCmd = &cobra.Command{
	Use:   "assemble <idea-id>",
	Short: "Build or rebuild the post draft from caption and assets",
	Long: `Build the post draft of an idea. Without --caption the latest succeeded
caption is used; without --asset every succeeded asset is selected, in
creation order. Approved drafts must be unapproved before reassembly.

Examples:
  clipforge draft assemble i_42
  clipforge draft assemble i_42 --caption c_7 --asset a_1 --asset v_3
  clipforge draft assemble i_42 --schedule 2026-06-01T18:30:00+02:00`,
	Args: cobra.ExactArgs(1),
	RunE: runDraftAssemble,
}

var draftModerateCmd = &cobra.Command{
	Use:   "moderate <idea-id>",
	Short: "Run the automated moderation checks",
	Args:  cobra.ExactArgs(1),
	RunE: draftAction(func(ctx context.Context, s *services, ideaID string) (*models.PostDraft, error) {
		return s.drafts.Moderate(ctx, ideaID)
	}),
}

var draftApproveCmd = &cobra.Command{
	Use:   "approve <idea-id>",
	Short: "Approve the draft for publishing",
	Long: `Approve the post draft. A draft whose moderation failed needs a single
override reason covering every failing check.

Examples:
  clipforge draft approve i_42
  clipforge draft approve i_42 --reason "client-approved, minor"`,
	Args: cobra.ExactArgs(1),
	RunE: draftAction(func(ctx context.Context, s *services, ideaID string) (*models.PostDraft, error) {
		return s.drafts.Approve(ctx, ideaID, draftReason)
	}),
}

var draftUnapproveCmd = &cobra.Command{
	Use:   "unapprove <idea-id>",
	Short: "Return an approved draft to draft status",
	Args:  cobra.ExactArgs(1),
	RunE: draftAction(func(ctx context.Context, s *services, ideaID string) (*models.PostDraft, error) {
		return s.drafts.Unapprove(ctx, ideaID)
	}),
}

var draftPublishCmd = &cobra.Command{
	Use:   "publish <idea-id>",
	Short: "Mark an approved draft as published",
	Args:  cobra.ExactArgs(1),
	RunE: draftAction(func(ctx context.Context, s *services, ideaID string) (*models.PostDraft, error) {
		return s.drafts.MarkPublished(ctx, ideaID)
	}),
}

var draftExportCmd = &cobra.Command{
	Use:   "export <idea-id>",
	Short: "Export the draft with its idea, caption and assets",
	Long: `Export the denormalized post draft. Output goes to stdout unless --out
names a directory or --upload sends it to the configured MinIO bucket,
in which case a presigned download URL is printed.

Examples:
  clipforge draft export i_42
  clipforge draft export i_42 --format yaml --out ./exports
  clipforge draft export i_42 --format markdown --upload`,
	Args: cobra.ExactArgs(1),
	RunE: runDraftExport,
}

func init() {
	draftAssembleCmd.Flags().StringVar(&draftCaption, "caption", "", "caption id (default: latest succeeded caption)")
	draftAssembleCmd.Flags().StringArrayVar(&draftAssets, "asset", nil, "asset id to include (repeatable, default: all succeeded assets)")
	draftAssembleCmd.Flags().StringVar(&draftSchedule, "schedule", "", "publish time (RFC3339)")

	draftApproveCmd.Flags().StringVarP(&draftReason, "reason", "r", "", "override reason for a failed moderation")

	draftExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "export format (json, yaml, markdown)")
	draftExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write into this directory instead of stdout")
	draftExportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload to the configured MinIO bucket")

	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftAssembleCmd)
	draftCmd.AddCommand(draftModerateCmd)
	draftCmd.AddCommand(draftApproveCmd)
	draftCmd.AddCommand(draftUnapproveCmd)
	draftCmd.AddCommand(draftPublishCmd)
	draftCmd.AddCommand(draftExportCmd)
}

// draftAction adapts a lifecycle call into a RunE that prints the result.
func draftAction(call func(context.Context, *services, string) (*models.PostDraft, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, err := call(cmd.Context(), newServices(cfg.ProjectID), args[0])
		if err != nil {
			return err
		}
		printDraft(os.Stdout, d)
		return nil
	}
}

func runDraftAssemble(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ideaID := args[0]

	detail, err := apiClient.GetIdea(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("get idea: %w", err)
	}
	a, err := assemblyFor(detail, draftCaption, draftAssets, draftSchedule)
	if err != nil {
		return err
	}

	d, err := newServices(cfg.ProjectID).drafts.Assemble(ctx, ideaID, a)
	if errors.Is(err, publish.ErrNoChanges) {
		fmt.Println("Draft is already up to date.")
		printDraft(os.Stdout, d)
		return nil
	}
	if err != nil {
		return err
	}
	printDraft(os.Stdout, d)
	return nil
}

// assemblyFor fills in defaults from the idea's history.
func assemblyFor(detail *models.IdeaDetails, captionID string, assetIDs []string, schedule string) (publish.Assembly, error) {
	var a publish.Assembly

	if captionID == "" {
		if c := latestSucceededCaption(detail); c != nil {
			captionID = c.ID
		}
	}
	if captionID != "" {
		a.CaptionID = &captionID
	}

	if len(assetIDs) == 0 {
		for _, asset := range detail.Assets {
			if asset.Status == models.StatusSucceeded {
				assetIDs = append(assetIDs, asset.ID)
			}
		}
	}
	a.AssetIDs = assetIDs

	if schedule != "" {
		at, err := time.Parse(time.RFC3339, schedule)
		if err != nil {
			return a, fmt.Errorf("parse --schedule: %w", err)
		}
		a.ScheduledAt = &at
	}
	return a, nil
}

func latestSucceededCaption(detail *models.IdeaDetails) *models.Caption {
	var latest *models.Caption
	for i := range detail.Captions {
		c := &detail.Captions[i]
		if c.Status != models.StatusSucceeded {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest
}

func runDraftExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	exp, err := newServices(cfg.ProjectID).drafts.Export(ctx, args[0])
	if err != nil {
		return err
	}

	if exportOut == "" && !exportUpload {
		return export.Render(os.Stdout, exp, format)
	}

	data, err := export.Bytes(exp, format)
	if err != nil {
		return err
	}
	name := export.ObjectName(exp, format)

	var sink export.Sink = export.DirSink{Dir: exportOut}
	if exportUpload {
		if !cfg.MinIOConfigured() {
			return fmt.Errorf("--upload needs CLIPFORGE_MINIO_ENDPOINT and CLIPFORGE_MINIO_BUCKET")
		}
		sink, err = export.NewMinIOSink(export.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Prefix:    "drafts/",
		})
		if err != nil {
			return err
		}
	}

	location, err := sink.Put(ctx, name, data, format)
	if err != nil {
		return err
	}
	logger.Info("draft exported", "draft_id", exp.Draft.ID, "format", format, "location", location)
	fmt.Printf("Exported draft %s to %s\n", exp.Draft.ID, location)
	return nil
}
