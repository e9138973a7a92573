package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raphaelgruber/clipforge/internal/metrics"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/raphaelgruber/clipforge/internal/publish"
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func counts(c models.StageCounts) string {
	if c.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", c.Succeeded, c.Total)
}

func summaryStatus(s *models.ArtifactSummary) string {
	if s == nil {
		return "-"
	}
	return string(s.Status)
}

func printIdeas(w io.Writer, ideas []models.Idea, selected string) {
	if len(ideas) == 0 {
		fmt.Fprintln(w, "No ideas found")
		return
	}

	fmt.Fprintf(w, "  %-10s %-10s %-10s %-10s %-7s %-7s %s\n", "ID", "STATUS", "SCRIPT", "CAPTION", "IMAGES", "VIDEOS", "TOPIC")
	fmt.Fprintln(w, "  ----------------------------------------------------------------------------------")
	for _, idea := range ideas {
		marker := " "
		if idea.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %-10s %-10s %-10s %-7s %-7s %s\n",
			marker,
			truncate(idea.ID, 10),
			idea.Status,
			summaryStatus(idea.LatestScript),
			summaryStatus(idea.LatestCaption),
			counts(idea.ImageCounts),
			counts(idea.VideoCounts),
			truncate(idea.Topic, 40),
		)
	}
}

func actionText(a pipeline.Action) string {
	switch {
	case a.Loading:
		return a.Label + " (pending)"
	case a.Disabled:
		return a.Label + " (" + a.Reason + ")"
	default:
		return a.Label
	}
}

func printBoard(w io.Writer, idea models.Idea, board pipeline.Board) {
	fmt.Fprintf(w, "Idea: %s\n", idea.ID)
	if idea.Topic != "" {
		fmt.Fprintf(w, "  Topic: %s\n", idea.Topic)
	}
	if idea.Hook != "" {
		fmt.Fprintf(w, "  Hook: %s\n", idea.Hook)
	}
	if idea.Format != "" {
		fmt.Fprintf(w, "  Format: %s\n", idea.Format)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-14s %-9s %-24s %s\n", "STAGE", "STATE", "STATUS", "NEXT")
	fmt.Fprintln(w, "------------------------------------------------------------------------")
	for _, v := range board.Stages {
		fmt.Fprintf(w, "%-14s %-9s %-24s %s\n", v.Stage, v.State, v.StatusLabel, actionText(v.Action))
		if v.Facts.LatestError != "" && v.Facts.Latest == models.StatusFailed {
			fmt.Fprintf(w, "%-14s   error: %s\n", "", truncate(v.Facts.LatestError, 100))
		}
	}
}

func printRunLogs(w io.Writer, logs []models.AiRunLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No run logs found")
		return
	}

	fmt.Fprintf(w, "%-9s %-13s %-10s %-20s %-9s %s\n", "TIME", "OPERATION", "STATUS", "MODEL", "LATENCY", "IDEA")
	fmt.Fprintln(w, "--------------------------------------------------------------------------------")
	for _, l := range logs {
		latency := "-"
		if l.LatencyMs > 0 {
			latency = (time.Duration(l.LatencyMs) * time.Millisecond).String()
		}
		fmt.Fprintf(w, "%-9s %-13s %-10s %-20s %-9s %s\n",
			l.CreatedAt.Local().Format("15:04:05"),
			l.Operation,
			l.Status,
			truncate(l.Model, 20),
			latency,
			models.Deref(l.IdeaID),
		)
		if l.Error != nil && *l.Error != "" {
			fmt.Fprintf(w, "          error: %s\n", truncate(*l.Error, 100))
		}
	}
}

func formatMs(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fms", *v)
}

func formatIntMs(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *v)
}

func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "%-13s %6s %6s %6s %6s %8s %9s %9s %9s %10s %10s\n",
		"OPERATION", "COUNT", "OK", "FAIL", "ACTIVE", "SUCCESS", "AVG", "MIN", "MAX", "TOKENS IN", "TOKENS OUT")
	fmt.Fprintln(w, "-------------------------------------------------------------------------------------------------------")
	rows := append(append([]metrics.OperationSnapshot{}, snap.Operations...), snap.Total)
	for _, op := range rows {
		name := string(op.Operation)
		if name == "" {
			name = "total"
		}
		fmt.Fprintf(w, "%-13s %6d %6d %6d %6d %7.1f%% %9s %9s %9s %10d %10d\n",
			name, op.Count, op.Succeeded, op.Failed, op.Active, op.SuccessRate*100,
			formatMs(op.AvgTimeMs), formatIntMs(op.MinTimeMs), formatIntMs(op.MaxTimeMs),
			op.TotalInputTokens, op.TotalOutputTokens)
	}
}

func printDraft(w io.Writer, d *models.PostDraft) {
	fmt.Fprintf(w, "Draft: %s\n", d.ID)
	fmt.Fprintf(w, "  Idea: %s\n", d.IdeaID)
	fmt.Fprintf(w, "  Status: %s\n", d.Status)
	fmt.Fprintf(w, "  Caption: %s\n", orDash(models.Deref(d.CaptionID)))
	fmt.Fprintf(w, "  Assets: %s\n", orDash(strings.Join(d.SelectedAssets, ", ")))
	if d.ScheduledAt != nil {
		fmt.Fprintf(w, "  Scheduled: %s\n", d.ScheduledAt.Local().Format(time.RFC3339))
	}
	if d.OverrideReason != nil {
		fmt.Fprintf(w, "  Override reason: %s\n", *d.OverrideReason)
	}
	if d.ApprovedAt != nil {
		fmt.Fprintf(w, "  Approved: %s\n", d.ApprovedAt.Local().Format(time.RFC3339))
	}
	if d.PublishedAt != nil {
		fmt.Fprintf(w, "  Published: %s\n", d.PublishedAt.Local().Format(time.RFC3339))
	}

	m := d.LatestModeration
	if m == nil {
		fmt.Fprintln(w, "  Moderation: not run")
		return
	}
	fmt.Fprintf(w, "  Moderation: %s (%s)\n", m.Status, m.CreatedAt.Local().Format(time.RFC3339))
	for _, c := range m.Checks.Named() {
		mark := "✓"
		if !c.Result.Passed {
			mark = "✗"
		}
		line := fmt.Sprintf("    %s %-16s score %.2f", mark, c.Name, c.Result.Score)
		if len(c.Result.Hits) > 0 {
			line += "  hits: " + strings.Join(c.Result.Hits, ", ")
		}
		fmt.Fprintln(w, line)
	}
	if failing := publish.FailingChecks(m); len(failing) > 0 && d.Status == models.DraftStatusDraft {
		fmt.Fprintf(w, "\n  Approval needs --reason (at least %d characters).\n", publish.MinOverrideReasonLen)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
