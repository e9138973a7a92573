// Package export renders post draft exports and hands them to a sink.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
	"gopkg.in/yaml.v3"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, yaml/yml and markdown/md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, yaml or markdown)", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatYAML:
		return ".yaml"
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "application/json"
	}
}

// Render writes exp to w in the given format.
func Render(w io.Writer, exp *models.PostDraftExport, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(exp); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		doc, err := plain(exp)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatMarkdown:
		return renderMarkdown(w, exp)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// Bytes renders exp into memory.
func Bytes(exp *models.PostDraftExport, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, exp, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// plain converts v to generic maps so YAML keys match the JSON wire names.
func plain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal export: %w", err)
	}
	return out, nil
}

type frontmatter struct {
	Draft          string     `yaml:"draft"`
	Idea           string     `yaml:"idea"`
	Status         string     `yaml:"status"`
	Topic          string     `yaml:"topic,omitempty"`
	Hook           string     `yaml:"hook,omitempty"`
	Format         string     `yaml:"format,omitempty"`
	Hashtags       []string   `yaml:"hashtags,omitempty"`
	Assets         []string   `yaml:"assets,omitempty"`
	ScheduledAt    *time.Time `yaml:"scheduled_at,omitempty"`
	Moderation     string     `yaml:"moderation,omitempty"`
	OverrideReason string     `yaml:"override_reason,omitempty"`
}

// renderMarkdown writes the caption as a Markdown body under YAML frontmatter.
func renderMarkdown(w io.Writer, exp *models.PostDraftExport) error {
	fm := frontmatter{
		Draft:          exp.Draft.ID,
		Idea:           exp.Idea.ID,
		Status:         string(exp.Draft.Status),
		Topic:          exp.Idea.Topic,
		Hook:           exp.Idea.Hook,
		Format:         exp.Idea.Format,
		ScheduledAt:    exp.Draft.ScheduledAt,
		OverrideReason: models.Deref(exp.Draft.OverrideReason),
	}
	if exp.Caption != nil {
		fm.Hashtags = exp.Caption.Hashtags
	}
	for _, a := range exp.Assets {
		if a.URL != nil {
			fm.Assets = append(fm.Assets, *a.URL)
		} else {
			fm.Assets = append(fm.Assets, a.ID)
		}
	}
	if m := exp.Draft.LatestModeration; m != nil {
		fm.Moderation = string(m.Status)
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("encode frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")
	title := exp.Idea.Topic
	if title == "" {
		title = exp.Idea.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if exp.Idea.Hook != "" {
		fmt.Fprintf(&b, "> %s\n\n", exp.Idea.Hook)
	}
	if exp.Caption != nil && exp.Caption.Text != "" {
		b.WriteString(exp.Caption.Text)
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}
