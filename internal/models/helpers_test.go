package models

import (
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "hello", "hello"},
		{"uppercase", "Hello World", "hello-world"},
		{"underscores", "my_doc_name", "my-doc-name"},
		{"special chars stripped", "Hello, World!", "hello-world"},
		{"numbers preserved", "doc-v2.1", "doc-v21"},
		{"mixed", "My Cool_Doc (v3)", "my-cool-doc-v3"},
		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"consecutive spaces", "hello   world", "hello---world"},
		{"unicode stripped", "café résumé", "caf-rsum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		active   bool
		terminal bool
	}{
		{StatusQueued, true, false},
		{StatusRunning, true, false},
		{StatusSucceeded, false, true},
		{StatusFailed, false, true},
		{Status(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Active(); got != tt.active {
				t.Errorf("Active() = %v, want %v", got, tt.active)
			}
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestIdeaDetailsLatest(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := IdeaDetails{
		Scripts: []Script{
			{ID: "s2", Status: StatusRunning, CreatedAt: base.Add(time.Minute)},
			{ID: "s1", Status: StatusSucceeded, CreatedAt: base},
		},
		Assets: []Asset{
			{ID: "a1", Type: AssetImage},
			{ID: "a2", Type: AssetVideo},
			{ID: "a3", Type: AssetImage},
		},
	}

	if got := d.LatestScript(); got == nil || got.ID != "s2" {
		t.Errorf("LatestScript() = %v, want s2", got)
	}
	if got := d.LatestCaption(); got != nil {
		t.Errorf("LatestCaption() = %v, want nil", got)
	}
	if got := d.AssetsOfType(AssetImage); len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a3" {
		t.Errorf("AssetsOfType(image) = %v", got)
	}
}
