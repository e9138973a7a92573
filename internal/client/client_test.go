package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method    string
	Path      string
	Query     string
	Body      string
	RequestID string
	Auth      string
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Body:      string(body),
		RequestID: r.Header.Get("X-Request-ID"),
		Auth:      r.Header.Get("Authorization"),
	})
	status, response := f.status, f.response
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeBackend) respond(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response = body
}

func (f *fakeBackend) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, f *fakeBackend, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(srv.URL, opts...)
}

func TestGenerateStagePaths(t *testing.T) {
	tests := []struct {
		stage      pipeline.Stage
		regenerate bool
		wantPath   string
		wantBody   string
	}{
		{pipeline.StageScript, false, "/api/ideas/idea-1/script", `{"regenerate":false}`},
		{pipeline.StageCaption, true, "/api/ideas/idea-1/caption", `{"regenerate":true}`},
		{pipeline.StageImagePrompt, true, "/api/ideas/idea-1/image-prompt", ``},
		{pipeline.StageVideoPrompt, false, "/api/ideas/idea-1/video-prompt", ``},
		{pipeline.StageImage, true, "/api/ideas/idea-1/image", `{"regenerate":true}`},
		{pipeline.StageVideo, false, "/api/ideas/idea-1/video", `{"regenerate":false}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			f := &fakeBackend{response: `{"jobId":"job-1","artifactId":"art-1","status":"queued"}`}
			c := newTestClient(t, f)

			job, err := c.GenerateStage(context.Background(), "idea-1", tt.stage, tt.regenerate)
			require.NoError(t, err)
			assert.Equal(t, "job-1", job.JobID)
			assert.Equal(t, models.StatusQueued, job.Status)

			req := f.last()
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, tt.wantPath, req.Path)
			assert.Equal(t, tt.wantBody, req.Body)
			assert.NotEmpty(t, req.RequestID)
		})
	}
}

func TestGenerateIdeas(t *testing.T) {
	f := &fakeBackend{response: `{"jobId":"job-9","status":"queued"}`}
	c := newTestClient(t, f, WithToken("secret"))

	input := models.GenerateIdeasInput{PersonaID: "per-1", Topic: "coffee", Count: 5, Format: "reel"}
	ctx := WithRequestID(context.Background(), "req-123")
	job, err := c.GenerateIdeas(ctx, "proj 1", input)
	require.NoError(t, err)
	assert.Equal(t, "job-9", job.JobID)

	req := f.last()
	assert.Equal(t, "/api/projects/proj 1/ideas/generate", req.Path)
	assert.Equal(t, "req-123", req.RequestID)
	assert.Equal(t, "Bearer secret", req.Auth)

	var sent models.GenerateIdeasInput
	require.NoError(t, json.Unmarshal([]byte(req.Body), &sent))
	assert.Equal(t, input, sent)
}

func TestListEndpoints(t *testing.T) {
	f := &fakeBackend{response: `[{"id":"i1","projectId":"p1","status":"running","latestScript":{"id":"s1","status":"succeeded","createdAt":"2026-01-01T00:00:00Z"},"imageCounts":{"succeeded":1,"total":2}}]`}
	c := newTestClient(t, f)

	ideas, err := c.ListIdeas(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, models.StatusRunning, ideas[0].Status)
	require.NotNil(t, ideas[0].LatestScript)
	assert.Equal(t, models.StatusSucceeded, ideas[0].LatestScript.Status)
	assert.Equal(t, models.StageCounts{Succeeded: 1, Total: 2}, ideas[0].ImageCounts)
	assert.Equal(t, "/api/projects/p1/ideas", f.last().Path)

	f.respond(`[{"id":"l1","operation":"ideas","status":"failed"}]`)
	logs, err := c.ListRunLogs(context.Background(), "p1", 50)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.OpIdeas, logs[0].Operation)
	assert.Equal(t, "limit=50", f.last().Query)

	f.respond(`{"id":"i1","scripts":[{"id":"s1","status":"succeeded"}],"captions":[],"assets":[{"id":"a1","type":"image","status":"queued"}]}`)
	details, err := c.GetIdea(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, "i1", details.ID)
	assert.Len(t, details.Scripts, 1)
	assert.Len(t, details.Assets, 1)
}

func TestDraftEndpoints(t *testing.T) {
	f := &fakeBackend{response: `{"id":"d1","ideaId":"i1","status":"approved","selectedAssets":["a1"]}`}
	c := newTestClient(t, f)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() (*models.PostDraft, error)
		wantPath string
		wantBody string
	}{
		{"assemble", func() (*models.PostDraft, error) {
			return c.AssembleDraft(ctx, "i1", models.AssembleDraftInput{AssetIDs: []string{"a1"}})
		}, "/api/ideas/i1/post-draft", `{"captionId":null,"assetIds":["a1"],"scheduledAt":null}`},
		{"moderate", func() (*models.PostDraft, error) { return c.ModerateDraft(ctx, "d1") }, "/api/post-drafts/d1/moderate", ``},
		{"approve", func() (*models.PostDraft, error) { return c.ApproveDraft(ctx, "d1", "") }, "/api/post-drafts/d1/approve", `{}`},
		{"approve with override", func() (*models.PostDraft, error) { return c.ApproveDraft(ctx, "d1", "client ok") }, "/api/post-drafts/d1/approve", `{"overrideReason":"client ok"}`},
		{"unapprove", func() (*models.PostDraft, error) { return c.UnapproveDraft(ctx, "d1") }, "/api/post-drafts/d1/unapprove", ``},
		{"mark published", func() (*models.PostDraft, error) { return c.MarkPublished(ctx, "d1") }, "/api/post-drafts/d1/publish/mark", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.call()
			require.NoError(t, err)
			assert.Equal(t, "d1", d.ID)
			assert.Equal(t, models.DraftStatusApproved, d.Status)

			req := f.last()
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, tt.wantPath, req.Path)
			assert.Equal(t, tt.wantBody, req.Body)
		})
	}
}

func TestLatestDraftNotFound(t *testing.T) {
	f := &fakeBackend{status: http.StatusNotFound, response: `{"error":"no draft"}`}
	c := newTestClient(t, f)

	d, err := c.LatestDraft(context.Background(), "i1")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
		sentinel    error
	}{
		{"structured", http.StatusUnprocessableEntity, `{"error":{"code":"invalid_count","message":"count must be 1-20"}}`, "count must be 1-20", "invalid_count", ErrRejected},
		{"plain string", http.StatusConflict, `{"error":"stage already running"}`, "stage already running", "", ErrRejected},
		{"message field", http.StatusBadRequest, `{"message":"bad persona"}`, "bad persona", "", ErrRejected},
		{"not json", http.StatusBadGateway, `upstream down`, "upstream down", "", nil},
		{"empty body", http.StatusNotFound, ``, "Not Found", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBackend{status: tt.status, response: tt.body}
			c := newTestClient(t, f)

			_, err := c.GenerateStage(context.Background(), "i1", pipeline.StageScript, false)
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			} else {
				assert.NotErrorIs(t, err, ErrRejected)
				assert.NotErrorIs(t, err, ErrNotFound)
			}
		})
	}
}

func TestSubscribeEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/p1/events", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ideaID := "i1"
		for _, typ := range []string{"idea.updated", "run_log.created"} {
			_ = conn.WriteJSON(models.Event{Type: typ, ProjectID: "p1", IdeaID: &ideaID})
		}
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	errStop := errors.New("stop")
	err := c.SubscribeEvents(ctx, "p1", func(ev models.Event) error {
		got = append(got, ev.Type)
		if len(got) == 2 {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, []string{"idea.updated", "run_log.created"}, got)
}

func TestSubscribeEventsCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(models.Event{Type: "hello", ProjectID: "p1"})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	connected := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- New(srv.URL).SubscribeEvents(ctx, "p1", func(models.Event) error {
			connected <- struct{}{}
			return nil
		})
	}()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop on cancel")
	}
}
