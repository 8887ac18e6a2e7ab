package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notho/socialgen/internal/importer"
	"github.com/notho/socialgen/internal/model"
)

// mockImportService はImportServiceInterfaceのモック実装。
type mockImportService struct {
	importFeedFn func(ctx context.Context, req importer.Request) (*importResponse, error)
}

func (m *mockImportService) ImportFeed(ctx context.Context, req importer.Request) (*importResponse, error) {
	if m.importFeedFn != nil {
		return m.importFeedFn(ctx, req)
	}
	return &importResponse{}, nil
}

func TestImportHandler_ImportPosts_Success(t *testing.T) {
	h := NewImportHandler(&mockImportService{
		importFeedFn: func(_ context.Context, req importer.Request) (*importResponse, error) {
			if req.UserID != "ctx-user" {
				t.Errorf("UserID = %q, want ctx-user", req.UserID)
			}
			if req.URL != "https://example.com/blog" || req.Platform != model.PlatformLinkedIn || req.Limit != 3 {
				t.Errorf("unexpected request: %+v", req)
			}
			return &importResponse{
				FeedURL: "https://example.com/feed.xml",
				Posts:   []postResponse{{ID: "p1"}, {ID: "p2"}},
				Count:   2,
			}, nil
		},
	})

	req := withUserID(postJSON("/api/posts/import", `{"url":"https://example.com/blog","platform":"linkedin","limit":3}`), "ctx-user")
	w := httptest.NewRecorder()
	h.ImportPosts(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp importResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Posts) != 2 || resp.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestImportHandler_ImportPosts_BodyUserID(t *testing.T) {
	var gotUser string
	h := NewImportHandler(&mockImportService{
		importFeedFn: func(_ context.Context, req importer.Request) (*importResponse, error) {
			gotUser = req.UserID
			return &importResponse{}, nil
		},
	})

	req := withUserID(postJSON("/api/posts/import", `{"user_id":"body-user","url":"https://e.com","platform":"twitter"}`), "ctx-user")
	h.ImportPosts(httptest.NewRecorder(), req)

	if gotUser != "body-user" {
		t.Errorf("UserID = %q, want body-user", gotUser)
	}
}

func TestImportHandler_ImportPosts_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid url", model.NewInvalidURLError("ftp://x"), http.StatusBadRequest},
		{"blocked", model.NewSSRFBlockedError(), http.StatusForbidden},
		{"fetch failed", model.NewFetchFailedError("timeout"), http.StatusBadGateway},
		{"not detected", model.NewFeedNotDetectedError("https://e.com"), http.StatusUnprocessableEntity},
		{"parse failed", model.NewParseFailedError(), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewImportHandler(&mockImportService{
				importFeedFn: func(context.Context, importer.Request) (*importResponse, error) {
					return nil, tt.err
				},
			})

			w := httptest.NewRecorder()
			h.ImportPosts(w, withUserID(postJSON("/api/posts/import", `{"url":"https://e.com","platform":"twitter"}`), "u"))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestImportHandler_ImportPosts_MalformedJSON(t *testing.T) {
	h := NewImportHandler(&mockImportService{})

	w := httptest.NewRecorder()
	h.ImportPosts(w, postJSON("/api/posts/import", `[`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
