package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsource/internal/media"
	"vidsource/internal/resolver"
)

type fakeResolver struct {
	res   *media.Result
	err   error
	calls int
	last  media.Request
}

func (f *fakeResolver) Resolve(_ context.Context, req media.Request) (*media.Result, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	if err := resolver.Validate(req); err != nil {
		return nil, err
	}
	return f.res, nil
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExtractFound(t *testing.T) {
	fr := &fakeResolver{res: &media.Result{
		URL: "https://cdn.example/hn42.mp4", MediaType: media.MP4, ProviderID: media.ProviderBrowse,
	}}
	rec := post(t, New(fr, nil), `{"contentId":42,"contentKind":"movie","variant":"subtitled"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"url":"https://cdn.example/hn42.mp4","mediaType":"mp4","providerId":"A","fromCache":false}`, rec.Body.String())
	assert.Equal(t, int64(42), fr.last.ContentID)
	assert.Equal(t, media.Movie, fr.last.Kind)
}

func TestExtractSoftFailureIsOK(t *testing.T) {
	fr := &fakeResolver{res: media.NotFound(media.ProviderEmbed)}
	rec := post(t, New(fr, nil), `{"contentId":42,"contentKind":"movie","forcedProvider":"B"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":null,"providerId":"none","attemptedProvider":"B"}`, rec.Body.String())
	require.NotNil(t, fr.last.ForcedProvider)
	assert.Equal(t, media.ProviderEmbed, *fr.last.ForcedProvider)
}

func TestExtractBadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		calls int
	}{
		{"malformed json", `{"contentId":`, 0},
		{"wrong type", `{"contentId":"forty-two","contentKind":"movie"}`, 0},
		{"series without episode", `{"contentId":9,"contentKind":"series","season":1}`, 1},
		{"zero id", `{"contentId":0,"contentKind":"movie"}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeResolver{res: &media.Result{URL: "https://x.example/v.mp4"}}
			rec := post(t, New(fr, nil), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.calls, fr.calls)
		})
	}
}

func TestExtractUnexpectedError(t *testing.T) {
	fr := &fakeResolver{err: errors.New("boom")}
	rec := post(t, New(fr, nil), `{"contentId":1,"contentKind":"movie"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestExtractWrapsInvalidRequest(t *testing.T) {
	fr := &fakeResolver{err: fmt.Errorf("%w: nope", resolver.ErrInvalidRequest)}
	rec := post(t, New(fr, nil), `{"contentId":1,"contentKind":"movie"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractRejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeResolver{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extract", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeResolver{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	New(&fakeResolver{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
