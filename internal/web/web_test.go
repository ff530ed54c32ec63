package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/rhymebinder/internal/allocator"
	"github.com/local/rhymebinder/internal/catalogue"
	"github.com/local/rhymebinder/internal/limiter"
	"github.com/local/rhymebinder/internal/renderer"
	"github.com/local/rhymebinder/internal/store"
)

type stubRenderer struct {
	pdf []byte
	err error
}

func (s stubRenderer) Render(ctx context.Context, school string, grade allocator.Grade) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.pdf, "rhyme_binder_" + string(grade) + ".pdf", nil
}

func newTestServer(t *testing.T, rend BinderRenderer, lim *limiter.Render) *httptest.Server {
	t.Helper()
	cat, err := catalogue.Load("")
	require.NoError(t, err)
	if lim == nil {
		lim = limiter.New(2)
	}
	srv := New(Dependencies{
		Allocator: allocator.New(cat, store.NewMemory()),
		Renderer:  rend,
		Limiter:   lim,
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func postSelect(t *testing.T, base, school, grade, code string, page int) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"school_id": school, "grade": grade, "page_index": page, "rhyme_code": code,
	})
	resp, err := http.Post(base+"/rhymes/select", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestSelectAndListSelected(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	resp := postSelect(t, ts.URL, "greenfield", "nursery", "RB001", 0)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sel allocator.Selection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sel))
	assert.Equal(t, "RB001", sel.RhymeCode)
	assert.Equal(t, allocator.Nursery, sel.Grade)
	assert.NotEmpty(t, sel.ID)

	listResp, err := http.Get(ts.URL + "/rhymes/selected/greenfield/nursery")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var sels []allocator.Selection
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&sels))
	require.Len(t, sels, 1)
	assert.Equal(t, "RB001", sels[0].RhymeCode)
}

func TestSelectUnknownRhyme(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	resp := postSelect(t, ts.URL, "greenfield", "nursery", "NOPE", 0)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectInvalidGrade(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	resp := postSelect(t, ts.URL, "greenfield", "grade9", "RB001", 0)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/rhymes/remove/greenfield/nursery/3/top", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "removing from an empty page succeeds")
}

func TestRemoveNoMatch(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	// RB011 in the packaged catalogue is a full-page rhyme.
	resp := postSelect(t, ts.URL, "greenfield", "nursery", "RB011", 0)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/rhymes/remove/greenfield/nursery/0/bottom", nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusNotFound, del.StatusCode)
}

func TestAvailableExcludesOtherGrades(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	resp := postSelect(t, ts.URL, "greenfield", "nursery", "RB001", 0)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	availResp, err := http.Get(ts.URL + "/rhymes/available/greenfield/lkg")
	require.NoError(t, err)
	defer availResp.Body.Close()
	require.Equal(t, http.StatusOK, availResp.StatusCode)
	var buckets map[string][]catalogue.Entry
	require.NoError(t, json.NewDecoder(availResp.Body).Decode(&buckets))
	for _, entries := range buckets {
		for _, e := range entries {
			assert.NotEqual(t, "RB001", e.Code, "rhyme used by another grade must not be offered")
		}
	}

	reuseResp, err := http.Get(ts.URL + "/rhymes/selected/other-grades/greenfield/lkg")
	require.NoError(t, err)
	defer reuseResp.Body.Close()
	require.Equal(t, http.StatusOK, reuseResp.StatusCode)
	var reuse map[string][]allocator.Reusable
	require.NoError(t, json.NewDecoder(reuseResp.Body).Decode(&reuse))
	found := false
	for _, entries := range reuse {
		for _, e := range entries {
			if e.Code == "RB001" {
				found = true
				assert.Contains(t, e.Grades, allocator.Nursery)
			}
		}
	}
	assert.True(t, found, "RB001 should be listed as reusable from nursery")
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	resp := postSelect(t, ts.URL, "greenfield", "ukg", "RB001", 2)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stResp, err := http.Get(ts.URL + "/rhymes/status/greenfield")
	require.NoError(t, err)
	defer stResp.Body.Close()
	require.Equal(t, http.StatusOK, stResp.StatusCode)
	var status []allocator.GradeStatus
	require.NoError(t, json.NewDecoder(stResp.Body).Decode(&status))
	require.Len(t, status, len(allocator.Grades))
	for _, gs := range status {
		if gs.Grade == allocator.UKG {
			assert.Equal(t, 1, gs.Selected)
		}
	}
}

func TestBinderDownload(t *testing.T) {
	ts := newTestServer(t, stubRenderer{pdf: []byte("%PDF-1.4 fake")}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/rhymes/binder/greenfield/nursery")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "rhyme_binder_nursery.pdf")
}

func TestBinderErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no content", renderer.ErrNoContent, http.StatusNotFound},
		{"unavailable", renderer.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, stubRenderer{err: tc.err}, nil)
			defer ts.Close()
			resp, err := http.Get(ts.URL + "/rhymes/binder/greenfield/nursery")
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestBinderLimiterSaturated(t *testing.T) {
	lim := limiter.New(1)
	release, ok := lim.Allow("greenfield", "nursery")
	require.True(t, ok)
	defer release()

	ts := newTestServer(t, stubRenderer{pdf: []byte("%PDF")}, lim)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/rhymes/binder/greenfield/nursery")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, stubRenderer{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/rhymes/select")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
