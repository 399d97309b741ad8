package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadops-cli/internal/artifact"
	"github.com/sells-group/leadops-cli/internal/pipeline"
	"github.com/sells-group/leadops-cli/internal/report"
)

type mockReports struct {
	mock.Mock
}

func (m *mockReports) Cohort(ctx context.Context) (report.Cohort, error) {
	args := m.Called(ctx)
	return args.Get(0).(report.Cohort), args.Error(1)
}

func (m *mockReports) Funnel(ctx context.Context, opts report.FunnelOptions) ([]report.FunnelRow, error) {
	args := m.Called(ctx, opts)
	rows, _ := args.Get(0).([]report.FunnelRow)
	return rows, args.Error(1)
}

func (m *mockReports) CachedFunnel(ctx context.Context) ([]report.FunnelRow, time.Time, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]report.FunnelRow)
	return rows, args.Get(1).(time.Time), args.Error(2)
}

func (m *mockReports) Duplicates(ctx context.Context, opts report.DuplicateOptions) ([]report.DuplicateRow, error) {
	args := m.Called(ctx, opts)
	rows, _ := args.Get(0).([]report.DuplicateRow)
	return rows, args.Error(1)
}

func (m *mockReports) UploadLeads(ctx context.Context, header []string, rows [][]string, dryRun bool) (pipeline.UploadResult, error) {
	args := m.Called(ctx, header, rows, dryRun)
	return args.Get(0).(pipeline.UploadResult), args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewRouter(&mockReports{}, pinger{}, []string{"*"})
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	h = NewRouter(&mockReports{}, pinger{err: errors.New("conn refused")}, []string{"*"})
	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(&mockReports{}, nil, []string{"*"})
	serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leadops_http_requests_total")
}

func TestCORS(t *testing.T) {
	h := NewRouter(&mockReports{}, nil, []string{"https://dash.example.com"})
	req := httptest.NewRequest(http.MethodOptions, "/reports/cohort", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := serve(t, h, req)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCohort(t *testing.T) {
	m := &mockReports{}
	m.On("Cohort", mock.Anything).Return(report.Cohort{Weeks: 2}, nil).Once()
	m.On("Cohort", mock.Anything).Return(report.Cohort{}, errors.New("db down")).Once()
	h := NewRouter(m, nil, []string{"*"})

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/reports/cohort", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var c report.Cohort
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, 2, c.Weeks)

	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/reports/cohort", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	m.AssertExpectations(t)
}

func TestFunnel_MissingArtifactIsPlaceholder(t *testing.T) {
	m := &mockReports{}
	m.On("CachedFunnel", mock.Anything).Return(nil, time.Time{}, artifact.ErrNotBuilt)
	h := NewRouter(m, nil, []string{"*"})

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/reports/funnel-channel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), report.NoDataLabel)
	assert.NotContains(t, rec.Body.String(), "built_at")
}

func TestFunnel_Cached(t *testing.T) {
	built := time.Date(2024, 1, 12, 3, 0, 0, 0, time.UTC)
	m := &mockReports{}
	m.On("CachedFunnel", mock.Anything).Return([]report.FunnelRow{{Category: "chatgpt", Channel: "VK"}}, built, nil)
	h := NewRouter(m, nil, []string{"*"})

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/reports/funnel-channel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"built_at":"2024-01-12T03:00:00Z"`)
	assert.Contains(t, rec.Body.String(), `"channel":"VK"`)
}

func TestFunnel_Window(t *testing.T) {
	m := &mockReports{}
	m.On("Funnel", mock.Anything, report.FunnelOptions{
		LeadFrom:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		LeadTo:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Categories: []string{"chatgpt", "universe"},
		ROMI:       true,
	}).Return(report.FunnelPlaceholder(), nil)
	h := NewRouter(m, nil, []string{"*"})

	rec := serve(t, h, httptest.NewRequest(http.MethodGet,
		"/reports/funnel-channel?from=2024-01-04&to=2024-01-10&categories=chatgpt,universe&romi=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	m.AssertExpectations(t)
}

func TestFunnel_BadDates(t *testing.T) {
	h := NewRouter(&mockReports{}, nil, []string{"*"})
	for _, q := range []string{"from=2024-01-10&to=2024-01-04", "from=10.01.2024&to=2024-01-11", "from=2024-01-04"} {
		rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/reports/funnel-channel?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestDuplicates_DefaultsToYesterday(t *testing.T) {
	m := &mockReports{}
	day := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	m.On("Duplicates", mock.Anything, report.DuplicateOptions{From: day, To: day}).
		Return([]report.DuplicateRow{{Event: report.AllEvents, Channel: report.TotalLabel}}, nil)

	s := &server{reports: m, now: func() time.Time { return time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC) }}
	rec := serve(t, s.routes([]string{"*"}), httptest.NewRequest(http.MethodGet, "/reports/duplicates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"channel":"Total"`)
	m.AssertExpectations(t)
}

func TestDuplicates_EventFilter(t *testing.T) {
	m := &mockReports{}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	m.On("Duplicates", mock.Anything, report.DuplicateOptions{From: from, To: to, Events: []string{"gpt"}}).
		Return([]report.DuplicateRow{}, nil)

	h := NewRouter(m, nil, []string{"*"})
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/reports/duplicates?from=2024-01-01&to=2024-01-07&events=gpt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	m.AssertExpectations(t)
}

const uploadCSV = "email,phone\nann@x.ru,+79000000001\n"

func TestUpload_RawBody(t *testing.T) {
	m := &mockReports{}
	m.On("UploadLeads", mock.Anything, []string{"email", "phone"}, [][]string{{"ann@x.ru", "+79000000001"}}, true).
		Return(pipeline.UploadResult{Rows: 1, LandingPages: []string{"https://ai.example.com/gpt"}}, nil)

	h := NewRouter(m, nil, []string{"*"})
	req := httptest.NewRequest(http.MethodPost, "/leads/upload?dry_run=true", strings.NewReader(uploadCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := serve(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"landing_pages":["https://ai.example.com/gpt"]`)
	m.AssertExpectations(t)
}

func TestUpload_Multipart(t *testing.T) {
	m := &mockReports{}
	m.On("UploadLeads", mock.Anything, []string{"email", "phone"}, mock.Anything, false).
		Return(pipeline.UploadResult{Rows: 1, Inserted: 1}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(uploadCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/leads/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(t, NewRouter(m, nil, []string{"*"}), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"inserted":1`)
}

func TestUpload_Errors(t *testing.T) {
	m := &mockReports{}
	m.On("UploadLeads", mock.Anything, mock.Anything, mock.Anything, false).
		Return(pipeline.UploadResult{}, errors.New("db down"))
	h := NewRouter(m, nil, []string{"*"})

	rec := serve(t, h, httptest.NewRequest(http.MethodPost, "/leads/upload", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/leads/upload", strings.NewReader("x"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=zzz")
	rec = serve(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, httptest.NewRequest(http.MethodPost, "/leads/upload", strings.NewReader(uploadCSV)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
