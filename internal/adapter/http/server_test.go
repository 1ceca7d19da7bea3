package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/crop-advisor-service/internal/adapter/http"
	"github.com/couchcryptid/crop-advisor-service/internal/advisor"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockAdvisor struct {
	mockReadiness
	rec        domain.Recommendation
	recErr     error
	lastReq    advisor.MLRequest
	crops      []string
	states     []string
	districts  map[string][]string
	regionErr  error
	info       advisor.ModelInfo
	infoErr    error
	retrainErr error
}

func (m *mockAdvisor) RecommendRules(season, soil string) ([]string, error) {
	s, err := domain.ParseSeason(season)
	if err != nil {
		return nil, err
	}
	return domain.RuleRecommender{}.Recommend(s, soil), nil
}

func (m *mockAdvisor) RecommendML(_ context.Context, req advisor.MLRequest) (domain.Recommendation, error) {
	m.lastReq = req
	return m.rec, m.recErr
}

func (m *mockAdvisor) RegionCrops(_ context.Context, _, _ string) ([]string, error) {
	return m.crops, m.regionErr
}

func (m *mockAdvisor) RegionStates() ([]string, error) {
	return m.states, m.regionErr
}

func (m *mockAdvisor) RegionDistricts(state string) ([]string, error) {
	if m.regionErr != nil {
		return nil, m.regionErr
	}
	d, ok := m.districts[state]
	if !ok {
		return nil, fmt.Errorf("%w: %s", region.ErrUnknownRegion, state)
	}
	return d, nil
}

func (m *mockAdvisor) Info() (advisor.ModelInfo, error) { return m.info, m.infoErr }

func (m *mockAdvisor) Retrain(_ context.Context) (advisor.ModelInfo, error) {
	if m.retrainErr != nil {
		return advisor.ModelInfo{}, m.retrainErr
	}
	return m.info, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(svc *mockAdvisor) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, svc, discardLogger())
}

func do(t *testing.T, srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&mockAdvisor{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(&mockAdvisor{}), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	svc := &mockAdvisor{mockReadiness: mockReadiness{err: advisor.ErrModelNotReady}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&mockAdvisor{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRules(t *testing.T) {
	srv := newTestServer(&mockAdvisor{})

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCrops []string
	}{
		{"kharif alluvial", "season=Kharif&soil=Alluvial", http.StatusOK, []string{"Paddy", "Maize", "Jute"}},
		{"zaid any soil", "season=Zaid&soil=Red", http.StatusOK, []string{"Watermelon", "Cucumber", "Bitter Gourd"}},
		{"default branch", "season=Rabi&soil=Sandy", http.StatusOK, []string{"Millets", "Pulses", "Sunflower"}},
		{"no soil", "season=Kharif", http.StatusOK, []string{"Millets", "Pulses", "Sunflower"}},
		{"unknown season", "season=Monsoon&soil=Black", http.StatusBadRequest, nil},
		{"missing season", "soil=Black", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/v1/rules?"+tt.query, "")
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCrops == nil {
				assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
				return
			}
			body := decode[struct {
				Crops []string `json:"crops"`
			}](t, rec)
			assert.Equal(t, tt.wantCrops, body.Crops)
		})
	}
}

func TestRecommend(t *testing.T) {
	svc := &mockAdvisor{rec: domain.Recommendation{
		Items:   []domain.ScoredCrop{{Crop: "rice", Score: 0.9, Season: "Kharif"}, {Crop: "jute", Score: 0.1, Season: "Kharif"}},
		Outcome: domain.OutcomeRanked,
		ModelID: "m-1",
		K:       5,
	}}
	srv := newTestServer(svc)

	body := `{"features":{"N":90,"P":42,"K":43,"temperature":20.8,"humidity":82,"ph":6.5,"rainfall":202.9},"soil":"Alluvial","k":2}`
	rec := do(t, srv, http.MethodPost, "/v1/recommendations", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[domain.Recommendation](t, rec)
	assert.Equal(t, svc.rec, got)
	assert.Equal(t, "Alluvial", svc.lastReq.Soil)
	assert.Equal(t, 2, svc.lastReq.K)
	assert.InDelta(t, 6.5, svc.lastReq.Features["ph"], 0)
}

func TestRecommend_NoEligibleCrop(t *testing.T) {
	svc := &mockAdvisor{rec: domain.Recommendation{
		Items:    []domain.ScoredCrop{},
		Outcome:  domain.OutcomeNoEligibleCrop,
		Filtered: true,
		K:        5,
	}}
	rec := do(t, newTestServer(svc), http.MethodPost, "/v1/recommendations",
		`{"features":{"N":1},"state":"Punjab","district":"Ludhiana"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Recommendation](t, rec)
	assert.Equal(t, domain.OutcomeNoEligibleCrop, got.Outcome)
	assert.Empty(t, got.Items)
}

func TestRecommend_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown soil", &domain.UnknownCategoryError{Label: "Peaty"}, http.StatusUnprocessableEntity},
		{"schema mismatch", fmt.Errorf("rank: %w", &domain.SchemaMismatchError{Reason: "missing feature"}), http.StatusBadRequest},
		{"invalid input", fmt.Errorf("%w: features is required", advisor.ErrInvalidInput), http.StatusBadRequest},
		{"unknown region", fmt.Errorf("%w: Kerala / Nowhere", region.ErrUnknownRegion), http.StatusNotFound},
		{"not ready", advisor.ErrModelNotReady, http.StatusServiceUnavailable},
		{"regions disabled", advisor.ErrRegionsDisabled, http.StatusNotImplemented},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAdvisor{recErr: tt.err}
			rec := do(t, newTestServer(svc), http.MethodPost, "/v1/recommendations", `{"features":{"N":1}}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestRecommend_BadBody(t *testing.T) {
	srv := newTestServer(&mockAdvisor{})

	for _, body := range []string{`not json`, `{"features":{"N":1},"colour":"green"}`, `{"features":{"N":"high"}}`} {
		rec := do(t, srv, http.MethodPost, "/v1/recommendations", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRecommend_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&mockAdvisor{}), http.MethodGet, "/v1/recommendations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegionCrops(t *testing.T) {
	svc := &mockAdvisor{crops: []string{"rice", "wheat"}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/v1/regions/Punjab/Ludhiana/crops", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		State    string   `json:"state"`
		District string   `json:"district"`
		Crops    []string `json:"crops"`
	}](t, rec)
	assert.Equal(t, "Punjab", got.State)
	assert.Equal(t, "Ludhiana", got.District)
	assert.Equal(t, []string{"rice", "wheat"}, got.Crops)
}

func TestRegionCrops_Unknown(t *testing.T) {
	svc := &mockAdvisor{regionErr: fmt.Errorf("%w: x / y", region.ErrUnknownRegion)}
	rec := do(t, newTestServer(svc), http.MethodGet, "/v1/regions/x/y/crops", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegionStates(t *testing.T) {
	svc := &mockAdvisor{states: []string{"Punjab", "Uttar Pradesh"}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/v1/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		States []string `json:"states"`
	}](t, rec)
	assert.Equal(t, []string{"Punjab", "Uttar Pradesh"}, got.States)
}

func TestRegionStates_Disabled(t *testing.T) {
	svc := &mockAdvisor{regionErr: advisor.ErrRegionsDisabled}
	rec := do(t, newTestServer(svc), http.MethodGet, "/v1/regions", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRegionDistricts(t *testing.T) {
	svc := &mockAdvisor{districts: map[string][]string{"Punjab": {"Amritsar", "Ludhiana"}}}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodGet, "/v1/regions/Punjab/districts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		State     string   `json:"state"`
		Districts []string `json:"districts"`
	}](t, rec)
	assert.Equal(t, "Punjab", got.State)
	assert.Equal(t, []string{"Amritsar", "Ludhiana"}, got.Districts)

	rec = do(t, srv, http.MethodGet, "/v1/regions/Kerala/districts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModel(t *testing.T) {
	trainedAt := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	svc := &mockAdvisor{info: advisor.ModelInfo{ID: "m-1", TrainedAt: trainedAt, Classes: []string{"rice", "wheat"}, Trees: 100}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/v1/model", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, svc.info, decode[advisor.ModelInfo](t, rec))

	svc.infoErr = advisor.ErrModelNotReady
	rec = do(t, newTestServer(svc), http.MethodGet, "/v1/model", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRetrain(t *testing.T) {
	svc := &mockAdvisor{info: advisor.ModelInfo{ID: "m-2"}}
	rec := do(t, newTestServer(svc), http.MethodPost, "/admin/retrain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m-2", decode[advisor.ModelInfo](t, rec).ID)

	svc.retrainErr = advisor.ErrRetrainThrottled
	rec = do(t, newTestServer(svc), http.MethodPost, "/admin/retrain", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
