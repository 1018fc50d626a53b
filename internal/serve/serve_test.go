package serve

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/model"
)

func writeModelBundle(t *testing.T, params *model.LinearParameters) string {
	t.Helper()
	dir := t.TempDir()
	data, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, model.ParamsFile), data, 0o644))
	return dir
}

func regressorBundle(t *testing.T) string {
	return writeModelBundle(t, &model.LinearParameters{
		ModelType:    model.Regressor,
		Target:       "y",
		Features:     []string{"a", "b"},
		Intercept:    1.0,
		Coefficients: []float64{2.0, 3.0},
	})
}

func newLoadedServer(t *testing.T, modelDir string) *Server {
	t.Helper()
	s := NewServer(Config{ModelDir: modelDir})
	require.NoError(t, s.Load())
	return s
}

func TestPing(t *testing.T) {
	s := NewServer(Config{ModelDir: regressorBundle(t)})
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, s.Load())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvocationsRegression(t *testing.T) {
	s := newLoadedServer(t, regressorBundle(t))
	router := s.Router()

	body := "a,b\n10,2\n0,0\n"
	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(body))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeCSV, rec.Header().Get("Content-Type"))

	f, err := frame.FromCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	f.ConvertNumeric()
	assert.Equal(t, []string{"a", "b", "prediction"}, f.Columns)
	require.Equal(t, 2, f.NumRows())
	assert.InDelta(t, 27.0, f.Rows[0][2].(float64), 1e-9)
	assert.InDelta(t, 1.0, f.Rows[1][2].(float64), 1e-9)
}

func TestInvocationsClassifierAddsProbaColumns(t *testing.T) {
	dir := writeModelBundle(t, &model.LinearParameters{
		ModelType:       model.Classifier,
		Target:          "label",
		Features:        []string{"x"},
		Classes:         []string{"high", "low"},
		ClassIntercepts: []float64{-5, 5},
		ClassWeights:    [][]float64{{2}, {-2}},
	})
	s := newLoadedServer(t, dir)
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("x\n10\n0\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f, err := frame.FromCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	f.ConvertNumeric()
	assert.Equal(t, []string{"x", "prediction", "high_proba", "low_proba"}, f.Columns)
	assert.Equal(t, "high", f.Rows[0][1])
	assert.Equal(t, "low", f.Rows[1][1])
	assert.Greater(t, f.Rows[0][2].(float64), 0.99)
}

func TestInvocationsQuantileColumns(t *testing.T) {
	dir := writeModelBundle(t, &model.LinearParameters{
		ModelType:    model.QuantileRegressor,
		Target:       "y",
		Features:     []string{"a"},
		Intercept:    0,
		Coefficients: []float64{1},
		Quantiles:    map[string]float64{"q_05": -2, "q_50": 0, "q_95": 2},
	})
	s := newLoadedServer(t, dir)
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("a\n10\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f, err := frame.FromCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	f.ConvertNumeric()
	assert.Equal(t, []string{"a", "prediction", "q_05", "q_50", "q_95"}, f.Columns)
	assert.InDelta(t, 8.0, f.Rows[0][2].(float64), 1e-9)
	assert.InDelta(t, 12.0, f.Rows[0][4].(float64), 1e-9)
}

func TestInvocationsMissingFeatureColumn(t *testing.T) {
	s := newLoadedServer(t, regressorBundle(t))
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("a\n1\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "b")
}

func TestInvocationsBadRowProducesEmptyPrediction(t *testing.T) {
	s := newLoadedServer(t, regressorBundle(t))
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("a,b\n1,oops\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f, err := frame.FromCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	idx := f.ColumnIndex("prediction")
	assert.Equal(t, "", f.Rows[0][idx])
}

func TestColdStartReturns503ThenRecovers(t *testing.T) {
	s := NewServer(Config{
		ModelDir:    regressorBundle(t),
		FreezeAfter: time.Minute,
	})
	router := s.Router()

	// No model loaded yet: first request cold starts.
	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("a,b\n1,1\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// The background reload finishes quickly for the local bundle.
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		return rec.Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	req = httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("a,b\n1,1\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFreezeAfterIdleWindow(t *testing.T) {
	s := newLoadedServer(t, regressorBundle(t))
	s.freezeAfter = 10 * time.Millisecond
	router := s.Router()

	time.Sleep(30 * time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader("a,b\n1,1\n"))
	req.Header.Set("Content-Type", ContentTypeCSV)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnsupportedContentType(t *testing.T) {
	s := newLoadedServer(t, regressorBundle(t))
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
