package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotradar/server/internal/dedup"
	"lotradar/server/internal/models"
	"lotradar/server/internal/offers"
	"lotradar/server/internal/pipeline"
)

type stubRunner struct {
	triggered chan struct{}
	err       error
}

func (s *stubRunner) TriggerRun() error {
	if s.triggered != nil {
		s.triggered <- struct{}{}
	}
	return s.err
}

func newTestRouter(t *testing.T, runner Runner) (*gin.Engine, *Handler, *offers.Archive) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	archive, err := offers.NewArchive(filepath.Join(dir, "archive.db"), logrus.New())
	require.NoError(t, err)

	ledger, err := dedup.NewLedger(filepath.Join(dir, "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	handler := NewHandler(archive, ledger, runner, logrus.New())
	router := gin.New()
	SetupRoutes(router, handler)
	return router, handler, archive
}

func seedLot(t *testing.T, archive *offers.Archive, notice string, status models.LotStatus) {
	t.Helper()
	require.NoError(t, archive.SaveLots([]*models.Lot{{
		NoticeNumber: notice,
		LotNumber:    1,
		Name:         "Нежилое помещение",
		Address:      "г. Москва, ул Тверская, д 1",
		District:     "Тверской",
		Area:         150,
		Price:        5000000,
		Status:       status,
	}}))
}

func TestGetLots(t *testing.T) {
	router, _, archive := newTestRouter(t, nil)
	seedLot(t, archive, "22000000000000000001", models.StatusApproved)
	seedLot(t, archive, "22000000000000000002", models.StatusDiscard)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var lots []offers.ArchivedLot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lots))
	assert.Len(t, lots, 2)
}

func TestGetLotsFilteredByStatus(t *testing.T) {
	router, _, archive := newTestRouter(t, nil)
	seedLot(t, archive, "22000000000000000001", models.StatusApproved)
	seedLot(t, archive, "22000000000000000002", models.StatusDiscard)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots?status=approved", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var lots []offers.ArchivedLot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lots))
	require.Len(t, lots, 1)
	assert.Equal(t, "22000000000000000001", lots[0].NoticeNumber)
}

func TestGetLotByID(t *testing.T) {
	router, _, archive := newTestRouter(t, nil)
	seedLot(t, archive, "22000000000000000001", models.StatusApproved)

	all, err := archive.ListLots("", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots/"+itoa(all[0].ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots/9999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	router, _, archive := newTestRouter(t, nil)
	seedLot(t, archive, "22000000000000000001", models.StatusApproved)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats offers.LotStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalLots)
}

func TestGetDedupStats(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dedup/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats dedup.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalRecords)
}

func TestTriggerRun(t *testing.T) {
	runner := &stubRunner{triggered: make(chan struct{}, 1)}
	router, _, _ := newTestRouter(t, runner)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/run", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	select {
	case <-runner.triggered:
	case <-time.After(time.Second):
		t.Fatal("runner was not triggered")
	}
}

func TestTriggerRunWithoutRunner(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/run", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetLastRun(t *testing.T) {
	router, handler, _ := newTestRouter(t, &stubRunner{err: errors.New("ignored")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/run/last", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	handler.SetLastReport(&pipeline.RunReport{LotsProcessed: 7})

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/run/last", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var report pipeline.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 7, report.LotsProcessed)
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
