// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/stepseq/internal/engine"
	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/store"
	"github.com/aleutian-labs/stepseq/internal/store/memstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, store.Store, *engine.Registry) {
	t.Helper()
	st := memstore.New()
	m := metrics.NewSessionMetricsWith(prometheus.NewRegistry())
	log := logging.Default()
	reg := engine.NewRegistry(st, m, log)
	t.Cleanup(reg.Shutdown)

	router := NewRouter(RouterConfig{
		Registry:     reg,
		Store:        st,
		Metrics:      m,
		Log:          log,
		SPAShellHTML: "<html><head></head><body></body></html>",
	})
	return router, st, reg
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionWithoutBodyReturnsDefaultSession(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "/s/"+resp.ID, resp.URL)
}

func TestCreateSessionRejectsInvalidState(t *testing.T) {
	router, _, _ := newTestRouter(t)

	bad := model.NewDefaultSessionState()
	bad.Tempo = -5

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{State: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/"+validUUID(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetWithMalformedIDReturnsBadRequest(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	router, _, _ := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, createRec.Code)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	getRec := doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	var sess model.Session
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &sess))
	assert.Equal(t, created.ID, sess.ID)
}

func TestUpdateSessionReplacesState(t *testing.T) {
	router, _, _ := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	newState := model.NewDefaultSessionState()
	newState.Tempo = 160

	updateRec := doJSON(t, router, http.MethodPut, "/api/sessions/"+created.ID, UpdateSessionRequest{State: newState})
	require.Equal(t, http.StatusOK, updateRec.Code)

	var sess model.Session
	require.NoError(t, json.Unmarshal(updateRec.Body.Bytes(), &sess))
	assert.Equal(t, 160, sess.State.Tempo)
}

func TestUpdateSessionRejectsInvalidState(t *testing.T) {
	router, _, _ := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	bad := model.NewDefaultSessionState()
	bad.Swing = 999

	rec := doJSON(t, router, http.MethodPut, "/api/sessions/"+created.ID, UpdateSessionRequest{State: bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishThenUpdateReturnsConflict(t *testing.T) {
	router, _, _ := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	publishRec := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, publishRec.Code)

	secondPublish := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/publish", nil)
	assert.Equal(t, http.StatusConflict, secondPublish.Code)

	updateRec := doJSON(t, router, http.MethodPut, "/api/sessions/"+created.ID, UpdateSessionRequest{State: model.NewDefaultSessionState()})
	assert.Equal(t, http.StatusConflict, updateRec.Code)
}

func TestRemixCreatesIndependentCopyAndBumpsSourceCount(t *testing.T) {
	router, _, reg := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	remixRec := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/remix", nil)
	require.Equal(t, http.StatusOK, remixRec.Code)

	var remixed CreateSessionResponse
	require.NoError(t, json.Unmarshal(remixRec.Body.Bytes(), &remixed))
	assert.NotEqual(t, created.ID, remixed.ID)

	source, err := reg.Get(t.Context(), created.ID)
	require.NoError(t, err)
	sourceSess := source.Snapshot(t.Context())
	assert.Equal(t, 1, sourceSess.RemixCount)

	remix, err := reg.Get(t.Context(), remixed.ID)
	require.NoError(t, err)
	remixSess := remix.Snapshot(t.Context())
	assert.Equal(t, created.ID, remixSess.RemixedFrom)
}

func TestAdminListAndDeleteRequireNoAuthWhenUnconfigured(t *testing.T) {
	router, _, _ := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	listRec := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	var sessions []*model.Session
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	deleteRec := doJSON(t, router, http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, deleteRec.Code)

	getRec := doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func validUUID() string {
	return "11111111-1111-4111-8111-111111111111"
}
