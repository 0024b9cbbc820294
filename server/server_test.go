package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fortify/config"
	"fortify/model"
	"fortify/testsupport"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	gdb *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb := testsupport.NewDB(t)
	cfg := &config.Config{
		Env:           "development",
		JWTSecret:     "test-secret",
		JWTIssuer:     "fortify-test",
		JWTTTL:        time.Hour,
		StatsCacheTTL: time.Minute,
	}
	srv := httptest.NewServer(NewRouter(NewAPIHandler(Dependencies{Config: cfg, DB: gdb})))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, gdb: gdb}
}

func (s *testServer) do(method, path, token string, body interface{}) (*http.Response, []byte) {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, data
}

func (s *testServer) login(email string) (string, int64) {
	s.t.Helper()
	creds := map[string]string{"email": email, "password": "paradiddle"}
	resp, _ := s.do(http.MethodPost, "/api/auth/signup", "", creds)
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)

	resp, body := s.do(http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(s.t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token  string `json:"token"`
		UserID int64  `json:"userId"`
	}
	require.NoError(s.t, json.Unmarshal(body, &out))
	return out.Token, out.UserID
}

func decode(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v), string(data))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "fortify_http_request_duration_seconds")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"email": "Drummer@Example.com", "password": "paradiddle"}

	resp, body := s.do(http.MethodPost, "/api/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	decode(t, body, &created)
	require.Equal(t, "drummer@example.com", created["email"])

	resp, body = s.do(http.MethodPost, "/api/auth/signup", "", creds)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "email already in use")

	resp, body = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "drummer@example.com", "password": "wrong-password"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "invalid credentials")

	resp, body = s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "", "password": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody errorBody
	decode(t, body, &errBody)
	require.Len(t, errBody.Errors, 2)

	resp, _ = s.do(http.MethodPost, "/api/auth/login", "", "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token, userID := s.login("second@example.com")
	resp, body = s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile userProfile
	decode(t, body, &profile)
	require.Equal(t, userID, profile.ID)
	require.Equal(t, "second@example.com", profile.Email)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/rudiments"},
		{http.MethodPost, "/api/sessions"},
		{http.MethodGet, "/api/sessions/history"},
		{http.MethodGet, "/api/dashboard/stats"},
		{http.MethodGet, "/api/routines/1"},
	} {
		resp, _ := s.do(route.method, route.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.path)

		resp, _ = s.do(route.method, route.path, "garbage.token.value", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.path)
	}
}

func TestRudimentRoutes(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("alice@example.com")
	otherToken, _ := s.login("bob@example.com")
	std := testsupport.CreateStandardRudiment(t, s.gdb, "Flam")

	resp, body := s.do(http.MethodPost, "/api/rudiments", token, map[string]interface{}{"name": "Linear fill", "category": "Grooves"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var custom model.Rudiment
	decode(t, body, &custom)
	require.Equal(t, 5, custom.TempoIncrement)

	resp, body = s.do(http.MethodGet, "/api/rudiments", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []model.Rudiment
	decode(t, body, &list)
	require.Len(t, list, 2)
	require.Equal(t, "Flam", list[0].Name)

	resp, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/rudiments/%d", std.ID), token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/rudiments/%d", custom.ID), otherToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, "/api/rudiments/99999", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/rudiments/%d", custom.ID), token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/api/rudiments", token, map[string]interface{}{"name": "Practised"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var practised model.Rudiment
	decode(t, body, &practised)
	resp, _ = s.do(http.MethodPost, "/api/sessions", token, map[string]interface{}{"rudimentId": practised.ID, "duration": 10, "tempo": 90, "quality": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = s.do(http.MethodDelete, fmt.Sprintf("/api/rudiments/%d", practised.ID), token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "practice sessions")

	resp, _ = s.do(http.MethodGet, "/api/rudiments/99999/suggested-tempo", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPracticeScenario(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("alice@example.com")
	otherToken, _ := s.login("bob@example.com")
	flam := testsupport.CreateStandardRudiment(t, s.gdb, "Flam")

	// Empty dashboard first.
	resp, body := s.do(http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"totalTime":0,"fastestTempo":0,"mostPracticed":"N/A"}`, string(body))

	resp, body = s.do(http.MethodPost, "/api/sessions", token, map[string]interface{}{"rudimentId": flam.ID, "duration": 20, "tempo": 100, "quality": 4})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = s.do(http.MethodPost, "/api/sessions", token, map[string]interface{}{"rudimentId": flam.ID, "duration": 0, "tempo": 10, "quality": 9})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody errorBody
	decode(t, body, &errBody)
	require.Len(t, errBody.Errors, 3)

	resp, body = s.do(http.MethodPost, "/api/sessions", token, map[string]interface{}{"rudimentId": 4242, "duration": 10, "tempo": 100, "quality": 3})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "invalid reference")

	resp, body = s.do(http.MethodGet, fmt.Sprintf("/api/rudiments/%d/suggested-tempo", flam.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"suggested_tempo":105}`, string(body))

	resp, body = s.do(http.MethodPost, "/api/routines", token, map[string]interface{}{
		"name": "Warmup",
		"items": []map[string]interface{}{
			{"rudimentId": flam.ID, "duration": "5", "tempoMode": "SMART"},
			{"rudimentId": fmt.Sprint(flam.ID), "duration": 3, "restDuration": "15"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created model.Routine
	decode(t, body, &created)
	require.Len(t, created.Items, 2)
	require.Equal(t, 60, created.Items[0].TargetTempo)
	require.Equal(t, 15, created.Items[1].RestDuration)

	routinePath := fmt.Sprintf("/api/routines/%d", created.ID)
	resp, body = s.do(http.MethodGet, routinePath+"/resolve", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved model.Routine
	decode(t, body, &resolved)
	require.Equal(t, 105, resolved.Items[0].TargetTempo)
	require.Equal(t, 60, resolved.Items[1].TargetTempo)

	resp, body = s.do(http.MethodGet, routinePath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored model.Routine
	decode(t, body, &stored)
	require.Equal(t, 60, stored.Items[0].TargetTempo)

	resp, _ = s.do(http.MethodGet, routinePath, otherToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/routines/99999", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(http.MethodPut, routinePath, token, map[string]interface{}{
		"items": []map[string]interface{}{{"rudimentId": flam.ID, "duration": 10}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated model.Routine
	decode(t, body, &updated)
	require.Len(t, updated.Items, 1)

	resp, _ = s.do(http.MethodPut, routinePath, token, map[string]interface{}{"items": []interface{}{}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"totalTime":20,"fastestTempo":100,"mostPracticed":"Flam"}`, string(body))

	resp, body = s.do(http.MethodGet, "/api/sessions/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []model.DailyPractice
	decode(t, body, &history)
	require.Len(t, history, 1)
	require.Equal(t, 20, history[0].Count)

	resp, _ = s.do(http.MethodDelete, routinePath, otherToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = s.do(http.MethodDelete, routinePath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "message")
	resp, _ = s.do(http.MethodDelete, routinePath, token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionListingAndExport(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("alice@example.com")
	flam := testsupport.CreateStandardRudiment(t, s.gdb, "Flam")
	roll := testsupport.CreateStandardRudiment(t, s.gdb, "Roll")

	for i, rudimentID := range []int64{flam.ID, roll.ID, flam.ID} {
		resp, _ := s.do(http.MethodPost, "/api/sessions", token, map[string]interface{}{"rudimentId": rudimentID, "duration": 5 + i, "tempo": 90 + i, "quality": 3})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := s.do(http.MethodGet, "/api/sessions?limit=2&search=FLA", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Sessions   []model.PracticeSession `json:"sessions"`
		Pagination struct {
			Page       int   `json:"page"`
			Limit      int   `json:"limit"`
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
		} `json:"pagination"`
	}
	decode(t, body, &page)
	require.Len(t, page.Sessions, 2)
	require.EqualValues(t, 2, page.Pagination.Total)
	require.Equal(t, 92, page.Sessions[0].Tempo)
	require.Equal(t, "Flam", page.Sessions[0].Rudiment.Name)

	resp, _ = s.do(http.MethodGet, "/api/sessions?quality=7", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/sessions/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"Date", "Rudiment", "Duration", "Tempo", "Quality"}, rows[0])

	resp, _ = s.do(http.MethodGet, "/api/sessions/export?format=pdf", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/sessions/export/archive?format=csv", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "archive route is absent without object storage")
}
