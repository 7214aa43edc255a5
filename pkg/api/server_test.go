package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/agent/mocks"
	"github.com/scottpeterman/netdisco/pkg/discovery"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/persistence"
)

func newTestServer(t *testing.T, m agent.Agent, store *persistence.Store) *Server {
	t.Helper()
	engine, err := discovery.New(m, discovery.Options{DisableEntityMIB: true})
	require.NoError(t, err)
	return NewServer(context.Background(), engine, store)
}

func do(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func startRun(t *testing.T, server *Server, body string) string {
	t.Helper()
	rr := do(t, server, http.MethodPost, "/api/v1/runs", body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func waitForState(t *testing.T, server *Server, id, state string) RunStatus {
	t.Helper()
	var st RunStatus
	require.Eventually(t, func() bool {
		rr := do(t, server, http.MethodGet, "/api/v1/runs/"+id, "")
		if rr.Code != http.StatusOK {
			return false
		}
		st = RunStatus{}
		return json.Unmarshal(rr.Body.Bytes(), &st) == nil && st.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return st
}

func TestHealthz(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	server := newTestServer(t, mocks.NewMockAgent(ctrl), nil)

	rr := do(t, server, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateRun_BadRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	server := newTestServer(t, mocks.NewMockAgent(ctrl), nil)

	for name, body := range map[string]string{
		"malformed":     `{"cidr":`,
		"unknown field": `{"cidr":"10.0.0.0/30","bogus":true}`,
		"invalid cidr":  `{"cidr":"10.0.0.0/33"}`,
		"nothing to do": `{}`,
	} {
		rr := do(t, server, http.MethodPost, "/api/v1/runs", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
		assert.Contains(t, rr.Body.String(), "error", name)
	}
}

func TestRunLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)
	m.EXPECT().Health(gomock.Any()).Return(nil)
	m.EXPECT().Probe(gomock.Any(), gomock.Any()).Return(&agent.ProbeResponse{}, nil).Times(2)

	store, err := persistence.NewStore(filepath.Join(t.TempDir(), "runs"), 5, false)
	require.NoError(t, err)
	server := newTestServer(t, m, store)

	id := startRun(t, server, `{"cidr":"10.0.0.0/30"}`)
	st := waitForState(t, server, id, StateCompleted)

	require.NotNil(t, st.Result)
	assert.Equal(t, id, st.Result.RunID)
	assert.Equal(t, int64(2), st.Result.TotalHosts)
	assert.Empty(t, st.Result.Devices)
	require.NotNil(t, st.Progress)
	assert.Equal(t, 100, st.Progress.Percent)
	assert.Empty(t, st.Error)

	rr := do(t, server, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []RunStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Nil(t, list[0].Result)

	// the snapshot outlives the in-memory registry
	require.Eventually(t, func() bool {
		names, err := store.List()
		return err == nil && len(names) == 1
	}, 5*time.Second, 10*time.Millisecond)

	restarted := newTestServer(t, mocks.NewMockAgent(ctrl), store)
	rr = do(t, restarted, http.MethodGet, "/api/v1/runs/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var saved RunStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))
	assert.Equal(t, StateCompleted, saved.State)
	assert.NotNil(t, saved.SnapshotAt)
	require.NotNil(t, saved.Result)
	assert.Equal(t, "10.0.0.0/30", saved.Result.CIDR)
}

func TestCancelRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)

	probing := make(chan struct{}, 1)
	m.EXPECT().Health(gomock.Any()).Return(nil)
	m.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ agent.ProbeRequest) (*agent.ProbeResponse, error) {
		select {
		case probing <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}).MinTimes(1)

	server := newTestServer(t, m, nil)
	id := startRun(t, server, `{"cidr":"10.0.0.0/24"}`)

	select {
	case <-probing:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started probing")
	}

	rr := do(t, server, http.MethodDelete, "/api/v1/runs/"+id, "")
	assert.Equal(t, http.StatusAccepted, rr.Code)

	st := waitForState(t, server, id, StateCancelled)
	assert.NotEmpty(t, st.Error)
	require.NotNil(t, st.Result)
	assert.Empty(t, st.Result.Devices)
}

func TestFailedRunReportsErrorKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)
	m.EXPECT().Health(gomock.Any()).Return(errors.New("connection refused"))

	server := newTestServer(t, m, nil)
	id := startRun(t, server, `{"cidr":"10.0.0.0/30"}`)

	st := waitForState(t, server, id, StateFailed)
	assert.Equal(t, "connectivity", st.ErrorKind)
	assert.Contains(t, st.Error, "connection refused")
}

func TestHTTPStatusByKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, httpStatus(errdefs.Validationf("op", "bad")))
	assert.Equal(t, http.StatusBadGateway, httpStatus(errdefs.Connectivity("op", errors.New("down"))))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(errors.New("other")))
}

func TestRunNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	server := newTestServer(t, mocks.NewMockAgent(ctrl), nil)

	rr := do(t, server, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, server, http.MethodGet, "/api/v1/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, server, http.MethodDelete, "/api/v1/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	server := newTestServer(t, mocks.NewMockAgent(ctrl), nil)

	rr := do(t, server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
