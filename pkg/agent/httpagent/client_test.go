package httpagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/snmp/get", func(w http.ResponseWriter, r *http.Request) {
		var req agent.GetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "10.0.0.1", req.IP)
		assert.Equal(t, "public", req.Community)
		assert.Equal(t, models.SNMPv2c, req.Version)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"results": map[string]string{req.OIDs[0]: "Cisco IOS Software"},
		})
	})
	r.Post("/snmp/walk", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "request timed out"})
	})
	r.Post("/snmp/discover-vlans", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "no such community"})
	})
	r.Post("/ssh/connect", func(w http.ResponseWriter, r *http.Request) {
		var req agent.ConnectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "admin", req.Username)
		writeJSON(w, http.StatusOK, agent.ConnectResponse{SessionID: "s-1"})
	})
	r.Post("/ssh/execute", func(w http.ResponseWriter, r *http.Request) {
		var req agent.ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, agent.ExecuteResponse{Output: "ran: " + req.Command})
	})
	r.Post("/probe", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, agent.ProbeResponse{Reachable: true})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SNMPGet(t *testing.T) {
	srv := newAgentServer(t)
	c := NewClient(srv.URL+"/", Timeouts{})

	resp, err := c.SNMPGet(context.Background(), agent.GetRequest{
		SNMPTarget: agent.SNMPTarget{IP: "10.0.0.1", Community: "public", Version: models.SNMPv2c},
		OIDs:       []string{"1.3.6.1.2.1.1.1.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Cisco IOS Software", resp.Results["1.3.6.1.2.1.1.1.0"])
}

func TestClient_ErrorEnvelopeIsProtocolError(t *testing.T) {
	srv := newAgentServer(t)
	c := NewClient(srv.URL, Timeouts{})

	_, err := c.SNMPWalk(context.Background(), agent.WalkRequest{OID: "1.3.6.1.2.1.17.4.3.1.2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrProtocol))
	assert.Contains(t, err.Error(), "request timed out")

	_, err = c.DiscoverVlans(context.Background(), agent.VlanRequest{Make: "cisco"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrProtocol))
	assert.Contains(t, err.Error(), "500")
}

func TestClient_SessionLifecycle(t *testing.T) {
	srv := newAgentServer(t)
	c := NewClient(srv.URL, Timeouts{})
	ctx := context.Background()

	conn, err := c.Connect(ctx, agent.ConnectRequest{
		Method:      models.MethodSSH,
		IP:          "10.0.0.1",
		Credentials: agent.Credentials{Username: "admin", Password: "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", conn.SessionID)

	out, err := c.Execute(ctx, agent.ExecuteRequest{Method: models.MethodSSH, SessionID: conn.SessionID, Command: "show vlan brief"})
	require.NoError(t, err)
	assert.Equal(t, "ran: show vlan brief", out.Output)

	_, err = c.Connect(ctx, agent.ConnectRequest{Method: models.MethodSNMP, IP: "10.0.0.1"})
	assert.True(t, errors.Is(err, errdefs.ErrValidation))
}

func TestClient_UnreachableAgentIsConnectivityError(t *testing.T) {
	srv := newAgentServer(t)
	url := srv.URL
	srv.Close()

	err := NewClient(url, Timeouts{}).Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrConnectivity))
}

func TestClient_TimeoutIsProtocolError(t *testing.T) {
	srv := newAgentServer(t)
	c := NewClient(srv.URL, Timeouts{Get: 20 * time.Millisecond})

	_, err := c.Probe(context.Background(), agent.ProbeRequest{IP: "10.0.0.9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrProtocol))
}
