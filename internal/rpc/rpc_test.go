package rpc

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/printforge/internal/consensus"
)

func newTestServer(t *testing.T, port int, asLeader bool) (*Server, *consensus.Node) {
	t.Helper()
	dir := t.TempDir()
	node, err := consensus.NewNode(consensus.NodeConfig{
		NodeID:       "node_test",
		Host:         "127.0.0.1",
		Port:         port,
		SnapshotPath: filepath.Join(dir, "state.json"),
		LogPath:      filepath.Join(dir, "log.json"),
		RegistryPath: filepath.Join(dir, "peers.json"),
	})
	require.NoError(t, err)
	if asLeader {
		consensus.ForceLeaderForTest(node)
	}
	return NewServer(node, "127.0.0.1:0"), node
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreatePrinterRejectedWhenNotLeader(t *testing.T) {
	s, _ := newTestServer(t, 9101, false)
	rec := doRequest(t, s, "POST", "/api/v1/printers", map[string]string{
		"id": "p1", "company": "Prusa", "model": "MK3",
	})
	assert.Equal(t, 403, rec.Code)
}

func TestCreateAndListPrinters(t *testing.T) {
	s, _ := newTestServer(t, 9102, true)
	rec := doRequest(t, s, "POST", "/api/v1/printers", map[string]string{
		"id": "p1", "company": "Prusa", "model": "MK3",
	})
	require.Equal(t, 201, rec.Code)

	rec = doRequest(t, s, "GET", "/api/v1/printers", nil)
	require.Equal(t, 200, rec.Code)
	var printers []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &printers))
	require.Len(t, printers, 1)
	assert.Equal(t, "p1", printers[0]["id"])
}

func TestDuplicatePrinterRejectedWith400(t *testing.T) {
	s, _ := newTestServer(t, 9103, true)
	body := map[string]string{"id": "p1", "company": "Prusa", "model": "MK3"}
	rec := doRequest(t, s, "POST", "/api/v1/printers", body)
	require.Equal(t, 201, rec.Code)

	rec = doRequest(t, s, "POST", "/api/v1/printers", body)
	assert.Equal(t, 400, rec.Code)
}

func TestWeightAccountingScenario(t *testing.T) {
	s, _ := newTestServer(t, 9104, true)

	doRequest(t, s, "POST", "/api/v1/printers", map[string]string{"id": "pA", "company": "Prusa", "model": "MK3"})
	doRequest(t, s, "POST", "/api/v1/printers", map[string]string{"id": "pB", "company": "Prusa", "model": "MK3"})
	doRequest(t, s, "POST", "/api/v1/filaments", map[string]interface{}{
		"id": "f1", "type": "PLA", "color": "red", "total_weight_in_grams": 1000,
	})

	rec := doRequest(t, s, "POST", "/api/v1/jobs", map[string]interface{}{
		"id": "j1", "printer_id": "pA", "filament_id": "f1", "filepath": "a.gcode", "print_weight_in_grams": 500,
	})
	require.Equal(t, 201, rec.Code)

	// second job on the same printer is PrinterBusy.
	rec = doRequest(t, s, "POST", "/api/v1/jobs", map[string]interface{}{
		"id": "j2", "printer_id": "pA", "filament_id": "f1", "filepath": "b.gcode", "print_weight_in_grams": 500,
	})
	assert.Equal(t, 400, rec.Code)

	// retried on a different printer, it succeeds.
	rec = doRequest(t, s, "POST", "/api/v1/jobs", map[string]interface{}{
		"id": "j2", "printer_id": "pB", "filament_id": "f1", "filepath": "b.gcode", "print_weight_in_grams": 500,
	})
	require.Equal(t, 201, rec.Code)

	// the filament is now fully booked; a third job fails InsufficientFilament.
	rec = doRequest(t, s, "POST", "/api/v1/jobs", map[string]interface{}{
		"id": "j3", "printer_id": "pA", "filament_id": "f1", "filepath": "c.gcode", "print_weight_in_grams": 1,
	})
	assert.Equal(t, 400, rec.Code)
}

func TestJobStatusFlowAndIdempotence(t *testing.T) {
	s, _ := newTestServer(t, 9105, true)
	doRequest(t, s, "POST", "/api/v1/printers", map[string]string{"id": "p1", "company": "Prusa", "model": "MK3"})
	doRequest(t, s, "POST", "/api/v1/filaments", map[string]interface{}{
		"id": "f1", "type": "PLA", "color": "red", "total_weight_in_grams": 1000,
	})
	doRequest(t, s, "POST", "/api/v1/jobs", map[string]interface{}{
		"id": "j1", "printer_id": "p1", "filament_id": "f1", "filepath": "a.gcode", "print_weight_in_grams": 500,
	})

	rec := doRequest(t, s, "PATCH", "/api/v1/jobs/j1/status", map[string]string{"status": "Running"})
	require.Equal(t, 200, rec.Code)

	rec = doRequest(t, s, "PATCH", "/api/v1/jobs/j1/status", map[string]string{"status": "Done"})
	require.Equal(t, 200, rec.Code)

	rec = doRequest(t, s, "GET", "/api/v1/filaments", nil)
	var filaments []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filaments))
	require.Len(t, filaments, 1)
	assert.Equal(t, float64(500), filaments[0]["remaining_weight_in_grams"])

	// re-applying Running after Done is IllegalTransition.
	rec = doRequest(t, s, "PATCH", "/api/v1/jobs/j1/status", map[string]string{"status": "Running"})
	assert.Equal(t, 400, rec.Code)
}

func TestVoteStatusAndLogsRoutes(t *testing.T) {
	s, _ := newTestServer(t, 9106, false)

	rec := doRequest(t, s, "POST", "/vote", map[string]interface{}{"term": 1, "candidate_id": "node_other"})
	require.Equal(t, 200, rec.Code)
	var voteResp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voteResp))
	assert.True(t, voteResp["vote_granted"])

	rec = doRequest(t, s, "GET", "/status", nil)
	require.Equal(t, 200, rec.Code)

	rec = doRequest(t, s, "GET", "/logs/0", nil)
	require.Equal(t, 200, rec.Code)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}
