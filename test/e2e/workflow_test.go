// Package e2e drives the full stack end to end: a real three-node cluster
// fronted by the stateless client router, exercising the print-job
// lifecycle scenarios spec.md §8 walks through by hand.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/printforge/internal/consensus"
	"github.com/cuemby/printforge/internal/router"
	"github.com/cuemby/printforge/internal/rpc"
)

type clusterNode struct {
	node   *consensus.Node
	server *rpc.Server
	cancel context.CancelFunc
}

func startClusterAndRouter(t *testing.T, basePort int) (registryPath string, routerSrv *httptest.Server) {
	t.Helper()

	registryPath = t.TempDir() + "/peers.json"
	timing := consensus.Config{
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatPeriod:    50 * time.Millisecond,
		DiscoveryInterval:  200 * time.Millisecond,
		ElectionTick:       20 * time.Millisecond,
		RPCTimeout:         200 * time.Millisecond,
		ReplicateTimeout:   200 * time.Millisecond,
	}

	dir := t.TempDir()
	var nodes []*clusterNode
	for i := 0; i < 3; i++ {
		port := basePort + i
		nodeID := fmt.Sprintf("node_%d", port)

		node, err := consensus.NewNode(consensus.NodeConfig{
			NodeID:       nodeID,
			Host:         "127.0.0.1",
			Port:         port,
			SnapshotPath: fmt.Sprintf("%s/state_%s.json", dir, nodeID),
			LogPath:      fmt.Sprintf("%s/log_%d.json", dir, port),
			RegistryPath: registryPath,
			Timing:       timing,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, node.Start(ctx))

		server := rpc.NewServer(node, fmt.Sprintf("127.0.0.1:%d", port))
		go server.Start()

		nodes = append(nodes, &clusterNode{node: node, server: server, cancel: cancel})
	}

	t.Cleanup(func() {
		for _, cn := range nodes {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			_ = cn.server.Stop(shutdownCtx)
			shutdownCancel()
			cn.node.Stop()
			cn.cancel()
		}
	})

	elected := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !elected {
		for _, cn := range nodes {
			if cn.node.IsLeader() {
				elected = true
				break
			}
		}
		if !elected {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if !elected {
		t.Fatal("no leader elected within timeout")
	}

	rt := router.New(registryPath)
	routerSrv = httptest.NewServer(rt.Handler())
	t.Cleanup(routerSrv.Close)
	return registryPath, routerSrv
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]interface{}) {
	t.Helper()
	status, raw := doRaw(t, method, url, body)
	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)
	return status, decoded
}

func doJSONArray(t *testing.T, method, url, body string) (int, []interface{}) {
	t.Helper()
	status, raw := doRaw(t, method, url, body)
	var decoded []interface{}
	_ = json.Unmarshal(raw, &decoded)
	return status, decoded
}

func doRaw(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// TestPrintJobLifecycleThroughRouter covers spec §8 scenarios 3 and 4: a
// client that only ever talks to the router creates a printer and a filament
// spool, submits a job that is rejected for insufficient filament, then
// submits a smaller job and walks it through its full running/done
// transition with filament accounting applied.
func TestPrintJobLifecycleThroughRouter(t *testing.T) {
	_, routerSrv := startClusterAndRouter(t, 15401)
	base := routerSrv.URL + "/proxy"

	status, _ := doJSON(t, http.MethodPost, base+"/api/v1/printers",
		`{"id":"printer-1","company":"Prusa","model":"MK4"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, http.MethodPost, base+"/api/v1/filaments",
		`{"id":"filament-1","type":"PLA","color":"black","total_weight_in_grams":600}`)
	require.Equal(t, http.StatusCreated, status)

	// a job asking for more filament than remains must be rejected.
	status, body := doJSON(t, http.MethodPost, base+"/api/v1/jobs",
		`{"id":"job-1","printer_id":"printer-1","filament_id":"filament-1","filepath":"/models/bracket.gcode","print_weight_in_grams":900}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, fmt.Sprint(body["error"]), "Filament")

	// a job within the remaining weight succeeds and can be walked to done.
	status, _ = doJSON(t, http.MethodPost, base+"/api/v1/jobs",
		`{"id":"job-2","printer_id":"printer-1","filament_id":"filament-1","filepath":"/models/bracket.gcode","print_weight_in_grams":100}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, http.MethodPatch, base+"/api/v1/jobs/job-2/status", `{"status":"Running"}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, http.MethodPatch, base+"/api/v1/jobs/job-2/status", `{"status":"Done"}`)
	require.Equal(t, http.StatusOK, status)

	status, filaments := doJSONArray(t, http.MethodGet, base+"/api/v1/filaments", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, filaments, 1)
	spool := filaments[0].(map[string]interface{})
	require.Equal(t, float64(500), spool["remaining_weight_in_grams"])

	// re-transitioning a finished job is illegal.
	status, _ = doJSON(t, http.MethodPatch, base+"/api/v1/jobs/job-2/status", `{"status":"Running"}`)
	require.Equal(t, http.StatusBadRequest, status)
}
