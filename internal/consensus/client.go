package consensus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// peerClient issues the JSON-over-HTTP peer RPCs a Node needs to send:
// vote, heartbeat, replicate, status, state and logs (spec §6). It is the
// Node's only outbound network dependency; the inbound side (decoding
// these same requests off the wire) lives in the rpc package.
type peerClient struct {
	http *http.Client
}

func newPeerClient() *peerClient {
	return &peerClient{http: &http.Client{}}
}

func (c *peerClient) postJSON(ctx context.Context, timeout time.Duration, url string, reqBody, respBody interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

func (c *peerClient) getJSON(ctx context.Context, timeout time.Duration, url string, respBody interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

func peerBaseURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

func (c *peerClient) requestVote(ctx context.Context, timeout time.Duration, host string, port int, req VoteRequest) (VoteResponse, error) {
	var resp VoteResponse
	err := c.postJSON(ctx, timeout, peerBaseURL(host, port)+"/vote", req, &resp)
	return resp, err
}

func (c *peerClient) sendHeartbeat(ctx context.Context, timeout time.Duration, host string, port int, req HeartbeatRequest) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	err := c.postJSON(ctx, timeout, peerBaseURL(host, port)+"/heartbeat", req, &resp)
	return resp, err
}

func (c *peerClient) sendReplicate(ctx context.Context, timeout time.Duration, host string, port int, req ReplicateRequest) (ReplicateResponse, error) {
	var resp ReplicateResponse
	err := c.postJSON(ctx, timeout, peerBaseURL(host, port)+"/replicate", req, &resp)
	return resp, err
}

func (c *peerClient) getStatus(ctx context.Context, timeout time.Duration, host string, port int) (StatusView, error) {
	var resp StatusView
	err := c.getJSON(ctx, timeout, peerBaseURL(host, port)+"/status", &resp)
	return resp, err
}

func (c *peerClient) getState(ctx context.Context, timeout time.Duration, host string, port int) (StateSnapshotView, error) {
	var resp StateSnapshotView
	err := c.getJSON(ctx, timeout, peerBaseURL(host, port)+"/state", &resp)
	return resp, err
}

func (c *peerClient) getLogsFrom(ctx context.Context, timeout time.Duration, host string, port int, fromIndex uint64) ([]LogEntryView, error) {
	var resp []LogEntryView
	url := fmt.Sprintf("%s/logs/%d", peerBaseURL(host, port), fromIndex)
	err := c.getJSON(ctx, timeout, url, &resp)
	return resp, err
}
