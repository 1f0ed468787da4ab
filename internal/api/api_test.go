package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/busweaver/busweaver/pkg/cache"
	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/pipeline"
	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/store"
)

const demoTOML = `
system = "Demo"

[[clusters]]
name = "Powertrain"
kind = "can"

  [[clusters.channels]]
  name = "Main"

[[ecus]]
name = "Engine"

  [[ecus.controllers]]
  name = "EngineCan"
  kind = "can"

    [[ecus.controllers.connections]]
    channel = "Main"
    connector = "EngineConn"

[[ecus]]
name = "Dashboard"

  [[ecus.controllers]]
  name = "DashCan"
  kind = "can"

    [[ecus.controllers.connections]]
    channel = "Main"
    connector = "DashConn"

[[signals]]
name = "Speed"
bit_length = 10

[[pdus]]
name = "EngineData"
kind = "isignal-ipdu"
byte_length = 2

  [[pdus.signals]]
  signal = "Speed"
  start_position = 0
  byte_order = "most-significant-byte-last"
  transfer_property = "triggered"

[[frames]]
name = "EngineFrame"
kind = "can"
byte_length = 8

  [[frames.pdus]]
  pdu = "EngineData"
  start_position = 0
  byte_order = "most-significant-byte-last"

[[triggerings]]
channel = "Main"
frame = "EngineFrame"
senders = ["Engine"]
receivers = ["Dashboard"]

  [triggerings.can]
  id = 0x120
  addressing_mode = "standard"
  frame_type = "any"
`

// overlapTOML maps two signals onto colliding bits of the same PDU.
const overlapTOML = `
system = "Clash"

[[signals]]
name = "A"
bit_length = 10

[[signals]]
name = "B"
bit_length = 4

[[pdus]]
name = "P"
kind = "isignal-ipdu"
byte_length = 2

  [[pdus.signals]]
  signal = "A"
  start_position = 0
  byte_order = "most-significant-byte-last"
  transfer_property = "triggered"

  [[pdus.signals]]
  signal = "B"
  start_position = 5
  byte_order = "most-significant-byte-last"
  transfer_property = "triggered"
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, log.New(io.Discard))
	srv := NewServer(store.NewMemoryStore(), runner, log.New(io.Discard))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postManifest(t *testing.T, ts *httptest.Server, name, manifest string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(createTopologyRequest{
		Name:           name,
		Manifest:       manifest,
		ManifestFormat: "toml",
	})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	resp, err := http.Post(ts.URL+"/v1/topologies", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post manifest: %v", err)
	}
	return resp
}

func createDemo(t *testing.T, ts *httptest.Server, name string) *store.Document {
	t.Helper()
	resp := postManifest(t, ts, name, demoTOML)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var doc store.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return &doc
}

func decodeEnvelope(t *testing.T, body io.Reader) (code, message string) {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error.Code, env.Error.Message
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestCreateTopology(t *testing.T) {
	ts := newTestServer(t)
	doc := createDemo(t, ts, "")

	if doc.ID == "" {
		t.Error("expected generated document ID")
	}
	if doc.Name != "Demo" {
		t.Errorf("name = %q, want system name %q", doc.Name, "Demo")
	}
	if doc.SystemHash == "" {
		t.Error("expected system hash")
	}
	if doc.System == nil {
		t.Fatal("expected system in response")
	}
	if doc.Report == nil {
		t.Fatal("expected report in response")
	}
	if got := doc.System.EntityCount(); got == 0 {
		t.Error("expected non-zero entity count")
	}
}

func TestCreateTopologyCustomName(t *testing.T) {
	ts := newTestServer(t)
	doc := createDemo(t, ts, "vehicle-a")

	if doc.Name != "vehicle-a" {
		t.Errorf("name = %q, want %q", doc.Name, "vehicle-a")
	}
}

func TestCreateTopologyEmptyManifest(t *testing.T) {
	ts := newTestServer(t)

	resp := postManifest(t, ts, "", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	code, _ := decodeEnvelope(t, resp.Body)
	if code != "INVALID_MANIFEST" {
		t.Errorf("code = %q, want INVALID_MANIFEST", code)
	}
}

func TestCreateTopologyBadTOML(t *testing.T) {
	ts := newTestServer(t)

	resp := postManifest(t, ts, "", "system = [broken")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	code, _ := decodeEnvelope(t, resp.Body)
	if code != "INVALID_MANIFEST" {
		t.Errorf("code = %q, want INVALID_MANIFEST", code)
	}
}

func TestCreateTopologyOverlap(t *testing.T) {
	ts := newTestServer(t)

	resp := postManifest(t, ts, "", overlapTOML)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	code, message := decodeEnvelope(t, resp.Body)
	if code != "OVERLAP" {
		t.Errorf("code = %q, want OVERLAP", code)
	}
	if !strings.Contains(message, "B") {
		t.Errorf("message %q should name the colliding signal", message)
	}
}

func TestCreateTopologyDuplicateName(t *testing.T) {
	ts := newTestServer(t)
	createDemo(t, ts, "prod")

	resp := postManifest(t, ts, "prod", demoTOML)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	code, _ := decodeEnvelope(t, resp.Body)
	if code != "ALREADY_EXISTS" {
		t.Errorf("code = %q, want ALREADY_EXISTS", code)
	}
}

func TestListTopologies(t *testing.T) {
	ts := newTestServer(t)
	createDemo(t, ts, "first")
	createDemo(t, ts, "second")

	resp, err := http.Get(ts.URL + "/v1/topologies")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var docs []*store.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	for _, doc := range docs {
		if doc.System != nil || doc.Report != nil {
			t.Errorf("document %q: list should carry metadata only", doc.Name)
		}
		if doc.SystemHash == "" {
			t.Errorf("document %q: missing system hash", doc.Name)
		}
	}
}

func TestGetTopology(t *testing.T) {
	ts := newTestServer(t)
	created := createDemo(t, ts, "")

	resp, err := http.Get(ts.URL + "/v1/topologies/" + created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var doc store.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.ID != created.ID {
		t.Errorf("id = %q, want %q", doc.ID, created.ID)
	}
	if doc.System == nil {
		t.Error("expected full system in single-document response")
	}
}

func TestGetTopologyNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/topologies/no-such-id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	code, _ := decodeEnvelope(t, resp.Body)
	if code != "TOPOLOGY_NOT_FOUND" {
		t.Errorf("code = %q, want TOPOLOGY_NOT_FOUND", code)
	}
}

func TestGetReport(t *testing.T) {
	ts := newTestServer(t)
	created := createDemo(t, ts, "")

	resp, err := http.Get(ts.URL + "/v1/topologies/" + created.ID + "/report")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var rep report.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.System != "Demo" {
		t.Errorf("report system = %q, want %q", rep.System, "Demo")
	}
	if len(rep.Layouts) == 0 {
		t.Error("expected layouts in report")
	}
}

func TestRenderTopologyDOT(t *testing.T) {
	ts := newTestServer(t)
	created := createDemo(t, ts, "")

	resp, err := http.Get(ts.URL + "/v1/topologies/" + created.ID + "/render?format=dot")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("content type = %q, want text/vnd.graphviz", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "digraph") {
		t.Error("expected DOT output")
	}
	if !strings.Contains(string(body), "EngineFrame") {
		t.Error("expected frame in DOT output")
	}
}

func TestRenderTopologyJSON(t *testing.T) {
	ts := newTestServer(t)
	created := createDemo(t, ts, "")

	resp, err := http.Get(ts.URL + "/v1/topologies/" + created.ID + "/render?format=json")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var sys map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&sys); err != nil {
		t.Fatalf("render json should decode: %v", err)
	}
}

func TestRenderTopologyInvalidFormat(t *testing.T) {
	ts := newTestServer(t)
	created := createDemo(t, ts, "")

	resp, err := http.Get(ts.URL + "/v1/topologies/" + created.ID + "/render?format=bmp")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	code, _ := decodeEnvelope(t, resp.Body)
	if code != "INVALID_FORMAT" {
		t.Errorf("code = %q, want INVALID_FORMAT", code)
	}
}

func TestDeleteTopology(t *testing.T) {
	ts := newTestServer(t)
	created := createDemo(t, ts, "")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/topologies/"+created.ID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// Second delete must report the topology as gone.
	resp2, err := http.DefaultClient.Do(req.Clone(req.Context()))
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", resp2.StatusCode, http.StatusNotFound)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected generated request ID header")
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set(RequestIDHeader, "client-chosen")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if got := resp2.Header.Get(RequestIDHeader); got != "client-chosen" {
		t.Errorf("request ID = %q, want echo of client value", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"store not found", store.ErrNotFound, "TOPOLOGY_NOT_FOUND", http.StatusNotFound},
		{"store duplicate", store.ErrDuplicateName, "ALREADY_EXISTS", http.StatusConflict},
		{"overlap", errors.New(errors.ErrCodeOverlap, "boom"), "OVERLAP", http.StatusUnprocessableEntity},
		{"already exists", errors.New(errors.ErrCodeAlreadyExists, "boom"), "ALREADY_EXISTS", http.StatusConflict},
		{"invalid parameter", errors.New(errors.ErrCodeInvalidParameter, "boom"), "INVALID_PARAMETER", http.StatusUnprocessableEntity},
		{"not connected", errors.New(errors.ErrCodeNotConnected, "boom"), "NOT_CONNECTED", http.StatusUnprocessableEntity},
		{"conversion", errors.New(errors.ErrCodeConversion, "boom"), "CONVERSION_ERROR", http.StatusUnprocessableEntity},
		{"invalid manifest", errors.New(errors.ErrCodeInvalidManifest, "boom"), "INVALID_MANIFEST", http.StatusBadRequest},
		{"wrapped engine code", fmt.Errorf("frame %q: %w", "F", errors.New(errors.ErrCodeOverlap, "boom")), "OVERLAP", http.StatusUnprocessableEntity},
		{"plain error", fmt.Errorf("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := classify(tt.err)
			if string(code) != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}
