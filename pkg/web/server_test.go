// This file may be distributed under the terms of the GNU GPLv3 license.

package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"grbl-fans-go/pkg/status"
)

// mockController implements Controller for testing.
type mockController struct {
	report    Report
	lines     []string
	overrides []byte
	runStatus status.Code
}

func (m *mockController) Status() Report {
	return m.report
}

func (m *mockController) RunCommand(line string) status.Code {
	m.lines = append(m.lines, line)
	return m.runStatus
}

func (m *mockController) Override(cmd byte) {
	m.overrides = append(m.overrides, cmd)
}

func newTestServer() (*Server, *mockController) {
	ctrl := &mockController{
		report: Report{
			Fans:    []FanStatus{{Index: 0, Port: 2, On: true}},
			Mask:    1,
			Machine: "Idle",
		},
	}
	return New(Config{Addr: ":0", Controller: ctrl}), ctrl
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("GET", "/fans/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp struct {
		Result Report `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Mask != 1 || len(resp.Result.Fans) != 1 || !resp.Result.Fans[0].On {
		t.Fatalf("unexpected report: %+v", resp.Result)
	}
}

func TestCommandEndpoint(t *testing.T) {
	s, ctrl := newTestServer()

	body := bytes.NewBufferString(`{"line":"M106 P0"}`)
	req := httptest.NewRequest("POST", "/fans/command", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(ctrl.lines) != 1 || ctrl.lines[0] != "M106 P0" {
		t.Fatalf("controller should receive the line, got %v", ctrl.lines)
	}
}

func TestCommandEndpointRejectsFailedStatus(t *testing.T) {
	s, ctrl := newTestServer()
	ctrl.runStatus = status.GcodeValueOutOfRange

	body := bytes.NewBufferString(`{"line":"M106 P9"}`)
	req := httptest.NewRequest("POST", "/fans/command", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected an error body, got %s", rec.Body.String())
	}
}

func TestCommandEndpointRequiresPost(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("GET", "/fans/command", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestOverrideEndpoint(t *testing.T) {
	s, ctrl := newTestServer()

	body := bytes.NewBufferString(`{"command":138}`)
	req := httptest.NewRequest("POST", "/fans/override", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(ctrl.overrides) != 1 || ctrl.overrides[0] != 0x8A {
		t.Fatalf("controller should receive the override, got %v", ctrl.overrides)
	}
}

func TestWebSocketStatusAndCommand(t *testing.T) {
	s, ctrl := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Stop()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The initial snapshot arrives unprompted.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var note struct {
		Method string `json:"method"`
		Params Report `json:"params"`
	}
	if err := conn.ReadJSON(&note); err != nil {
		t.Fatalf("read initial notification: %v", err)
	}
	if note.Method != "notify_status" || note.Params.Mask != 1 {
		t.Fatalf("unexpected notification: %+v", note)
	}

	// A command round-trips with its id.
	if err := conn.WriteJSON(map[string]any{"method": "fans.command", "line": "M107", "id": 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp struct {
		Result any     `json:"result"`
		Error  string  `json:"error"`
		ID     float64 `json:"id"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Error != "" || resp.ID != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(ctrl.lines) != 1 || ctrl.lines[0] != "M107" {
		t.Fatalf("controller should receive the line, got %v", ctrl.lines)
	}
}
