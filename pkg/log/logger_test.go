// Structured logging tests
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("test")
	l.SetWriter(&buf)
	l.SetLevel(WARN)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN were emitted:\n%s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN/ERROR messages missing:\n%s", out)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("fans")
	l.SetWriter(&buf)

	l.Info("port %d claimed", 3)

	out := buf.String()
	if !strings.Contains(out, "[INFO ] fans: port 3 claimed") {
		t.Errorf("unexpected text format: %q", out)
	}
}

func TestFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := New("fans")
	l.SetWriter(&buf)

	l.WithFields(Fields{"port": 2, "fan": 1}).Info("claimed")

	out := buf.String()
	if !strings.Contains(out, "{fan=1, port=2}") {
		t.Errorf("fields not sorted or missing: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("fans")
	l.SetWriter(&buf)
	l.SetFormat(FormatJSON)

	l.WithFields(Fields{"fan": 0}).Warn("port unavailable")

	var entry jsonEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry.Level != "WARN" || entry.Logger != "fans" || entry.Message != "port unavailable" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if v, ok := entry.Fields["fan"]; !ok || v != float64(0) {
		t.Errorf("fan field missing: %+v", entry.Fields)
	}
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New("host")
	l.SetWriter(&buf)
	sub := l.WithPrefix("fans")

	sub.Info("hello")

	if !strings.Contains(buf.String(), "host.fans:") {
		t.Errorf("derived prefix missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
