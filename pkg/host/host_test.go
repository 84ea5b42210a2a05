// This file may be distributed under the terms of the GNU GPLv3 license.

package host

import (
	"io"
	"testing"

	"grbl-fans-go/pkg/hal"
	"grbl-fans-go/pkg/log"
	"grbl-fans-go/pkg/spindle"
)

func newTestHost() *Host {
	logger := log.New("test")
	logger.SetWriter(io.Discard)
	return New(nil, hal.NewMemPortPool(2), spindle.NewSelector(), logger)
}

func TestInterceptChaining(t *testing.T) {
	h := newTestHost()
	var order []string

	var prev ResetFunc
	prev = h.InterceptReset(func() { order = append(order, "first") })
	if prev != nil {
		t.Fatal("empty chain should hand back nil")
	}
	prev = h.InterceptReset(func() {
		order = append(order, "second")
		if prev != nil {
			prev()
		}
	})

	h.Reset()
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("new handler runs first and forwards down the chain, got %v", order)
	}
}

func TestRealtimeReportConsumesFlags(t *testing.T) {
	h := newTestHost()
	h.InterceptRealtimeReport(func(w hal.StreamWriter, report ReportFlags) {
		if report.Fan {
			w("|Fan:1")
		}
	})

	h.MarkFanReport()
	if got := h.RealtimeReport(); got != "|Fan:1" {
		t.Fatalf("got %q", got)
	}
	if got := h.RealtimeReport(); got != "" {
		t.Fatalf("flags are consumed by the report, got %q", got)
	}
}

func TestEnqueueMessageInlineWithoutReactor(t *testing.T) {
	h := newTestHost()
	var got []string
	h.SetMessageSink(func(msg string) { got = append(got, msg) })

	h.EnqueueMessage("hello")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("message should reach the sink, got %v", got)
	}
}

func TestAccessoryOverrideDispatch(t *testing.T) {
	h := newTestHost()
	var cmds []byte
	h.InterceptAccessoryOverride(func(cmd byte) { cmds = append(cmds, cmd) })

	h.AccessoryOverride(CmdOverrideFan0Toggle)
	if len(cmds) != 1 || cmds[0] != 0x8A {
		t.Fatalf("got %v", cmds)
	}
}
