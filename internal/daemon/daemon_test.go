package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxprep/voxprep/internal/notify"
	"github.com/voxprep/voxprep/internal/pipeline"
	"github.com/voxprep/voxprep/internal/testutil"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()

	d := New(notify.Nop{}, zerolog.Nop())
	p, err := pipeline.New(testutil.TestConfig(), notify.Nop{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	d.pipeline = p
	return d
}

func roundTrip(t *testing.T, d *Daemon, line string) string {
	t.Helper()

	server, client := net.Pipe()
	defer client.Close()

	go d.handle(server)

	client.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	resp, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return resp
}

func TestHandleVersion(t *testing.T) {
	d := testDaemon(t)

	resp := roundTrip(t, d, "v")
	if resp != "STATUS proto=0.1\n" {
		t.Errorf("unexpected version response: %q", resp)
	}
}

func TestHandleStatus(t *testing.T) {
	d := testDaemon(t)

	resp := roundTrip(t, d, "s")
	if !strings.HasPrefix(resp, "STATUS ") {
		t.Fatalf("unexpected status response: %q", resp)
	}

	var status pipeline.Status
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(resp), "STATUS ")), &status); err != nil {
		t.Fatalf("status payload is not valid JSON: %v", err)
	}
	if status.Capturing {
		t.Error("fresh daemon must not be capturing")
	}
	if status.CaptureState != "idle" {
		t.Errorf("expected idle capture state, got %q", status.CaptureState)
	}
}

func TestHandleJobSelection(t *testing.T) {
	d := testDaemon(t)

	resp := roundTrip(t, d, "jdata science")
	if resp != "OK job=data science\n" {
		t.Errorf("unexpected job response: %q", resp)
	}

	status := roundTrip(t, d, "s")
	if !strings.Contains(status, `"job_type":"data science"`) {
		t.Errorf("job type not applied: %q", status)
	}

	if resp := roundTrip(t, d, "j"); !strings.HasPrefix(resp, "ERR job") {
		t.Errorf("missing argument must error, got %q", resp)
	}
}

func TestHandleDeviceSelection(t *testing.T) {
	d := testDaemon(t)

	if resp := roundTrip(t, d, "p"); !strings.HasPrefix(resp, "ERR select") {
		t.Errorf("missing device id must error, got %q", resp)
	}
}

func TestHandleStopWithoutCapture(t *testing.T) {
	d := testDaemon(t)

	resp := roundTrip(t, d, "x")
	if resp != "OK stopped\n" {
		t.Errorf("stop must be idempotent, got %q", resp)
	}
}

func TestHandleMalformed(t *testing.T) {
	d := testDaemon(t)

	if resp := roundTrip(t, d, ""); resp != "ERR empty\n" {
		t.Errorf("unexpected empty-line response: %q", resp)
	}
	if resp := roundTrip(t, d, "z"); !strings.HasPrefix(resp, "ERR unknown") {
		t.Errorf("unexpected unknown-command response: %q", resp)
	}
}

func TestHandleQuit(t *testing.T) {
	d := testDaemon(t)

	resp := roundTrip(t, d, "q")
	if resp != "OK quitting\n" {
		t.Errorf("unexpected quit response: %q", resp)
	}

	select {
	case <-d.ctx.Done():
	case <-time.After(time.Second):
		t.Error("quit must cancel the daemon context")
	}
}
