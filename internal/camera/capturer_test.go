package camera

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell utilities")
	}
}

func TestExecCapturer_SuccessReturnsOutputPath(t *testing.T) {
	skipOnWindows(t)

	// "true" ignores the capture flags and exits zero.
	c := NewExecCapturer("true", 5*time.Second)
	result := c.Capture(context.Background(), Request{
		OutputPath: "/tmp/out.jpg",
		Width:      4056,
		Height:     3040,
		Quality:    95,
	})

	if !result.IsSuccess() {
		t.Fatalf("capture failed: %v", result.Err)
	}
	if result.Path != "/tmp/out.jpg" {
		t.Errorf("Path = %q, want %q", result.Path, "/tmp/out.jpg")
	}
}

func TestExecCapturer_NonZeroExitReportsFailure(t *testing.T) {
	skipOnWindows(t)

	c := NewExecCapturer("false", 5*time.Second)
	result := c.Capture(context.Background(), Request{OutputPath: "/tmp/out.jpg"})

	if result.IsSuccess() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.ErrorText(), "false") {
		t.Errorf("error text %q does not name the tool", result.ErrorText())
	}
}

func TestExecCapturer_MissingToolReportsFailure(t *testing.T) {
	c := NewExecCapturer("definitely-not-a-real-capture-tool", 5*time.Second)
	result := c.Capture(context.Background(), Request{OutputPath: "/tmp/out.jpg"})

	if result.IsSuccess() {
		t.Fatal("expected failure")
	}
}

func TestFilename_Layout(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 45, 123456000, time.UTC)

	got := Filename("/home/pi/captures", "session1", ts)
	want := "/home/pi/captures/session1_20240115_103045_123456.jpg"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestFilename_UniquePerMicrosecond(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)

	a := Filename("/tmp", "capture", ts)
	b := Filename("/tmp", "capture", ts.Add(time.Microsecond))
	if a == b {
		t.Errorf("filenames collide: %q", a)
	}
}
