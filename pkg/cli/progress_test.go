package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSimpleProgressBasic(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	// Start progress
	progress.Start(100)
	time.Sleep(10 * time.Millisecond) // Give it time to render

	// Update progress
	progress.Update(50)
	time.Sleep(10 * time.Millisecond)

	// Finish progress
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "Moderating:") {
		t.Error("Expected progress output to contain 'Moderating:'")
	}
	if !strings.Contains(output, "(100/100)") {
		t.Errorf("Expected finished progress (100/100), got %q", output)
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf).(*SimpleProgress)

	// Start with zero total should not cause panic
	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	// Should have minimal output since total is 0 (either empty or just newline is acceptable)
	_ = buf.String()
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(100)
	progress.Error(fmt.Errorf("test error"))

	output := buf.String()
	if !strings.Contains(output, "Error:") {
		t.Error("Expected error output to contain 'Error:'")
	}
	if !strings.Contains(output, "test error") {
		t.Error("Expected error output to contain error message")
	}
}

func TestSimpleProgressConcurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(1000)

	// Simulate concurrent updates
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				progress.Increment()
				time.Sleep(time.Microsecond)
			}
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	if !strings.Contains(buf.String(), "(1000/1000)") {
		t.Error("Expected every increment to be counted")
	}
	progress.Finish()
}

func TestNewProgressReporterNilWriter(t *testing.T) {
	// Should default to stderr, not panic
	progress := NewProgressReporter(nil)
	if progress == nil {
		t.Error("NewProgressReporter(nil) should not return nil")
	}

	// Should not panic on operations
	progress.Start(0)
	progress.Update(5)
	progress.Finish()
}

func TestSimpleProgressClampsOvershoot(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(2)
	progress.Update(5)

	if !strings.Contains(buf.String(), "(2/2)") {
		t.Errorf("progress past the total should clamp, got %q", buf.String())
	}
}
