package cli

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalHandler(t *testing.T) {
	ctx, stop := SetupSignalHandler(context.Background())
	defer stop()

	select {
	case <-ctx.Done():
		t.Error("context should not be canceled initially")
	case <-time.After(10 * time.Millisecond):
	}

	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("stop() should cancel the context")
	}
}

func TestSetupSignalHandlerParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SetupSignalHandler(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("canceling the parent should cancel the context")
	}
}

func TestNotifyReloadReceivesSIGHUP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping signal delivery in short mode")
	}

	reloads, stop := NotifyReload()
	defer stop()

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Signal(syscall.SIGHUP); err != nil {
		t.Skipf("cannot signal own process: %v", err)
	}

	select {
	case sig := <-reloads:
		if sig != syscall.SIGHUP {
			t.Errorf("got %v, want SIGHUP", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SIGHUP not received")
	}
}
