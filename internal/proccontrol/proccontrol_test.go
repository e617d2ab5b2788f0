package proccontrol

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunToCompletion(t *testing.T) {
	cmd := exec.Command("true")
	res := Run(context.Background(), cmd, nil)
	assert.Equal(t, RanToEnd, res.Outcome)
	assert.True(t, res.Success())
}

func TestRunNonZeroExit(t *testing.T) {
	cmd := exec.Command("false")
	res := Run(context.Background(), cmd, nil)
	assert.Equal(t, RanToEnd, res.Outcome)
	assert.False(t, res.Success())
	assert.NotZero(t, res.ExitCode)
}

func TestQuitAfterStopTerminates(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	ctl := make(chan ControlMsg, 2)

	done := make(chan Result, 1)
	go func() { done <- Run(context.Background(), cmd, ctl) }()

	time.Sleep(100 * time.Millisecond)
	ctl <- Suspend
	time.Sleep(100 * time.Millisecond)
	ctl <- Quit

	select {
	case res := <-done:
		assert.Equal(t, TerminatedBySignal, res.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not terminate after Quit on a Stopped process")
	}
}

func TestKillWins(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	ctl := make(chan ControlMsg, 2)

	done := make(chan Result, 1)
	go func() { done <- Run(context.Background(), cmd, ctl) }()

	time.Sleep(50 * time.Millisecond)
	ctl <- Kill

	select {
	case res := <-done:
		assert.Equal(t, TerminatedBySignal, res.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not terminate after Kill")
	}
}

func TestContextCancelKills(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Result, 1)
	go func() { done <- Run(ctx, cmd, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		assert.Equal(t, TerminatedBySignal, res.Outcome)
		require.Error(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not terminate after context cancellation")
	}
}
