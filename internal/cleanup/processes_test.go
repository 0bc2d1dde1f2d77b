//go:build !windows

package cleanup

import (
	"os/exec"
	"testing"
	"time"

	"dbbackup/internal/logger"
)

func TestSetProcessGroup_ConfiguresSysProcAttr(t *testing.T) {
	cmd := exec.Command("true")
	SetProcessGroup(cmd)
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Error("expected SetProcessGroup to set Setpgid on the command")
	}
}

func TestKillCommandGroup_NilProcessIsNoOp(t *testing.T) {
	cmd := exec.Command("true")
	if err := KillCommandGroup(cmd); err != nil {
		t.Errorf("expected no error for a command that hasn't been started, got %v", err)
	}
}

func TestKillCommandGroup_KillsRunningProcess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	SetProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}

	if err := KillCommandGroup(cmd); err != nil {
		t.Fatalf("KillCommandGroup: %v", err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("expected the killed process to exit promptly")
	}
}

func TestProcessManager_TrackAndKillAll(t *testing.T) {
	pm := NewProcessManager(logger.NewNullLogger())
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	pm.Track(cmd.Process)

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll: %v", err)
	}
	cmd.Wait()
}
