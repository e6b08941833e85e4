package bus

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPidManager(t *testing.T) {
	tempDir := t.TempDir()
	pm := &pidManager{path: filepath.Join(tempDir, PidName)}

	t.Run("create and remove", func(t *testing.T) {
		if err := pm.create(); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		pidData, err := os.ReadFile(pm.path)
		if err != nil {
			t.Fatalf("failed to read PID file: %v", err)
		}
		if string(pidData) != strconv.Itoa(os.Getpid()) {
			t.Errorf("PID file contains %q, expected current pid", string(pidData))
		}

		if err := pm.remove(); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if _, err := os.Stat(pm.path); !os.IsNotExist(err) {
			t.Error("PID file should not exist after removal")
		}
	})

	t.Run("checkExisting with no PID file", func(t *testing.T) {
		if err := pm.checkExisting(); err != nil {
			t.Errorf("expected no error without a PID file: %v", err)
		}
	})

	t.Run("checkExisting with live process", func(t *testing.T) {
		if err := pm.create(); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		defer pm.remove()

		if err := pm.checkExisting(); err == nil {
			t.Error("expected error while process is running")
		}
	})

	t.Run("checkExisting with stale PID", func(t *testing.T) {
		if err := os.WriteFile(pm.path, []byte("99999"), 0o600); err != nil {
			t.Fatalf("failed to write stale PID file: %v", err)
		}

		if err := pm.checkExisting(); err != nil {
			t.Errorf("stale PID must not block startup: %v", err)
		}
		if _, err := os.Stat(pm.path); !os.IsNotExist(err) {
			t.Error("stale PID file should be removed")
		}
	})

	t.Run("checkExisting with invalid PID", func(t *testing.T) {
		if err := os.WriteFile(pm.path, []byte("not-a-pid"), 0o600); err != nil {
			t.Fatalf("failed to write invalid PID file: %v", err)
		}

		if err := pm.checkExisting(); err != nil {
			t.Errorf("invalid PID must not block startup: %v", err)
		}
		if _, err := os.Stat(pm.path); !os.IsNotExist(err) {
			t.Error("invalid PID file should be removed")
		}
	})
}

func TestIsProcessAlive(t *testing.T) {
	pm := &pidManager{}

	if !pm.isProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if pm.isProcessAlive(99999999) {
		t.Error("absurd pid should not be alive")
	}
}
