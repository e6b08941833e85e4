package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const SockName = "control.sock"
const PidName = "voxprep.pid"
const ProtoVer = "0.1"

// Control commands, one byte each. Commands taking an argument carry it
// as the rest of the line.
const (
	CmdStart   byte = 'r'
	CmdStop    byte = 'x'
	CmdStatus  byte = 's'
	CmdDevices byte = 'd'
	CmdSelect  byte = 'p'
	CmdJob     byte = 'j'
	CmdVersion byte = 'v'
	CmdQuit    byte = 'q'
)

// ~/.cache/voxprep/control.sock
func SockPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voxprep", SockName), nil
}

// ~/.cache/voxprep/voxprep.pid
func PidPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voxprep", PidName), nil
}

func Listen() (net.Listener, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(sp), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(sp) // stale socket from last run
	return net.Listen("unix", sp)
}

func Dial() (net.Conn, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	return net.Dial("unix", sp)
}

// SendCommand sends a single-byte command and returns the response line.
func SendCommand(cmd byte) (string, error) {
	return SendLine(string(cmd))
}

// SendLine sends a command with its argument, e.g. "jdata science".
func SendLine(line string) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	if _, err := fmt.Fprintf(c, "%s\n", strings.TrimRight(line, "\n")); err != nil {
		return "", err
	}

	return bufio.NewReader(c).ReadString('\n')
}

// pidManager guards against a second daemon instance.
type pidManager struct {
	path string
}

func newPidManager() (*pidManager, error) {
	path, err := PidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: path}, nil
}

func (pm *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(pm.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pm.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (pm *pidManager) remove() error {
	return os.Remove(pm.path)
}

// checkExisting fails when a live daemon holds the pid file. Stale or
// invalid pid files are cleaned up.
func (pm *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(pm.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		_ = pm.remove()
		return nil
	}

	if !pm.isProcessAlive(pid) {
		_ = pm.remove()
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (pm *pidManager) isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func CheckExistingDaemon() error {
	pm, err := newPidManager()
	if err != nil {
		return err
	}
	return pm.checkExisting()
}

func CreatePidFile() error {
	pm, err := newPidManager()
	if err != nil {
		return err
	}
	return pm.create()
}

func RemovePidFile() error {
	pm, err := newPidManager()
	if err != nil {
		return err
	}
	return pm.remove()
}
