//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"unicode/utf8"

	"golang.org/x/sys/windows"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var (
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procFreeConsole          = kernel32.NewProc("FreeConsole")
	procAttachConsole        = kernel32.NewProc("AttachConsole")
	procSetConsoleCtrlHandle = kernel32.NewProc("SetConsoleCtrlHandler")
	procGenerateCtrlEvent    = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

// windowsAdapter terminates children via console control events, with
// taskkill as the forced fallback. Children are spawned with
// CREATE_NEW_PROCESS_GROUP so their PID equals their process-group ID,
// which GenerateConsoleCtrlEvent requires.
type windowsAdapter struct {
	runAsService bool
}

// New creates the platform adapter. When running under the SCM the
// supervisor has no console of its own, so Terminate must attach to the
// child's console before injecting control events.
func New(runAsService bool) Adapter {
	return &windowsAdapter{runAsService: runAsService}
}

// PreExec spawns the child in a new process group with a Unicode
// environment block.
func (a *windowsAdapter) PreExec(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_UNICODE_ENVIRONMENT
}

// Terminate injects CTRL_BREAK then CTRL_C into the child's console.
// This does not propagate to grandchildren; Kill with taskkill /T is
// the fallback that covers the whole tree.
func (a *windowsAdapter) Terminate(pid int) error {
	if a.runAsService {
		// Under the SCM there is no console; detach (a no-op if already
		// detached) and borrow the child's console so the injected
		// events land there.
		if r, _, err := procFreeConsole.Call(); r == 0 {
			return fmt.Errorf("FreeConsole failed: %w", err)
		}
		if r, _, err := procAttachConsole.Call(uintptr(pid)); r == 0 {
			return fmt.Errorf("AttachConsole failed: %w", err)
		}
		// Shield the supervisor itself from the events it is about to send.
		if r, _, err := procSetConsoleCtrlHandle.Call(0, 1); r == 0 {
			return fmt.Errorf("SetConsoleCtrlHandler failed: %w", err)
		}
	}
	if r, _, err := procGenerateCtrlEvent.Call(windows.CTRL_BREAK_EVENT, uintptr(pid)); r == 0 {
		return fmt.Errorf("send CTRL_BREAK_EVENT failed: %w", err)
	}
	if r, _, _ := procGenerateCtrlEvent.Call(windows.CTRL_C_EVENT, uintptr(pid)); r == 0 {
		return errors.New("send CTRL_C_EVENT failed")
	}
	return nil
}

// Kill runs taskkill /F /T to end the process and its whole tree.
func (a *windowsAdapter) Kill(pid int) error {
	return taskkill(pid, true)
}

func taskkill(pid int, force bool) error {
	args := make([]string, 0, 5)
	if force {
		args = append(args, "/F")
	}
	args = append(args, "/T", "/PID", strconv.Itoa(pid))
	cmd := exec.Command("taskkill.exe", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NO_WINDOW}
	stdout, err := cmd.Output()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	msg := decodeConsoleOutput(stdout)
	if errors.As(err, &exitErr) {
		if s := decodeConsoleOutput(exitErr.Stderr); s != "" {
			msg = s
		}
	}
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Errorf("taskkill pid %d: %s", pid, msg)
}

// decodeConsoleOutput decodes taskkill output as UTF-8, falling back to
// GB18030 for localised Windows installations.
func decodeConsoleOutput(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// IsAlive checks process existence via OpenProcess; os.FindProcess
// succeeds for any PID on Windows so it cannot be used here.
func (a *windowsAdapter) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	windows.CloseHandle(handle)
	return true
}
