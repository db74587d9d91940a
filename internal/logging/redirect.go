package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	logFileFlags       = os.O_APPEND | os.O_CREATE | os.O_WRONLY
	logFilePermissions = 0o644
)

// OpenRedirectLogFile opens the dated output file for a supervised
// child, e.g. out_20260802.log. The caller owns the returned handle.
func OpenRedirectLogFile(logDir, prefix string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", prefix, time.Now().UTC().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(logDir, name), logFileFlags, logFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open redirect log: %w", err)
	}
	return f, nil
}
