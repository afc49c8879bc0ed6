package backupimport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	errorLogTimeLayout = "2006-01-02 15:04:05.000"
	errorLogNameLayout = "20060102-150405"
)

// ErrorLogName returns the file name of the error log for a run finished at t.
func ErrorLogName(t time.Time) string {
	return "shelfsy_restore_" + t.Format(errorLogNameLayout) + ".txt"
}

// writeErrorLog writes one line per entry into dir and returns the directory
// and file name written.
func writeErrorLog(dir string, t time.Time, entries []ErrorLogEntry) (logDir, logFile string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create log dir: %w", err)
	}

	name := ErrorLogName(t)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", "", fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "[%s] %s\n", e.Time.Format(errorLogTimeLayout), e.Message); err != nil {
			return "", "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", "", err
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}
	return dir, name, nil
}
