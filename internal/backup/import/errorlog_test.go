package backupimport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLogName(t *testing.T) {
	assert.Equal(t, "shelfsy_restore_20240615-123045.txt", ErrorLogName(testNow))
}

func TestWriteErrorLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	entries := []ErrorLogEntry{
		{Time: testNow, Message: "A [MangaDex]: look up manga: timeout"},
		{Time: testNow.Add(1500 * time.Millisecond), Message: "B [42]: chapters: disk full"},
	}

	logDir, logFile, err := writeErrorLog(dir, testNow, entries)
	require.NoError(t, err)
	assert.Equal(t, dir, logDir)
	assert.Equal(t, ErrorLogName(testNow), logFile)

	data, err := os.ReadFile(filepath.Join(logDir, logFile))
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-06-15 12:30:45.123] A [MangaDex]: look up manga: timeout\n"+
			"[2024-06-15 12:30:46.623] B [42]: chapters: disk full\n",
		string(data))
}
