package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"modelforge/internal/logging"
	"modelforge/internal/queue"
)

// JobLogger writes a JSON log per job under log_dir/jobs/<project>/.
type JobLogger struct {
	baseDir string
}

// NewJobLogger returns a JobLogger rooted at logDir/jobs. A blank logDir
// disables per-job logs.
func NewJobLogger(logDir string) *JobLogger {
	dir := ""
	if strings.TrimSpace(logDir) != "" {
		dir = filepath.Join(logDir, "jobs")
	}
	return &JobLogger{baseDir: dir}
}

// Path returns the log file for a job, or "" when disabled.
func (j *JobLogger) Path(projectID, queueID string) string {
	if j == nil || j.baseDir == "" {
		return ""
	}
	return strings.TrimSuffix(queue.SnapshotPath(j.baseDir, projectID, queueID), ".json") + ".log"
}

// Open returns base teed into the job's log file and a func closing the
// file. When the file cannot be opened base is returned unchanged.
func (j *JobLogger) Open(base *slog.Logger, projectID, queueID string) (*slog.Logger, func(), error) {
	path := j.Path(projectID, queueID)
	if path == "" {
		return base, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return base, func() {}, fmt.Errorf("ensure job log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return base, func() {}, fmt.Errorf("open job log: %w", err)
	}
	logger := logging.TeeLogger(base, logging.NewJSONFileHandler(f))
	return logger, func() { _ = f.Close() }, nil
}
