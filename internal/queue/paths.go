package queue

import (
	"path/filepath"
	"strings"

	"modelforge/internal/textutil"
)

// SnapshotPath returns where the result snapshot of the item is written:
// base/<project>/<queue id>.json. Empty when base is blank.
func (i Item) SnapshotPath(base string) string {
	return SnapshotPath(base, i.ProjectID, i.ID)
}

// SnapshotPath builds the snapshot location from raw ids.
func SnapshotPath(base, projectID, queueID string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return filepath.Join(base, textutil.PathSegment(projectID, "project"), textutil.PathSegment(queueID, "queue")+".json")
}
