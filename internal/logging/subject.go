package logging

import "strings"

const shortQueueIDLen = 8

// FormatSubject builds the "project/queue" subject shown in console output.
// Queue ids are shortened to their first eight characters.
func FormatSubject(projectID, queueID string) string {
	projectID = strings.TrimSpace(projectID)
	queueID = strings.TrimSpace(queueID)
	if len(queueID) > shortQueueIDLen {
		queueID = queueID[:shortQueueIDLen]
	}
	switch {
	case projectID != "" && queueID != "":
		return projectID + "/" + queueID
	case queueID != "":
		return queueID
	}
	return projectID
}
