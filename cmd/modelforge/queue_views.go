package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"modelforge/internal/queue"
	"modelforge/internal/textutil"
)

const promptPreviewRunes = 48

func buildQueueStatsRows(stats map[queue.Status]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[queue.Status(key)])})
	}
	return rows
}

func buildQueueListRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			formatStatusLabel(string(item.Status)),
			fmt.Sprintf("%d", item.Attempts),
			formatTime(item.CreatedAt),
			textutil.Preview(item.Prompt, promptPreviewRunes),
			textutil.Preview(item.Error, promptPreviewRunes),
		})
	}
	return rows
}

func buildMessageRows(messages []queue.Message) [][]string {
	rows := make([][]string, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, []string{
			formatTime(msg.CreatedAt),
			formatStatusLabel(msg.Role),
			textutil.Preview(msg.Content, 72),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + strings.ToLower(status[1:])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}
