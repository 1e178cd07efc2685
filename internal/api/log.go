package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"cilaosgo/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxParamLen drops noisy values (session ids, paths) from the condensed line.
const maxParamLen = 20

// handleLatestLog returns the last captured server log line, condensed.
// ?source=events returns the last narrative journal entry instead.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	var line string
	if r.URL.Query().Get("source") == "events" {
		line = logging.GlobalEventCapture.GetLastLine()
	} else {
		line = formatLogLine(logging.GlobalLogCapture.GetLastLine())
	}
	writeJSON(w, http.StatusOK, map[string]string{"log": line})
}

// formatLogLine condenses a slog text line to "HH:MM:SS msg (k=v, ...)".
// Level is dropped, params are sorted and values longer than maxParamLen removed.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
		case "level":
		case "msg":
			msg = val
		default:
			if len(val) <= maxParamLen {
				params = append(params, key+"="+val)
			}
		}
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	output := msg
	if timeStr != "" {
		output = fmt.Sprintf("%s %s", timeStr, msg)
	}
	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}
