package generate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashRun   = regexp.MustCompile(`-{2,}`)
)

// SanitizeProjectName maps a user-supplied name onto [A-Za-z0-9._-]. Runs
// of other characters become a single dash; leading and trailing dashes
// are removed. The result may be empty.
func SanitizeProjectName(name string) string {
	s := unsafeRun.ReplaceAllString(strings.TrimSpace(name), "-")
	s = dashRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	// "." and ".." would resolve outside the project directory.
	if strings.Trim(s, ".") == "" {
		return ""
	}
	return s
}

// DefaultProjectName names a project for a request that did not.
func DefaultProjectName(now time.Time) string {
	return "web-session-" + now.Format("20060102-150405")
}

// RefinementDir is the directory holding one refinement's texts.
func RefinementDir(refinement int) string {
	return "machine" + strconv.Itoa(refinement)
}
