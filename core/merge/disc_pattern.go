package merge

import (
	"regexp"
	"strconv"
	"strings"
)

// Matches release titles of the form "Album (disc 2)" or
// "Album (disc 2: Bonus)". Seen throughout imported discographies where a
// multi-disc set was entered as separate single-medium releases.
var discPattern = regexp.MustCompile(`(?i)^(.*?)\s*\((?:disc|disk)\s+(\d+)(?::\s*(.+?))?\s*\)$`)

// ParseDiscTitle extracts a medium position and name from a release title
// carrying a "(disc N: Name)" suffix. ok is false when the title does not
// match, in which case callers must leave position and name unchanged.
func ParseDiscTitle(title string) (position int, name string, ok bool) {
	m := discPattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return 0, "", false
	}
	position, err := strconv.Atoi(m[2])
	if err != nil || position < 1 {
		// 序号越界按格式不合法处理
		return 0, "", false
	}
	return position, strings.TrimSpace(m[3]), true
}
