package dispatch

import (
	"strconv"
	"strings"
	"time"

	"github.com/havenloop/dispatch-api/internal/model"
)

// inQuietHours maps both bounds and now to minutes-of-day in the user's
// timezone. start > end is a window that wraps midnight.
func inQuietHours(prefs *model.EffectivePreferences, now time.Time) bool {
	if !prefs.HasQuietHours() {
		return false
	}

	start, ok := parseMinutes(prefs.QuietHoursStart)
	if !ok {
		return false
	}
	end, ok := parseMinutes(prefs.QuietHoursEnd)
	if !ok {
		return false
	}
	if start == end {
		return false
	}

	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()

	if start < end {
		return minutes >= start && minutes < end
	}
	return minutes >= start || minutes < end
}

// parseMinutes reads "HH:MM" into minutes-of-day.
func parseMinutes(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
