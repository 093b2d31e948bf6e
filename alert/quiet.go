package alert

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"watchpost/model"
)

// Suppressed reports whether a rule's quiet hours cover now, and if so
// why. Any evaluation problem (unknown timezone, malformed time) fails
// open: alerting must never be silenced by a config typo, and the cycle
// must never crash over one.
func Suppressed(q model.QuietHours, now time.Time) (bool, string) {
	if !q.Enabled || q.Start == "" || q.End == "" {
		return false, ""
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		log.Printf("alert: quiet hours: unknown timezone %q, not suppressing: %v", q.Timezone, err)
		return false, ""
	}
	local := now.In(loc)

	if len(q.Days) > 0 {
		day := strings.ToLower(local.Weekday().String())
		ok := false
		for _, d := range q.Days {
			if strings.ToLower(strings.TrimSpace(d)) == day {
				ok = true
				break
			}
		}
		if !ok {
			return false, ""
		}
	}

	start, err := minuteOfDay(q.Start)
	if err != nil {
		log.Printf("alert: quiet hours: bad start time %q, not suppressing: %v", q.Start, err)
		return false, ""
	}
	end, err := minuteOfDay(q.End)
	if err != nil {
		log.Printf("alert: quiet hours: bad end time %q, not suppressing: %v", q.End, err)
		return false, ""
	}

	cur := local.Hour()*60 + local.Minute()

	// start > end spans midnight: 22:00-08:00 covers >=22:00 or <08:00.
	inside := false
	if start <= end {
		inside = cur >= start && cur < end
	} else {
		inside = cur >= start || cur < end
	}
	if !inside {
		return false, ""
	}
	return true, fmt.Sprintf("quiet hours %s-%s (%s)", q.Start, q.End, q.Timezone)
}

func minuteOfDay(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %q", hhmm)
	}
	return h*60 + m, nil
}
