// Package quota implements daily session admission control.
package quota

import "time"

// Quota days roll over at civil midnight in JST. The offset is constant
// (Japan has no daylight saving), so no tz database lookup is needed.
var jst = time.FixedZone("JST", 9*60*60)

// DayStart returns the instant of civil midnight in JST for the day
// containing now. It is pure and monotonic in its argument.
func DayStart(now time.Time) time.Time {
	local := now.In(jst)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, jst)
}
