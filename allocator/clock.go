package allocator

import (
	"fmt"
	"stall-ticket/common/constant"
	"time"
)

func clockMinutes(clock string) (int, error) {
	t, err := time.Parse(constant.ClockLayout, clock)
	if err != nil {
		return 0, err
	}

	return t.Hour()*60 + t.Minute(), nil
}

func minutesClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func combineClock(date, clock string) (time.Time, error) {
	return time.ParseInLocation(constant.DateLayout+" "+constant.ClockLayout, date+" "+clock, constant.JST)
}

// slotCode labels slots in generation order the way spreadsheet columns are
// named: A..Z, then AA, AB, and so on. Days with more than 26 slots keep
// unique speakable codes instead of wrapping.
func slotCode(index int) string {
	code := ""
	for index >= 0 {
		code = string(rune('A'+index%26)) + code
		index = index/26 - 1
	}

	return code
}
