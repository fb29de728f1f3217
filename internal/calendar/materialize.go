package calendar

import (
	"fmt"
	"time"

	"github.com/plan-sync/backend/internal/storage/models"
)

// Materialize converts a block's wall-clock start and end on date into absolute
// instants. The clock times are read as UTC on the given calendar date and then
// shifted by subtracting offsetMinutes. Only a numeric offset is known, so
// daylight-saving transitions inside a plan's span are not accounted for.
func Materialize(date time.Time, block models.TimeBlock, offsetMinutes int) (time.Time, time.Time, error) {
	sh, sm, err := models.ParseClock(block.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("block start: %w", err)
	}
	eh, em, err := models.ParseClock(block.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("block end: %w", err)
	}

	y, m, d := date.Date()
	shift := -time.Duration(offsetMinutes) * time.Minute

	start := time.Date(y, m, d, sh, sm, 0, 0, time.UTC).Add(shift)
	end := time.Date(y, m, d, eh, em, 0, 0, time.UTC).Add(shift)

	return start, end, nil
}

// IsActionable reports whether block becomes a calendar event: not a break and
// carrying a work-item title.
func IsActionable(block models.TimeBlock) bool {
	return block.IsActionable()
}
