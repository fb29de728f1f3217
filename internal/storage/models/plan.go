package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Block type constants. Other type tags are allowed and treated like tasks.
const (
	BlockTypeTask    = "task"
	BlockTypeBreak   = "break"
	BlockTypeMeeting = "meeting"
)

// TimeBlock is one contiguous wall-clock interval of a plan.
type TimeBlock struct {
	Type      string `json:"type"`
	Start     string `json:"start"` // HH:MM
	End       string `json:"end"`   // HH:MM
	TaskTitle string `json:"task_title,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// IsBreak reports whether the block is schedule padding.
func (b TimeBlock) IsBreak() bool {
	return strings.EqualFold(strings.TrimSpace(b.Type), BlockTypeBreak)
}

// IsActionable reports whether the block is eligible for calendar sync:
// not a break and carrying a work-item title.
func (b TimeBlock) IsActionable() bool {
	return !b.IsBreak() && strings.TrimSpace(b.TaskTitle) != ""
}

// DailyPlan is the generated schedule for one calendar date.
type DailyPlan struct {
	Summary           string      `json:"summary"`
	ProductivityScore int         `json:"productivity_score"`
	Blocks            []TimeBlock `json:"blocks"`
	Tips              []string    `json:"tips,omitempty"`
}

// ActionableCount returns the number of blocks eligible for sync.
func (p *DailyPlan) ActionableCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, b := range p.Blocks {
		if b.IsActionable() {
			n++
		}
	}
	return n
}

// PlanDay is one day of a weekly plan.
type PlanDay struct {
	Date    string    `json:"date"` // YYYY-MM-DD
	DayName string    `json:"day_name"`
	Plan    DailyPlan `json:"plan"`
}

// WeeklyPlan is the generated schedule for seven consecutive days.
type WeeklyPlan struct {
	Days                []PlanDay `json:"days"`
	TotalTasks          int       `json:"total_tasks"`
	TotalEstimatedHours float64   `json:"total_estimated_hours"`
	BalanceScore        int       `json:"balance_score"`
	WeeklyGoals         []string  `json:"weekly_goals,omitempty"`
}

// ActionableCount returns the number of blocks eligible for sync across all days.
func (p *WeeklyPlan) ActionableCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for i := range p.Days {
		n += p.Days[i].Plan.ActionableCount()
	}
	return n
}

// WeekDays is the number of days in a weekly plan.
const WeekDays = 7

// DateLayout is the calendar date format used by plans.
const DateLayout = "2006-01-02"

// SyncedEventRef links a plan block to the remote event created for it.
type SyncedEventRef struct {
	TaskTitle string `json:"task_title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	EventID   string `json:"event_id"`
	Date      string `json:"date,omitempty"`
	DayName   string `json:"day_name,omitempty"`
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ClockMinutes returns minutes since midnight for an "HH:MM" value.
func ClockMinutes(s string) (int, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}
