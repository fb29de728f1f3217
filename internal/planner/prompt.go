package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/plan-sync/backend/internal/storage/models"
)

var dailySchema = fmt.Sprintf(`{
  "summary": string,
  "productivity_score": integer 0-100,
  "blocks": [
    {"type": %q | %q | %q, "start": "HH:MM", "end": "HH:MM", "task_title": string, "notes": string}
  ],
  "tips": [string]
}`, models.BlockTypeTask, models.BlockTypeBreak, models.BlockTypeMeeting)

const weeklySchema = `{
  "days": [
    {"date": "YYYY-MM-DD", "day_name": string, "plan": <daily plan>}
  ],
  "total_tasks": integer,
  "total_estimated_hours": number,
  "balance_score": integer 0-100,
  "weekly_goals": [string]
}`

const systemPrompt = `You are a productivity planner. You turn a list of work items into a realistic time-blocked schedule.
Rules:
- Only schedule inside the user's working hours.
- Blocks within a day are in chronological order and do not overlap; start is before end.
- Use "task" blocks for work items and copy the work item title exactly into task_title.
- Use "break" blocks for rest; breaks have an empty task_title.
- Put urgent and high priority items and items due soon earlier.
- Respond with a single JSON object and nothing else.`

func renderDailyPrompt(items []models.WorkItem, prefs models.SchedulingPreferences, date time.Time) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan the day %s (%s).\n", date.Format(models.DateLayout), date.Weekday())
	writeContext(&b, items, prefs)
	fmt.Fprintf(&b, "\nReturn JSON with this shape:\n%s\n", dailySchema)
	return systemPrompt, b.String()
}

func renderWeeklyPrompt(items []models.WorkItem, prefs models.SchedulingPreferences, weekStart time.Time) (string, string) {
	end := weekStart.AddDate(0, 0, models.WeekDays-1)

	var b strings.Builder
	fmt.Fprintf(&b, "Plan the week from %s to %s: exactly %d days, one entry per date in order.\n",
		weekStart.Format(models.DateLayout), end.Format(models.DateLayout), models.WeekDays)
	writeContext(&b, items, prefs)
	fmt.Fprintf(&b, "\nEach <daily plan> has this shape:\n%s\n", dailySchema)
	fmt.Fprintf(&b, "\nReturn JSON with this shape:\n%s\n", weeklySchema)
	return systemPrompt, b.String()
}

func writeContext(b *strings.Builder, items []models.WorkItem, prefs models.SchedulingPreferences) {
	fmt.Fprintf(b, "Working hours: %s-%s, timezone %s.\n", prefs.WorkStart, prefs.WorkEnd, prefs.Timezone)
	fmt.Fprintf(b, "Work items (%d):\n", len(items))
	for i, item := range items {
		fmt.Fprintf(b, "%d. %q priority=%s estimate=%dmin", i+1, item.Title, item.Priority, item.EstimatedMinutes)
		if item.DueAt != nil {
			fmt.Fprintf(b, " due=%s", item.DueAt.UTC().Format(time.RFC3339))
		}
		if d := strings.TrimSpace(item.Description); d != "" {
			fmt.Fprintf(b, " description=%q", d)
		}
		b.WriteByte('\n')
	}
}
