package planner

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/plan-sync/backend/internal/storage/models"
)

// rawDailyPlan is the model's daily output. Scores arrive as arbitrary JSON numbers.
type rawDailyPlan struct {
	Summary           string             `json:"summary"`
	ProductivityScore float64            `json:"productivity_score"`
	Blocks            []models.TimeBlock `json:"blocks"`
	Tips              []string           `json:"tips"`
}

type rawPlanDay struct {
	Date    string       `json:"date"`
	DayName string       `json:"day_name"`
	Plan    rawDailyPlan `json:"plan"`
}

type rawWeeklyPlan struct {
	Days                []rawPlanDay `json:"days"`
	TotalTasks          float64      `json:"total_tasks"`
	TotalEstimatedHours float64      `json:"total_estimated_hours"`
	BalanceScore        float64      `json:"balance_score"`
	WeeklyGoals         []string     `json:"weekly_goals"`
}

// validateDaily normalizes a daily plan and rejects unusable shapes.
func validateDaily(raw rawDailyPlan) (*models.DailyPlan, error) {
	if len(raw.Blocks) == 0 {
		return nil, fmt.Errorf("%w: plan has no blocks", ErrPlanningUnavailable)
	}
	return normalizeDay(raw)
}

// validateWeekly normalizes a weekly plan against the requested week start.
// Missing dates are filled in order, day names are derived from dates.
func validateWeekly(raw rawWeeklyPlan, weekStart time.Time) (*models.WeeklyPlan, error) {
	if len(raw.Days) != models.WeekDays {
		return nil, fmt.Errorf("%w: weekly plan has %d days, want %d", ErrPlanningUnavailable, len(raw.Days), models.WeekDays)
	}

	type dated struct {
		date time.Time
		day  rawPlanDay
	}
	days := make([]dated, 0, len(raw.Days))
	for i, d := range raw.Days {
		date := weekStart.AddDate(0, 0, i)
		if s := strings.TrimSpace(d.Date); s != "" {
			parsed, err := time.Parse(models.DateLayout, s)
			if err != nil {
				return nil, fmt.Errorf("%w: day %d has invalid date %q", ErrPlanningUnavailable, i, d.Date)
			}
			date = parsed
		}
		days = append(days, dated{date: date, day: d})
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })

	plan := &models.WeeklyPlan{
		Days:        make([]models.PlanDay, 0, models.WeekDays),
		WeeklyGoals: trimAll(raw.WeeklyGoals),
	}

	var scheduledMinutes int
	for i, d := range days {
		want := weekStart.AddDate(0, 0, i)
		if !sameDate(d.date, want) {
			return nil, fmt.Errorf("%w: weekly plan dates do not cover %s..%s",
				ErrPlanningUnavailable, weekStart.Format(models.DateLayout),
				weekStart.AddDate(0, 0, models.WeekDays-1).Format(models.DateLayout))
		}

		dp, err := normalizeDay(d.day.Plan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", want.Format(models.DateLayout), err)
		}

		for _, b := range dp.Blocks {
			if b.IsActionable() {
				scheduledMinutes += blockMinutes(b)
			}
		}

		plan.Days = append(plan.Days, models.PlanDay{
			Date:    want.Format(models.DateLayout),
			DayName: want.Weekday().String(),
			Plan:    *dp,
		})
	}

	plan.TotalTasks = int(math.Round(raw.TotalTasks))
	if plan.TotalTasks <= 0 {
		plan.TotalTasks = plan.ActionableCount()
	}
	plan.TotalEstimatedHours = raw.TotalEstimatedHours
	if plan.TotalEstimatedHours <= 0 {
		plan.TotalEstimatedHours = math.Round(float64(scheduledMinutes)/60*10) / 10
	}
	plan.BalanceScore = clampScore(raw.BalanceScore)

	return plan, nil
}

func normalizeDay(raw rawDailyPlan) (*models.DailyPlan, error) {
	plan := &models.DailyPlan{
		Summary:           strings.TrimSpace(raw.Summary),
		ProductivityScore: clampScore(raw.ProductivityScore),
		Blocks:            make([]models.TimeBlock, 0, len(raw.Blocks)),
		Tips:              trimAll(raw.Tips),
	}

	for i, b := range raw.Blocks {
		b.Type = strings.ToLower(strings.TrimSpace(b.Type))
		b.Start = strings.TrimSpace(b.Start)
		b.End = strings.TrimSpace(b.End)
		b.TaskTitle = strings.TrimSpace(b.TaskTitle)
		b.Notes = strings.TrimSpace(b.Notes)

		if b.Type == "" {
			return nil, fmt.Errorf("%w: block %d has no type", ErrPlanningUnavailable, i)
		}
		start, err := models.ClockMinutes(b.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrPlanningUnavailable, i, err)
		}
		end, err := models.ClockMinutes(b.End)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrPlanningUnavailable, i, err)
		}
		if start >= end {
			return nil, fmt.Errorf("%w: block %d starts at %s but ends at %s", ErrPlanningUnavailable, i, b.Start, b.End)
		}

		if b.IsBreak() {
			b.TaskTitle = ""
		}
		plan.Blocks = append(plan.Blocks, b)
	}

	return plan, nil
}

func blockMinutes(b models.TimeBlock) int {
	start, _ := models.ClockMinutes(b.Start)
	end, _ := models.ClockMinutes(b.End)
	return end - start
}

func clampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
