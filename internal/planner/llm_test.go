package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plan-sync/backend/internal/storage/models"
)

var (
	testItems = []models.WorkItem{
		{ID: "1", Title: "Write report", Priority: models.PriorityHigh, EstimatedMinutes: 90},
		{ID: "2", Title: "Review PR", Priority: models.PriorityMedium, EstimatedMinutes: 30},
	}
	testPrefs = models.DefaultPreferences("u1")
	monday    = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

// chatServer answers every completion with content and records the last request.
func chatServer(t *testing.T, status int, content string, last *chatRequest) *LLMGenerator {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if last != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(last))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)

	return NewLLMGenerator(Config{BaseURL: srv.URL + "/v1", Model: "test-model", APIKey: "sk-test", Timeout: 5 * time.Second})
}

const dailyJSON = `{
  "summary": "Deep work first",
  "productivity_score": 87.6,
  "blocks": [
    {"type": "task", "start": "09:00", "end": "10:30", "task_title": "Write report", "notes": "no meetings"},
    {"type": "Break", "start": "10:30", "end": "10:45", "task_title": "coffee"},
    {"type": "task", "start": "10:45", "end": "11:15", "task_title": "Review PR"}
  ],
  "tips": ["  silence notifications  ", ""]
}`

func TestRenderDailyPrompt(t *testing.T) {
	system, user := renderDailyPrompt(testItems, testPrefs, monday)

	assert.Contains(t, system, "single JSON object")
	assert.Contains(t, user, "2026-03-02 (Monday)")
	assert.Contains(t, user, `"type": "task" | "break" | "meeting"`)
}

func TestGenerateDailyPlan(t *testing.T) {
	var req chatRequest
	g := chatServer(t, http.StatusOK, dailyJSON, &req)

	plan, err := g.GenerateDailyPlan(context.Background(), testItems, testPrefs, monday)
	require.NoError(t, err)

	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "2026-03-02")
	assert.Contains(t, req.Messages[1].Content, `"Write report"`)

	assert.Equal(t, 88, plan.ProductivityScore)
	require.Len(t, plan.Blocks, 3)
	assert.Equal(t, "break", plan.Blocks[1].Type)
	assert.Empty(t, plan.Blocks[1].TaskTitle)
	assert.Equal(t, 2, plan.ActionableCount())
	assert.Equal(t, []string{"silence notifications"}, plan.Tips)
}

func TestGenerateDailyPlan_StripsCodeFence(t *testing.T) {
	g := chatServer(t, http.StatusOK, "```json\n"+dailyJSON+"\n```", nil)

	plan, err := g.GenerateDailyPlan(context.Background(), testItems, testPrefs, monday)
	require.NoError(t, err)
	assert.Len(t, plan.Blocks, 3)
}

func TestGenerateDailyPlan_Unavailable(t *testing.T) {
	cases := map[string]struct {
		status  int
		content string
	}{
		"upstream error":       {http.StatusServiceUnavailable, ""},
		"not json":             {http.StatusOK, "Here is your plan!"},
		"no blocks":            {http.StatusOK, `{"summary":"x","blocks":[]}`},
		"bad clock":            {http.StatusOK, `{"blocks":[{"type":"task","start":"9am","end":"10:00","task_title":"a"}]}`},
		"start after end":      {http.StatusOK, `{"blocks":[{"type":"task","start":"11:00","end":"10:00","task_title":"a"}]}`},
		"zero length":          {http.StatusOK, `{"blocks":[{"type":"task","start":"10:00","end":"10:00","task_title":"a"}]}`},
		"missing type":         {http.StatusOK, `{"blocks":[{"start":"09:00","end":"10:00","task_title":"a"}]}`},
		"out of range minutes": {http.StatusOK, `{"blocks":[{"type":"task","start":"09:60","end":"10:00","task_title":"a"}]}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g := chatServer(t, tc.status, tc.content, nil)
			_, err := g.GenerateDailyPlan(context.Background(), testItems, testPrefs, monday)
			assert.ErrorIs(t, err, ErrPlanningUnavailable)
		})
	}
}

func weeklyJSON(days int, withDates bool) string {
	var parts []string
	for i := 0; i < days; i++ {
		date := ""
		if withDates {
			date = monday.AddDate(0, 0, i).Format(models.DateLayout)
		}
		parts = append(parts, fmt.Sprintf(`{"date":%q,"day_name":"whatever","plan":{"summary":"d%d","productivity_score":70,
			"blocks":[{"type":"task","start":"09:00","end":"10:00","task_title":"Task %d"}]}}`, date, i, i))
	}
	return `{"days":[` + strings.Join(parts, ",") + `],"balance_score":140,"weekly_goals":["ship"]}`
}

func TestGenerateWeeklyPlan(t *testing.T) {
	g := chatServer(t, http.StatusOK, weeklyJSON(7, true), nil)

	plan, err := g.GenerateWeeklyPlan(context.Background(), testItems, testPrefs, monday)
	require.NoError(t, err)

	require.Len(t, plan.Days, 7)
	assert.Equal(t, "2026-03-02", plan.Days[0].Date)
	assert.Equal(t, "Monday", plan.Days[0].DayName)
	assert.Equal(t, "Sunday", plan.Days[6].DayName)
	assert.Equal(t, 7, plan.TotalTasks)
	assert.Equal(t, 7.0, plan.TotalEstimatedHours)
	assert.Equal(t, 100, plan.BalanceScore)
}

func TestGenerateWeeklyPlan_FillsMissingDates(t *testing.T) {
	g := chatServer(t, http.StatusOK, weeklyJSON(7, false), nil)

	plan, err := g.GenerateWeeklyPlan(context.Background(), testItems, testPrefs, monday)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-08", plan.Days[6].Date)
	assert.Equal(t, "Task 6", plan.Days[6].Plan.Blocks[0].TaskTitle)
}

func TestGenerateWeeklyPlan_WrongDayCount(t *testing.T) {
	g := chatServer(t, http.StatusOK, weeklyJSON(5, true), nil)

	_, err := g.GenerateWeeklyPlan(context.Background(), testItems, testPrefs, monday)
	assert.ErrorIs(t, err, ErrPlanningUnavailable)
}

func TestGenerateWeeklyPlan_WrongWeek(t *testing.T) {
	g := chatServer(t, http.StatusOK, weeklyJSON(7, true), nil)

	_, err := g.GenerateWeeklyPlan(context.Background(), testItems, testPrefs, monday.AddDate(0, 0, 7))
	assert.ErrorIs(t, err, ErrPlanningUnavailable)
}
