package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/cron"
)

// CronTool schedules reminders and recurring tasks. Only available to the
// main agent's registry — subagents never see it.
type CronTool struct {
	service *cron.Service
}

func NewCronTool(service *cron.Service) *CronTool {
	return &CronTool{service: service}
}

func (t *CronTool) Name() string { return "cron" }

func (t *CronTool) Description() string {
	return "Schedule reminders and recurring tasks. Modes: reminder, task, one_time. Actions: add, list, remove."
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"add", "list", "remove"},
				"description": "Action to perform.",
			},
			"message": map[string]interface{}{"type": "string", "description": "Reminder message (for add)."},
			"mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"reminder", "task", "one_time"},
				"description": "reminder: periodic direct reminders; task: periodic agent tasks; one_time: one-shot direct reminder.",
			},
			"every_seconds": map[string]interface{}{"type": "number", "description": "Interval in seconds (for recurring tasks)."},
			"cron_expr":     map[string]interface{}{"type": "string", "description": "Cron expression like '0 9 * * *' (for scheduled tasks)."},
			"in_seconds":    map[string]interface{}{"type": "number", "description": "Run once after N seconds (for one-time reminders)."},
			"at":            map[string]interface{}{"type": "string", "description": "Run once at ISO datetime, e.g. 2026-02-11T09:00:00."},
			"job_id":        map[string]interface{}{"type": "string", "description": "Job ID (for remove)."},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)

	switch action {
	case "add":
		return t.add(args, channel, chatID)
	case "list":
		return t.list()
	case "remove":
		jobID, _ := args["job_id"].(string)
		return t.remove(jobID)
	default:
		return ErrorResult(fmt.Sprintf("Unknown action: %s", action))
	}
}

func (t *CronTool) add(args map[string]interface{}, channel, chatID string) *Result {
	message, _ := args["message"].(string)
	if message == "" {
		return ErrorResult("Error: message is required for add")
	}
	if channel == "" || chatID == "" {
		return ErrorResult("Error: no session context (channel/chat_id)")
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "reminder"
	}
	if mode != "reminder" && mode != "task" && mode != "one_time" {
		return ErrorResult("Error: mode must be 'reminder', 'task', or 'one_time'")
	}

	everySeconds, hasEvery := numArg(args, "every_seconds")
	cronExpr, _ := args["cron_expr"].(string)
	inSeconds, hasIn := numArg(args, "in_seconds")
	at, _ := args["at"].(string)

	nowMs := time.Now().UnixMilli()
	deleteAfterRun := false
	var schedule cron.CronSchedule

	if mode == "reminder" || mode == "task" {
		periodicCount := boolToInt(hasEvery) + boolToInt(cronExpr != "")
		if periodicCount != 1 {
			return ErrorResult("Error: reminder/task mode requires exactly one of every_seconds or cron_expr")
		}
		if hasIn || at != "" {
			return ErrorResult("Error: reminder/task mode does not allow in_seconds or at")
		}
		if hasEvery {
			if everySeconds <= 0 {
				return ErrorResult("Error: every_seconds must be > 0")
			}
			schedule = cron.CronSchedule{Kind: "every", EveryMs: int64(everySeconds * 1000)}
		} else {
			schedule = cron.CronSchedule{Kind: "cron", Expr: cronExpr}
		}
	} else {
		oneTimeCount := boolToInt(hasIn) + boolToInt(at != "")
		if oneTimeCount != 1 {
			return ErrorResult("Error: one_time mode requires exactly one of in_seconds or at")
		}
		if hasEvery || cronExpr != "" {
			return ErrorResult("Error: one_time mode does not allow every_seconds or cron_expr")
		}
		if hasIn {
			if inSeconds <= 0 {
				return ErrorResult("Error: in_seconds must be > 0")
			}
			schedule = cron.CronSchedule{Kind: "at", AtMs: nowMs + int64(inSeconds*1000)}
			deleteAfterRun = true
		} else {
			parsed, err := time.ParseInLocation("2006-01-02T15:04:05", at, time.Local)
			if err != nil {
				if p2, err2 := time.Parse(time.RFC3339, at); err2 == nil {
					parsed = p2
				} else {
					return ErrorResult("Error: at must be an ISO datetime like 2026-02-11T09:00:00")
				}
			}
			atMs := parsed.UnixMilli()
			if atMs <= nowMs {
				return ErrorResult("Error: at must be in the future")
			}
			schedule = cron.CronSchedule{Kind: "at", AtMs: atMs}
			deleteAfterRun = true
		}
	}

	payloadKind := "system_event"
	if mode == "task" {
		payloadKind = "agent_turn"
	}
	name := message
	if len(name) > 30 {
		name = name[:30]
	}

	job, err := t.service.AddJob(name, schedule, message, cron.AddJobOptions{
		PayloadKind:    payloadKind,
		Deliver:        true,
		Channel:        channel,
		To:             chatID,
		DeleteAfterRun: deleteAfterRun,
	}, nowMs)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err))
	}

	scheduleLabel := "recurring"
	if mode == "one_time" {
		scheduleLabel = "one-time"
	}
	return NewResult(fmt.Sprintf("Created %s job '%s' (id: %s, mode: %s)", scheduleLabel, job.Name, job.ID, mode))
}

func (t *CronTool) list() *Result {
	jobs := t.service.ListJobs(false)
	if len(jobs) == 0 {
		return NewResult("No scheduled jobs.")
	}
	out := "Scheduled jobs:\n"
	for _, j := range jobs {
		out += fmt.Sprintf("- %s (id: %s, %s)\n", j.Name, j.ID, j.Schedule.Kind)
	}
	return NewResult(out)
}

func (t *CronTool) remove(jobID string) *Result {
	if jobID == "" {
		return ErrorResult("Error: job_id is required for remove")
	}
	if t.service.RemoveJob(jobID) {
		return NewResult(fmt.Sprintf("Removed job %s", jobID))
	}
	return NewResult(fmt.Sprintf("Job %s not found", jobID))
}

func numArg(args map[string]interface{}, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
