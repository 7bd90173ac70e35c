// Package cron implements the scheduled-job registry used for reminders,
// recurring agent tasks, and one-off timers: gronx-backed cron expression
// evaluation, interval/at-time schedules, missed-run recovery on startup,
// and dispatch of due jobs back into the agent runtime.
package cron

import "github.com/google/uuid"

// CronSchedule is a tagged union over the three supported schedule kinds.
type CronSchedule struct {
	Kind string `json:"kind"` // "every", "cron", or "at"

	EveryMs int64  `json:"every_ms,omitempty"` // kind=every
	Expr    string `json:"expr,omitempty"`     // kind=cron
	TZ      string `json:"tz,omitempty"`       // kind=cron, IANA name; "" = local
	AtMs    int64  `json:"at_ms,omitempty"`    // kind=at
}

// CronPayload is a tagged union over what a job does when it fires.
type CronPayload struct {
	Kind string `json:"kind"` // "system_event", "tool_call", or "agent_turn"

	Message string `json:"message,omitempty"`

	ToolName string                 `json:"tool_name,omitempty"`
	ToolArgs map[string]interface{} `json:"tool_args,omitempty"`

	Deliver bool   `json:"deliver"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

// CronState tracks scheduling bookkeeping for a job, separate from its
// identity and payload so persistence can overwrite it independently.
type CronState struct {
	NextRunAtMs *int64 `json:"next_run_at_ms,omitempty"`
	LastRunAtMs *int64 `json:"last_run_at_ms,omitempty"`
	LastResult  string `json:"last_result,omitempty"`
	RunCount    int    `json:"run_count"`
}

// CronJob is one scheduled unit of work.
type CronJob struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Schedule        CronSchedule `json:"schedule"`
	Payload         CronPayload  `json:"payload"`
	Enabled         bool         `json:"enabled"`
	DeleteAfterRun  bool         `json:"delete_after_run"`
	State           CronState    `json:"state"`
	CreatedAtMs     int64        `json:"created_at_ms"`
}

func newJobID() string {
	id := uuid.New()
	return id.String()[:8]
}
