package cron

import (
	"os"
	"path/filepath"
)

const legacyCodexMergeJobID = "8dbfbddb"

// ApplyMigrations runs one-time, idempotent data migrations against an
// already-loaded Service. Safe to call on every startup: each migration
// checks whether its target state already exists before acting.
func (s *Service) ApplyMigrations(workspace string, nowMs int64) error {
	return s.migrateCodexMergeCron(workspace, nowMs)
}

// migrateCodexMergeCron seeds the nightly codex-merge planning job,
// carrying forward delivery settings from the legacy job it replaces (if
// one exists) and cleaning up the pre-rename reports directory.
func (s *Service) migrateCodexMergeCron(workspace string, nowMs int64) error {
	jobs := s.ListJobs(true)

	var deliveryChannel, deliveryTo string
	for _, job := range jobs {
		if job.ID == legacyCodexMergeJobID {
			deliveryChannel = job.Payload.Channel
			deliveryTo = job.Payload.To
			s.RemoveJob(job.ID)
			break
		}
	}

	reportsDir := filepath.Join(workspace, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return err
	}
	legacyReportsDir := filepath.Join(workspace, "report")
	if info, err := os.Stat(legacyReportsDir); err == nil && info.IsDir() {
		_ = os.RemoveAll(legacyReportsDir)
	}

	jobs = s.ListJobs(true)
	for _, job := range jobs {
		if job.Payload.Kind != "tool_call" || job.Payload.ToolName != "codex_merge" {
			continue
		}
		if job.Payload.ToolArgs["action"] != "plan_latest" {
			continue
		}
		if job.Schedule.Kind != "cron" || job.Schedule.Expr != "0 23 * * *" {
			continue
		}
		return nil // already migrated
	}

	_, err := s.AddJob(
		"nightly-codex-merge-plan",
		CronSchedule{Kind: "cron", Expr: "0 23 * * *"},
		"Nightly codex merge planning",
		AddJobOptions{
			PayloadKind: "tool_call",
			ToolName:    "codex_merge",
			ToolArgs: map[string]interface{}{
				"action":        "plan_latest",
				"base_ref":      "origin/main",
				"upstream_ref":  "upstream/main",
				"target_branch": "main",
			},
			Deliver: deliveryChannel != "" && deliveryTo != "",
			Channel: deliveryChannel,
			To:      deliveryTo,
		},
		nowMs,
	)
	return err
}
