package cron

import (
	"path/filepath"
	"testing"
)

func TestAddJob_EveryScheduleComputesNextRun(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	nowMs := int64(1000)

	job, err := s.AddJob("reminder", CronSchedule{Kind: "every", EveryMs: 5000}, "ping", AddJobOptions{}, nowMs)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if job.ID == "" {
		t.Error("AddJob() returned a job with an empty ID")
	}
	if job.State.NextRunAtMs == nil || *job.State.NextRunAtMs != nowMs+5000 {
		t.Errorf("NextRunAtMs = %v, want %d", job.State.NextRunAtMs, nowMs+5000)
	}
	if !job.Enabled {
		t.Error("AddJob() created a disabled job, want enabled by default")
	}
}

func TestAddJob_ValidatesSchedule(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))

	tests := []struct {
		name     string
		schedule CronSchedule
	}{
		{"every zero", CronSchedule{Kind: "every", EveryMs: 0}},
		{"cron missing expr", CronSchedule{Kind: "cron", Expr: ""}},
		{"cron invalid expr", CronSchedule{Kind: "cron", Expr: "not a cron expr"}},
		{"cron bad timezone", CronSchedule{Kind: "cron", Expr: "* * * * *", TZ: "Not/AZone"}},
		{"at zero", CronSchedule{Kind: "at", AtMs: 0}},
		{"at in the past", CronSchedule{Kind: "at", AtMs: 999}},
		{"unknown kind", CronSchedule{Kind: "bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddJob("job", tt.schedule, "msg", AddJobOptions{}, 1000); err == nil {
				t.Errorf("AddJob(%+v) error = nil, want an error", tt.schedule)
			}
		})
	}
}

func TestListJobs_FiltersDisabled(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	job, err := s.AddJob("job", CronSchedule{Kind: "every", EveryMs: 1000}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.EnableJob(job.ID, false)

	if got := s.ListJobs(false); len(got) != 0 {
		t.Errorf("ListJobs(false) = %d jobs, want 0 (disabled excluded)", len(got))
	}
	if got := s.ListJobs(true); len(got) != 1 {
		t.Errorf("ListJobs(true) = %d jobs, want 1", len(got))
	}
}

func TestRemoveJob(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	job, err := s.AddJob("job", CronSchedule{Kind: "every", EveryMs: 1000}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if !s.RemoveJob(job.ID) {
		t.Error("RemoveJob() = false for an existing job, want true")
	}
	if s.RemoveJob(job.ID) {
		t.Error("RemoveJob() = true for an already-removed job, want false")
	}
	if len(s.ListJobs(true)) != 0 {
		t.Error("job still present after RemoveJob")
	}
}

func TestDueJobs_OnlyPastDueEnabled(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	due, err := s.AddJob("due", CronSchedule{Kind: "every", EveryMs: 100}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	notDue, err := s.AddJob("not-due", CronSchedule{Kind: "every", EveryMs: 1_000_000}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.EnableJob(notDue.ID, true)

	disabled, err := s.AddJob("disabled", CronSchedule{Kind: "every", EveryMs: 100}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.EnableJob(disabled.ID, false)

	got := s.DueJobs(1_000_000)
	if len(got) != 1 || got[0].ID != due.ID {
		t.Errorf("DueJobs() = %+v, want exactly the one past-due enabled job", got)
	}
}

func TestRecordRun_DeleteAfterRun(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	job, err := s.AddJob("one-shot", CronSchedule{Kind: "at", AtMs: 500}, "m", AddJobOptions{DeleteAfterRun: true}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.RecordRun(job.ID, "ok", 500)

	if len(s.ListJobs(true)) != 0 {
		t.Error("job with DeleteAfterRun still present after RecordRun")
	}
}

func TestRecordRun_AtScheduleDisabledAfterFiring(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	job, err := s.AddJob("one-shot", CronSchedule{Kind: "at", AtMs: 500}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.RecordRun(job.ID, "ok", 500)

	jobs := s.ListJobs(true)
	if len(jobs) != 1 {
		t.Fatalf("ListJobs(true) = %d jobs, want 1", len(jobs))
	}
	if jobs[0].Enabled {
		t.Error("one-shot 'at' job still enabled after firing, want disabled")
	}
	if jobs[0].State.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", jobs[0].State.RunCount)
	}
	if jobs[0].State.LastResult != "ok" {
		t.Errorf("LastResult = %q, want %q", jobs[0].State.LastResult, "ok")
	}
}

func TestRecordRun_EveryScheduleReschedules(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "cron.json"))
	job, err := s.AddJob("recurring", CronSchedule{Kind: "every", EveryMs: 1000}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s.RecordRun(job.ID, "ok", 1000)

	jobs := s.ListJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("ListJobs(false) = %d jobs, want 1", len(jobs))
	}
	if jobs[0].State.NextRunAtMs == nil || *jobs[0].State.NextRunAtMs != 2001 {
		t.Errorf("NextRunAtMs = %v, want 2001", jobs[0].State.NextRunAtMs)
	}
}

func TestService_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.json")
	s := NewService(path)
	job, err := s.AddJob("job", CronSchedule{Kind: "every", EveryMs: 1000}, "m", AddJobOptions{}, 0)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	reloaded := NewService(path)
	jobs := reloaded.ListJobs(true)
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Errorf("reloaded jobs = %+v, want the one persisted job %q", jobs, job.ID)
	}
}
