package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

type jobsFile struct {
	Jobs []CronJob `json:"jobs"`
}

// Service persists and schedules CronJobs, backed by a single JSON file
// written atomically (temp file + rename), mirroring the workspace's other
// markdown/JSON stores.
type Service struct {
	mu   sync.Mutex
	path string
	jobs map[string]*CronJob
}

func NewService(path string) *Service {
	s := &Service{path: path, jobs: map[string]*CronJob{}}
	s.load()
	return s
}

func (s *Service) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var f jobsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return
	}
	for i := range f.Jobs {
		job := f.Jobs[i]
		s.jobs[job.ID] = &job
	}
}

func (s *Service) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f := jobsFile{Jobs: s.sortedJobsLocked()}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Service) sortedJobsLocked() []CronJob {
	out := make([]CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAtMs < out[k].CreatedAtMs })
	return out
}

// AddJobOptions collects the optional fields of add_job beyond the
// required name/schedule/message triple.
type AddJobOptions struct {
	PayloadKind    string
	ToolName       string
	ToolArgs       map[string]interface{}
	Deliver        bool
	Channel        string
	To             string
	DeleteAfterRun bool
}

// AddJob validates the schedule, computes its first run time, and persists
// the new job.
func (s *Service) AddJob(name string, schedule CronSchedule, message string, opts AddJobOptions, nowMs int64) (CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateSchedule(schedule, nowMs); err != nil {
		return CronJob{}, err
	}

	payloadKind := opts.PayloadKind
	if payloadKind == "" {
		payloadKind = "system_event"
	}

	next, err := computeNextRun(schedule, nowMs)
	if err != nil {
		return CronJob{}, err
	}

	job := CronJob{
		ID:             newJobID(),
		Name:           name,
		Schedule:       schedule,
		Enabled:        true,
		DeleteAfterRun: opts.DeleteAfterRun,
		CreatedAtMs:    nowMs,
		Payload: CronPayload{
			Kind:     payloadKind,
			Message:  message,
			ToolName: opts.ToolName,
			ToolArgs: opts.ToolArgs,
			Deliver:  opts.Deliver,
			Channel:  opts.Channel,
			To:       opts.To,
		},
		State: CronState{NextRunAtMs: next},
	}

	s.jobs[job.ID] = &job
	if err := s.saveLocked(); err != nil {
		delete(s.jobs, job.ID)
		return CronJob{}, err
	}
	return job, nil
}

func (s *Service) ListJobs(includeDisabled bool) []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CronJob
	for _, j := range s.sortedJobsLocked() {
		if j.Enabled || includeDisabled {
			out = append(out, j)
		}
	}
	return out
}

func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	_ = s.saveLocked()
	return true
}

func (s *Service) EnableJob(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Enabled = enabled
	_ = s.saveLocked()
	return true
}

// DueJobs returns enabled jobs whose next_run_at_ms has passed as of nowMs,
// recovering missed runs (e.g. the process was down past a scheduled time)
// by treating any past-due next_run as due exactly once.
func (s *Service) DueJobs(nowMs int64) []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []CronJob
	for _, job := range s.jobs {
		if !job.Enabled || job.State.NextRunAtMs == nil {
			continue
		}
		if *job.State.NextRunAtMs <= nowMs {
			due = append(due, *job)
		}
	}
	sort.Slice(due, func(i, k int) bool { return *due[i].State.NextRunAtMs < *due[k].State.NextRunAtMs })
	return due
}

// RecordRun advances a job's schedule after it has fired, removing it when
// it was one-shot and delete_after_run, or disabling it when its schedule
// can never fire again.
func (s *Service) RecordRun(id string, result string, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.State.LastRunAtMs = &nowMs
	job.State.LastResult = result
	job.State.RunCount++

	if job.DeleteAfterRun {
		delete(s.jobs, id)
		_ = s.saveLocked()
		return
	}

	next, err := computeNextRun(job.Schedule, nowMs+1)
	if err != nil || next == nil {
		job.Enabled = false
		job.State.NextRunAtMs = nil
	} else {
		job.State.NextRunAtMs = next
	}
	_ = s.saveLocked()
}

// validateSchedule checks a schedule is well-formed and, for a one-shot
// "at" schedule, that it isn't already in the past as of nowMs — per spec,
// a past at{ms} is rejected at add time rather than silently persisted as
// a job that can never fire.
func validateSchedule(schedule CronSchedule, nowMs int64) error {
	switch schedule.Kind {
	case "every":
		if schedule.EveryMs <= 0 {
			return fmt.Errorf("every_ms must be > 0")
		}
	case "cron":
		if schedule.Expr == "" {
			return fmt.Errorf("expr is required for cron schedule")
		}
		if schedule.TZ != "" {
			if _, err := time.LoadLocation(schedule.TZ); err != nil {
				return fmt.Errorf("unknown timezone '%s'", schedule.TZ)
			}
		}
		if !gronx.IsValid(schedule.Expr) {
			return fmt.Errorf("invalid cron expression: %s", schedule.Expr)
		}
	case "at":
		if schedule.AtMs <= 0 {
			return fmt.Errorf("at_ms must be > 0")
		}
		if schedule.AtMs <= nowMs {
			return fmt.Errorf("at_ms must be in the future")
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
	return nil
}

// computeNextRun returns the next fire time in epoch milliseconds, or nil
// for a one-shot "at" schedule that has already fired.
func computeNextRun(schedule CronSchedule, afterMs int64) (*int64, error) {
	switch schedule.Kind {
	case "every":
		next := afterMs + schedule.EveryMs
		return &next, nil
	case "at":
		if schedule.AtMs <= afterMs {
			return nil, nil
		}
		at := schedule.AtMs
		return &at, nil
	case "cron":
		loc := time.Local
		if schedule.TZ != "" {
			l, err := time.LoadLocation(schedule.TZ)
			if err != nil {
				return nil, fmt.Errorf("unknown timezone '%s'", schedule.TZ)
			}
			loc = l
		}
		ref := time.UnixMilli(afterMs).In(loc)
		next, err := gronx.NextTickAfter(schedule.Expr, ref, false)
		if err != nil {
			return nil, err
		}
		ms := next.UnixMilli()
		return &ms, nil
	default:
		return nil, fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
}
