package scheduler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSchedulesDefaults(t *testing.T) {
	schedules, err := LoadSchedules("")
	if err != nil {
		t.Fatalf("LoadSchedules: %v", err)
	}
	if len(schedules) != len(defaultSchedules) {
		t.Errorf("got %d schedules, want %d", len(schedules), len(defaultSchedules))
	}
	if schedules[TaskDispatchCampaigns] != "* * * * *" {
		t.Errorf("campaign dispatch spec = %q", schedules[TaskDispatchCampaigns])
	}
}

func TestLoadSchedulesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	contents := "schedules:\n  \"leads:rescore_stale\": \"15 2 * * *\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	schedules, err := LoadSchedules(path)
	if err != nil {
		t.Fatalf("LoadSchedules: %v", err)
	}
	if schedules[TaskRescoreStale] != "15 2 * * *" {
		t.Errorf("override not applied: %q", schedules[TaskRescoreStale])
	}
	if schedules[TaskSendReminders] != defaultSchedules[TaskSendReminders] {
		t.Error("untouched schedule changed")
	}
}

func TestLoadSchedulesRejectsUnknownJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	contents := "schedules:\n  \"leads:made_up\": \"0 0 * * *\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSchedules(path); err == nil {
		t.Fatal("expected error for unknown job name")
	}
}
