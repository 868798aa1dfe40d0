package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Calendar != DefaultCalendar {
		t.Errorf("Expected calendar %s, got %s", DefaultCalendar, cfg.Calendar)
	}
	if cfg.Blackout.StartHour != 22 || cfg.Blackout.EndHour != 8 {
		t.Errorf("unexpected blackout %+v", cfg.Blackout)
	}
	if cfg.HorizonDays != 7 || cfg.SlotMinutes != 30 {
		t.Errorf("unexpected horizon/slot %d/%d", cfg.HorizonDays, cfg.SlotMinutes)
	}
	if cfg.DBPath != filepath.Join(filepath.Dir(path), "taskplan.db") {
		t.Errorf("unexpected db path %s", cfg.DBPath)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"calendar": "Planner", "primary_email": "me@example.com", "timezone": "UTC", "llm": {"model": "gpt-4o"}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKPLAN_HORIZON_DAYS", "3")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Calendar != "Planner" || cfg.PrimaryEmail != "me@example.com" || cfg.Timezone != "UTC" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %s", cfg.LLM.Model)
	}
	if cfg.HorizonDays != 3 {
		t.Errorf("Expected env override horizon 3, got %d", cfg.HorizonDays)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("Expected OPENAI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"timezone": "Mars/Olympus"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected invalid timezone to fail")
	}

	if err := os.WriteFile(path, []byte(`{"primary_email": "not-an-email"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected invalid email to fail")
	}
}

func TestSetCalendarKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := SetCalendar(path, "Work"); err != nil {
		t.Fatalf("SetCalendar failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"calendar": "Work", "timezone": "UTC"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := SetCalendar(path, "Home"); err != nil {
		t.Fatalf("SetCalendar failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Calendar != "Home" || cfg.Timezone != "UTC" {
		t.Errorf("unexpected config after SetCalendar: %+v", cfg)
	}
}
