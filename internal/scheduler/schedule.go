package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type scheduleFile struct {
	Schedules map[string]string `yaml:"schedules"`
}

// LoadSchedules returns the cron spec per job, starting from the defaults
// and applying overrides from the optional YAML schedule file. Overriding
// an unknown job name is a configuration error.
func LoadSchedules(path string) (map[string]string, error) {
	schedules := make(map[string]string, len(defaultSchedules))
	for name, spec := range defaultSchedules {
		schedules[name] = spec
	}
	if path == "" {
		return schedules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	for name, spec := range file.Schedules {
		if _, known := schedules[name]; !known {
			return nil, fmt.Errorf("schedule file: unknown job %q", name)
		}
		schedules[name] = spec
	}
	return schedules, nil
}
