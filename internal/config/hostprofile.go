package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadHostProfile loads a selector profile from a YAML file. The name is
// tried under profilesDir first, then as an absolute/relative path. Profiles
// exist because the host markup is an unversioned contract: when Gmail ships
// new markup, a new profile file beats a new binary.
func LoadHostProfile(profilesDir, name string) (*Selectors, error) {
	path := filepath.Join(profilesDir, name)
	if !fileExists(path) {
		path = name
		if !fileExists(path) {
			return nil, fmt.Errorf("host profile not found: %s", name)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read host profile: %w", err)
	}

	var profile struct {
		Resched *Selectors `yaml:"resched"`
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse host profile: %w", err)
	}

	if profile.Resched == nil {
		return nil, fmt.Errorf("invalid host profile: missing resched section")
	}

	return profile.Resched, nil
}

// apply overlays non-empty fields of the profile onto the receiver
func (s *Selectors) apply(p *Selectors) {
	if p == nil {
		return
	}
	if p.CancelText != "" {
		s.CancelText = p.CancelText
	}
	if p.ScheduledTime != "" {
		s.ScheduledTime = p.ScheduledTime
	}
	if p.Menu != "" {
		s.Menu = p.Menu
	}
	if p.MenuItem != "" {
		s.MenuItem = p.MenuItem
	}
	if p.TemplateText != "" {
		s.TemplateText = p.TemplateText
	}
	if p.DateInput != "" {
		s.DateInput = p.DateInput
	}
	if p.TimeInput != "" {
		s.TimeInput = p.TimeInput
	}
	if p.ConfirmText != "" {
		s.ConfirmText = p.ConfirmText
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
