package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// profile is what a browser would keep between visits: the session cookie
// and both storages. One profile file is one browser with one tab.
type profile struct {
	Server  string            `yaml:"server"`
	Session string            `yaml:"session,omitempty"`
	Local   map[string]string `yaml:"local,omitempty"`
	Tab     map[string]string `yaml:"tab,omitempty"`
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".reviewctl.yaml"
	}
	return filepath.Join(dir, "course-review", "reviewctl.yaml")
}

// loadProfile reads path. A missing file is an empty profile.
func loadProfile(path string) (*profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return &p, nil
}

// forServer drops everything saved for a different server.
func (p *profile) forServer(server string) {
	if p.Server == server {
		return
	}
	*p = profile{Server: server}
}

// save writes the profile readable by the owner only: it holds a session
// token.
func (p *profile) save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
