// Package profile reads user profiles from the external profile
// collaborator. Profiles are read-only input to the pipeline.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// FileSource loads profiles from a JSON document on disk, the hand-off
// format agreed with the profile-management collaborator.
type FileSource struct {
	path string
}

// NewFileSource wires a profile file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Profiles reads and decodes the profile document.
func (s *FileSource) Profiles(_ context.Context) ([]pipeline.UserProfile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var profiles []pipeline.UserProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles file: %w", err)
	}
	return profiles, nil
}

// StaticSource serves a fixed profile list (used in tests and dry runs).
type StaticSource struct {
	profiles []pipeline.UserProfile
}

// NewStaticSource wires a fixed list.
func NewStaticSource(profiles []pipeline.UserProfile) *StaticSource {
	return &StaticSource{profiles: profiles}
}

// Profiles returns the fixed list.
func (s *StaticSource) Profiles(_ context.Context) ([]pipeline.UserProfile, error) {
	return s.profiles, nil
}
