// Package script replays recorded input against a labelling session.
//
// A script is a YAML file naming a video source, a sequence of input events
// and the state expected afterwards:
//
//	name: advance_on_full
//	description: third click on a full frame advances
//	video: "noise:4x4x3"
//	capacity: 2
//	events: ["point 1 1", "point 2 2", "point 3 3"]
//	expect:
//	  frame_index: 1
//	  counts: [2, 0, 0]
//
// Scripts run against a display.Recorder, so every display command the
// session issues ends up in the transcript. Transcripts are compared against
// golden files in tests.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/session"
)

// ErrNoScripts is returned by LoadDir when the directory holds no scripts.
var ErrNoScripts = errors.New("no scripts found")

// DefaultSessionID is used when a script does not set session_id.
const DefaultSessionID = "script-session"

// Script is one replayable labelling run.
type Script struct {
	// Name uniquely identifies this script and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the script checks.
	Description string `yaml:"description"`

	// Video is the source to label. Scripts should use "noise:" sources so
	// they stay hermetic.
	Video string `yaml:"video"`

	// Capacity is the number of points per frame. When Joints is set it must
	// be zero or equal to len(Joints).
	// Defaults to 11.
	Capacity int `yaml:"capacity,omitempty"`

	// Joints names the points of a frame; the capacity is their count.
	Joints []string `yaml:"joints,omitempty"`

	// SessionID is the fixed ID given to the session.
	SessionID string `yaml:"session_id,omitempty"`

	// Events are parsed with session.ParseEvent.
	Events []string `yaml:"events"`

	// Expect is checked after the last event.
	Expect Expect `yaml:"expect"`
}

// Expect lists the checks run after a script. Unset fields are not checked.
type Expect struct {
	// FrameIndex is the cursor position after the last event that found the
	// session active.
	FrameIndex *int `yaml:"frame_index,omitempty"`

	// Counts is the number of points on each frame.
	Counts []int `yaml:"counts,omitempty"`

	// Points maps a frame index to its exact point sequence.
	Points map[int][]label.Point `yaml:"points,omitempty"`

	// Full reports whether every frame holds Capacity points.
	Full *bool `yaml:"full,omitempty"`

	// Exported reports whether Complete handed a result to the host.
	Exported *bool `yaml:"exported,omitempty"`

	// Message is the last message shown.
	Message *string `yaml:"message,omitempty"`
}

// Load reads and parses a script YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields, or is missing required fields.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a script with strict field validation.
func Parse(data []byte) (*Script, error) {
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, ordered by file name.
func LoadDir(dir string) ([]*Script, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoScripts, dir)
	}
	sort.Strings(paths)

	scripts := make([]*Script, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate script name %q (also in %s)", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		scripts = append(scripts, s)
	}
	return scripts, nil
}

func validate(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Video == "" {
		return fmt.Errorf("video is required")
	}
	if s.Capacity < 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if len(s.Joints) > 0 && s.Capacity > 0 && s.Capacity != len(s.Joints) {
		return fmt.Errorf("capacity %d does not match %d joints", s.Capacity, len(s.Joints))
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	for i, e := range s.Events {
		if _, err := session.ParseEvent(e); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	if s.Expect.FrameIndex != nil && *s.Expect.FrameIndex < 0 {
		return fmt.Errorf("expect.frame_index must be non-negative")
	}
	return nil
}
