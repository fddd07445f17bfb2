package settings

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/mediaconv/pkg/format"
)

// Table holds named quality presets per output format
type Table map[format.Tag]map[string]Settings

// Lookup returns the preset with the given name for a format. Names are
// matched case-insensitively.
func (t Table) Lookup(tag format.Tag, name string) (Settings, bool) {
	byName, ok := t[tag]
	if !ok {
		return Settings{}, false
	}
	preset, ok := byName[strings.ToLower(name)]
	return preset, ok
}

// Names returns the sorted preset names available for a format
func (t Table) Names(tag format.Tag) []string {
	byName := t[tag]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge applies every preset from other on top of t, adding formats and
// replacing same-named presets
func (t Table) Merge(other Table) {
	for tag, byName := range other {
		if t[tag] == nil {
			t[tag] = make(map[string]Settings)
		}
		for name, preset := range byName {
			t[tag][strings.ToLower(name)] = preset
		}
	}
}

func intp(v int) *int { return &v }

// BuiltinPresets returns the default quality preset table. Video presets
// trade CRF against encoder speed; audio presets trade bitrate.
func BuiltinPresets() Table {
	videoPresets := func() map[string]Settings {
		return map[string]Settings{
			"low":      {CRF: intp(30), Preset: "veryfast"},
			"balanced": {CRF: intp(23), Preset: "medium"},
			"high":     {CRF: intp(19), Preset: "slow"},
			"archive":  {CRF: intp(16), Preset: "veryslow"},
		}
	}
	table := Table{}
	for _, tag := range format.Known() {
		if tag.Video() {
			table[tag] = videoPresets()
		}
	}
	// VP9/AV1 CRF scales differ; WebM presets carry their own values.
	table[format.WebM] = map[string]Settings{
		"low":      {CRF: intp(40)},
		"balanced": {CRF: intp(32)},
		"high":     {CRF: intp(24)},
		"archive":  {CRF: intp(18)},
	}
	// Each tag gets its own map: Merge writes in place, so sharing one
	// instance would leak overlays across formats.
	audioPresets := func() map[string]Settings {
		return map[string]Settings{
			"low":      {AudioBitrate: "96k"},
			"balanced": {AudioBitrate: "160k"},
			"high":     {AudioBitrate: "256k"},
			"archive":  {AudioBitrate: "320k"},
		}
	}
	for _, tag := range []format.Tag{format.MP3, format.AAC, format.M4A, format.OGG} {
		table[tag] = audioPresets()
	}
	return table
}

// LoadPresetFile reads a YAML preset overlay keyed by format name then
// preset name. Unknown format keys are rejected so typos do not silently
// create unreachable presets.
func LoadPresetFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	var raw map[string]map[string]Settings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse preset file %s: %w", path, err)
	}
	table := Table{}
	for name, byName := range raw {
		tag, err := format.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("preset file %s: unknown format %q", path, name)
		}
		table[tag] = make(map[string]Settings, len(byName))
		for presetName, preset := range byName {
			table[tag][strings.ToLower(presetName)] = preset
		}
	}
	return table, nil
}
