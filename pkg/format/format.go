// Package format resolves media container formats from file paths and, when
// the extension is not conclusive, from the encoder's own stream probe.
package format

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/psantana5/mediaconv/pkg/converr"
)

// Tag is a canonical container format identifier
type Tag string

const (
	MP4  Tag = "mp4"
	MOV  Tag = "mov"
	MKV  Tag = "mkv"
	AVI  Tag = "avi"
	WebM Tag = "webm"
	FLV  Tag = "flv"
	MP3  Tag = "mp3"
	AAC  Tag = "aac"
	M4A  Tag = "m4a"
	WAV  Tag = "wav"
	FLAC Tag = "flac"
	OGG  Tag = "ogg"
)

// Video reports whether the tag is a video container
func (t Tag) Video() bool {
	switch t {
	case MP4, MOV, MKV, AVI, WebM, FLV:
		return true
	}
	return false
}

// Known returns all supported format tags, video containers first
func Known() []Tag {
	return []Tag{MP4, MOV, MKV, AVI, WebM, FLV, MP3, AAC, M4A, WAV, FLAC, OGG}
}

// extensions maps lowercase file extensions (without dot) to tags
var extensions = map[string]Tag{
	"mp4":  MP4,
	"m4v":  MP4,
	"mov":  MOV,
	"qt":   MOV,
	"mkv":  MKV,
	"avi":  AVI,
	"webm": WebM,
	"flv":  FLV,
	"mp3":  MP3,
	"aac":  AAC,
	"m4a":  M4A,
	"wav":  WAV,
	"flac": FLAC,
	"ogg":  OGG,
	"oga":  OGG,
}

// containerAliases maps ffmpeg demuxer names to canonical tags. ffmpeg
// reports comma-separated alias lists ("mov,mp4,m4a,3gp,3g2,mj2"), so
// matching is by substring containment against the probed string.
var containerAliases = []struct {
	needle string
	tag    Tag
}{
	{"matroska", MKV},
	{"webm", WebM},
	{"mov,mp4,m4a", MP4},
	{"mp4", MP4},
	{"mov", MOV},
	{"avi", AVI},
	{"flv", FLV},
	{"mp3", MP3},
	{"adts", AAC},
	{"aac", AAC},
	{"wav", WAV},
	{"flac", FLAC},
	{"ogg", OGG},
}

// UnsupportedError reports a path or probed container that maps to no known
// format. Raw carries the extension or container string as seen.
type UnsupportedError struct {
	Raw string
}

// Error implements the error interface
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported media format %q", e.Raw)
}

// Category implements converr.Categorized
func (e *UnsupportedError) Category() converr.Category {
	return converr.CategoryUnsupportedFormat
}

// Resolve determines the format tag for path from its extension. It is the
// cheap, deterministic first pass; callers fall back to Prober.Probe when it
// fails or when content inspection was explicitly requested.
func Resolve(path string) (Tag, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", &UnsupportedError{Raw: path}
	}
	if tag, ok := extensions[ext]; ok {
		return tag, nil
	}
	return "", &UnsupportedError{Raw: ext}
}

// FromContainer maps an ffmpeg-reported container string to a canonical tag
func FromContainer(container string) (Tag, error) {
	needle := strings.ToLower(strings.TrimSpace(container))
	if needle == "" {
		return "", &UnsupportedError{Raw: container}
	}
	for _, alias := range containerAliases {
		if strings.Contains(needle, alias.needle) {
			return alias.tag, nil
		}
	}
	return "", &UnsupportedError{Raw: container}
}

// Parse converts a user-supplied format name to a tag
func Parse(name string) (Tag, error) {
	candidate := Tag(strings.ToLower(strings.TrimSpace(name)))
	for _, tag := range Known() {
		if candidate == tag {
			return tag, nil
		}
	}
	return "", &UnsupportedError{Raw: name}
}
