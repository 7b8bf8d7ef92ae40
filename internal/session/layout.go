package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// LayoutVersion identifies the directory layout contract downstream tooling
// depends on. Bump only with a migration story.
const LayoutVersion = 1

// Subdirs is the fixed, versioned set of subdirectories every session tree
// contains. Downstream tools expect these names verbatim.
var Subdirs = []string{
	"audio",
	"video_clips",
	"images",
	"scripts",
	"logs",
	"metadata",
	"discussions",
	"final_output",
	"other",
}

// subdirForType maps an artifact class to its layout subdirectory.
var subdirForType = map[FileType]string{
	FileTypeAudio:      "audio",
	FileTypeVideoClip:  "video_clips",
	FileTypeImage:      "images",
	FileTypeScript:     "scripts",
	FileTypeLog:        "logs",
	FileTypeDiscussion: "discussions",
	FileTypeMetadata:   "metadata",
	FileTypeOther:      "other",
}

// SubdirFor returns the layout subdirectory for a file type. Unknown types
// land in "other" rather than failing, so callers can extend artifact classes
// without breaking tracking.
func SubdirFor(t FileType) string {
	if d, ok := subdirForType[t]; ok {
		return d
	}
	return "other"
}

// CreateLayout creates the session root and every layout subdirectory.
func CreateLayout(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create session root: %w", err)
	}
	for _, sub := range Subdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return fmt.Errorf("create session subdir %s: %w", sub, err)
		}
	}
	return nil
}
