package note

import (
	"fmt"
	"path/filepath"
	"time"
)

// journalDir and audioDir are the vault-relative directories notes and
// their audio live under (spec.md §4.E's filename and vault-relative path
// rules).
const (
	journalDir = "journal"
	audioDir   = "journal/audio"
)

// Filename computes YYYY-MM-DD-HHmmss-<kind>.md from createdLocal, the
// entry's creation instant already projected into its own timezone.
func Filename(createdLocal time.Time, kind string) string {
	return fmt.Sprintf("%s-%s.md", createdLocal.Format("2006-01-02-150405"), kind)
}

// NotePath returns the vault-absolute path for a note with the given
// filename.
func NotePath(vaultRoot, filename string) string {
	return filepath.Join(vaultRoot, journalDir, filename)
}

// AudioVaultPath returns the vault-absolute path where audio named
// audioFilename lives, alongside journal notes under journal/audio/.
func AudioVaultPath(vaultRoot, audioFilename string) string {
	return filepath.Join(vaultRoot, audioDir, audioFilename)
}

// AudioRelativePath is the path a note embeds for its own audio file: all
// audio references inside a note are written as "audio/<filename>" because
// notes live in <vault>/journal/ and audio in <vault>/journal/audio/.
func AudioRelativePath(audioFilename string) string {
	return "audio/" + audioFilename
}

// AudioVaultRelativePath is the path stored on the entry itself
// (Entry.NormalizedAudioPath/AudioPath), relative to the vault root rather
// than to the note file.
func AudioVaultRelativePath(audioFilename string) string {
	return filepath.Join(audioDir, audioFilename)
}
