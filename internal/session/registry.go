package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxCollisionSuffix bounds the disambiguation loop so a pathological caller
// cannot spin forever on a directory full of claimed names.
const maxCollisionSuffix = 10000

// FileRegistry is the collision-free artifact ledger of one session. Claiming
// a destination name is atomic (O_CREATE|O_EXCL), so concurrent writers racing
// for the same basename each get a distinct path. A record is appended only
// after the artifact bytes are fully in place.
type FileRegistry struct {
	root string

	mu      sync.Mutex
	records []TrackedFile
}

func NewFileRegistry(root string) *FileRegistry {
	return &FileRegistry{root: root}
}

// Ingest copies the artifact at localPath into destDir under baseName,
// disambiguating on collision by appending _1, _2, ... before the extension.
// The destination is claimed atomically, the payload is copied to a temporary
// sibling and renamed over the claim, so a crash mid-copy never leaves a
// registered partial file.
func (r *FileRegistry) Ingest(localPath, destDir, baseName string) (string, int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("%w: open source %s: %v", ErrFileTracking, localPath, err)
	}
	defer src.Close()

	dest, claim, err := r.claim(destDir, baseName)
	if err != nil {
		return "", 0, err
	}
	claim.Close()

	tmp := dest + ".part"
	size, err := copyToTemp(src, tmp)
	if err != nil {
		os.Remove(tmp)
		os.Remove(dest)
		return "", 0, fmt.Errorf("%w: copy %s: %v", ErrFileTracking, baseName, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		os.Remove(dest)
		return "", 0, fmt.Errorf("%w: rename %s: %v", ErrFileTracking, baseName, err)
	}

	return dest, size, nil
}

// claim atomically reserves a unique destination path inside destDir.
func (r *FileRegistry) claim(destDir, baseName string) (string, *os.File, error) {
	ext := filepath.Ext(baseName)
	stem := strings.TrimSuffix(baseName, ext)

	for i := 0; i <= maxCollisionSuffix; i++ {
		name := baseName
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		dest := filepath.Join(destDir, name)

		f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return dest, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("%w: claim %s: %v", ErrFileTracking, dest, err)
		}
	}
	return "", nil, fmt.Errorf("%w: no free name for %s after %d attempts", ErrFileTracking, baseName, maxCollisionSuffix)
}

func copyToTemp(src io.Reader, tmp string) (int64, error) {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, err
	}
	return n, f.Close()
}

// Append records a tracked file. Order is assigned from the current record
// count under the registry lock.
func (r *FileRegistry) Append(tf TrackedFile) TrackedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	tf.Order = len(r.records)
	r.records = append(r.records, tf)
	return tf
}

// Records returns a snapshot of the tracked files in creation order.
func (r *FileRegistry) Records() []TrackedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TrackedFile, len(r.records))
	copy(out, r.records)
	return out
}

// Count returns the number of tracked files.
func (r *FileRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
