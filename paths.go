package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// monthNames maps month numbers to two-digit-prefixed folder names
var monthNames = map[time.Month]string{
	time.January: "01-January", time.February: "02-February",
	time.March: "03-March", time.April: "04-April",
	time.May: "05-May", time.June: "06-June",
	time.July: "07-July", time.August: "08-August",
	time.September: "09-September", time.October: "10-October",
	time.November: "11-November", time.December: "12-December",
}

// PathBuilder constructs collision-free destination paths under an output
// root, laid out as root/year/month/day/place/filename.
type PathBuilder struct {
	root     string
	dirLocks *dirLockManager
}

// NewPathBuilder creates a path builder rooted at the output folder
func NewPathBuilder(root string) *PathBuilder {
	return &PathBuilder{
		root:     root,
		dirLocks: newDirLockManager(),
	}
}

// Build computes the destination path for a file, creating intermediate
// directories on demand. The returned path is reserved before Build returns:
// a placeholder is created with O_EXCL, so no later Build (and no other
// process creating files atomically) can claim the same slot. Name collisions
// get an incrementing numeric suffix before the extension. The caller owns
// the placeholder and either overwrites it with the real file or removes it.
func (b *PathBuilder) Build(dateTaken time.Time, location string, originalPath string) (string, error) {
	destDir := filepath.Join(
		b.root,
		fmt.Sprintf("%04d", dateTaken.Year()),
		monthNames[dateTaken.Month()],
		fmt.Sprintf("%02d", dateTaken.Day()),
		sanitizePathSegment(location),
	)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %v", err)
	}

	unlock := b.dirLocks.Lock(destDir)
	defer unlock()

	filename := filepath.Base(originalPath)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	finalPath := filepath.Join(destDir, filename)
	for counter := 1; ; counter++ {
		f, err := os.OpenFile(finalPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			f.Close()
			return finalPath, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to reserve destination: %v", err)
		}
		finalPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}
}

// pathExists checks whether a file or directory exists at path
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sanitizePathSegment makes a place name safe to use as a single directory
// name: path separators and control characters are replaced, accents folded.
func sanitizePathSegment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return unknownLocation
	}

	name = removeAccents(name)

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':':
			sb.WriteRune('-')
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			sb.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(sb.String())
	if cleaned == "" {
		return unknownLocation
	}
	return cleaned
}

// removeAccents folds common accented characters to their ASCII equivalents
// so place names render the same across filesystems
func removeAccents(name string) string {
	replacements := map[rune]string{
		'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a",
		'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
		'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
		'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o", 'ø': "o",
		'ù': "u", 'ú': "u", 'û': "u", 'ü': "u",
		'ý': "y", 'ÿ': "y", 'ñ': "n", 'ç': "c", 'ß': "ss",
		'À': "A", 'Á': "A", 'Â': "A", 'Ã': "A", 'Ä': "A", 'Å': "A",
		'È': "E", 'É': "E", 'Ê': "E", 'Ë': "E",
		'Ì': "I", 'Í': "I", 'Î': "I", 'Ï': "I",
		'Ò': "O", 'Ó': "O", 'Ô': "O", 'Õ': "O", 'Ö': "O", 'Ø': "O",
		'Ù': "U", 'Ú': "U", 'Û': "U", 'Ü': "U",
		'Ý': "Y", 'Ñ': "N", 'Ç': "C",
	}

	var sb strings.Builder
	for _, r := range name {
		if repl, ok := replacements[r]; ok {
			sb.WriteString(repl)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// dirLockManager hands out one mutex per destination directory so collision
// probing inside a directory happens under a lock
type dirLockManager struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

// newDirLockManager creates a new directory lock manager
func newDirLockManager() *dirLockManager {
	return &dirLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the lock for a directory and returns its release function
func (m *dirLockManager) Lock(dir string) func() {
	m.mu.Lock()
	lock, exists := m.locks[dir]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[dir] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
