// Package files validates local send arguments (files and directories)
// and turns them into the flat list of sendable entries the transfer
// engine queues. Directory arguments are walked into per-file entries
// carrying their relative path.
package files

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalFile describes one file ready to be queued for sending.
type LocalFile struct {
	// AbsPath is the absolute path to read bytes from.
	AbsPath string
	// Name is the filename component, without any directory.
	Name string
	// Size is the file size in bytes. Zero is valid: zero-byte files are
	// a supported boundary case, not an error.
	Size int64
	// Type is the MIME type, "application/octet-stream" if undetected.
	Type string
	// RelPath is set when this file came from walking a directory
	// argument: the slash-separated path relative to that directory's
	// root, becoming FileInfo.path on the wire. Empty for plain files.
	RelPath string
}

// Validate resolves each argument to one or more LocalFiles. A directory
// argument is walked recursively; a file argument is validated directly.
// An unreadable file deep in a directory fails the whole call; validation
// is all-or-nothing.
func Validate(paths []string) ([]LocalFile, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files specified")
	}

	var result []LocalFile
	var errs []string

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: failed to get absolute path: %v", path, err))
			continue
		}

		stat, err := os.Stat(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("%s: file does not exist", path))
			} else {
				errs = append(errs, fmt.Sprintf("%s: failed to stat file: %v", path, err))
			}
			continue
		}

		if stat.IsDir() {
			entries, err := walkDirectory(absPath)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			result = append(result, entries...)
			continue
		}

		lf, err := validateSingleFile(absPath, stat)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		result = append(result, lf)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("file validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return result, nil
}

func validateSingleFile(absPath string, stat os.FileInfo) (LocalFile, error) {
	file, err := os.Open(absPath)
	if err != nil {
		return LocalFile{}, fmt.Errorf("%s: cannot open file (check permissions): %w", absPath, err)
	}
	file.Close()

	return LocalFile{
		AbsPath: absPath,
		Name:    filepath.Base(absPath),
		Size:    stat.Size(),
		Type:    detectMIME(absPath),
	}, nil
}

func walkDirectory(root string) ([]LocalFile, error) {
	var entries []LocalFile
	base := filepath.Base(root)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
		}
		file.Close()

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath := filepath.ToSlash(filepath.Join(base, rel))

		entries = append(entries, LocalFile{
			AbsPath: path,
			Name:    info.Name(),
			Size:    info.Size(),
			Type:    detectMIME(path),
			RelPath: relPath,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("directory contains no files")
	}
	return entries, nil
}

func detectMIME(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// TotalSize sums the size of every file in the batch.
func TotalSize(files []LocalFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
