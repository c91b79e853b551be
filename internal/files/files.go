// Package files keeps uploaded sources and translated outputs under one base
// directory.
package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrOutsideBase = errors.New("path is outside the data directory")

type Store struct {
	base string
}

// New creates the uploads and outputs directories under base.
func New(base string) (*Store, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	for _, dir := range []string{"uploads", "outputs"} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &Store{base: abs}, nil
}

func (s *Store) Base() string {
	return s.base
}

// SaveUpload stores an uploaded source file for jobID and returns its path.
func (s *Store) SaveUpload(jobID, fileName string, r io.Reader) (string, error) {
	name, err := CleanName(fileName)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.base, "uploads", jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, r); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}

// OutputDir is where the outputs of a job, or of all children of a
// multi-language job, are written.
func (s *Store) OutputDir(groupID string) string {
	return filepath.Join(s.base, "outputs", groupID)
}

// WriteOutput writes a translated file into the group's output directory.
// The file appears complete or not at all.
func (s *Store) WriteOutput(groupID, name string, data []byte) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}
	dir := s.OutputDir(groupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	return path, nil
}

// Read returns the contents of a file under the base directory.
func (s *Store) Read(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(s.base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: %w", path, ErrOutsideBase)
	}
	return os.ReadFile(abs)
}

// OutputName derives the translated file name: report.docx in DE becomes
// report_DE.docx.
func OutputName(sourceFileName, targetLang string) string {
	base := filepath.Base(sourceFileName)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s%s", stem, strings.ToUpper(targetLang), ext)
}

// CleanName strips directories from a client-supplied file name.
func CleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return name, nil
}

func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
