// Package source collects log lines from a file or a directory of log files.
package source

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/ingest"
)

const (
	gzipExt = ".gz"
	zstdExt = ".zst"
)

type Config struct {
	// Path is a log file or a directory searched recursively
	Path string `json:"path" yaml:"path"`
	// Suffix selects files inside a directory; compressed variants are matched too
	Suffix string `json:"suffix" yaml:"suffix" default:".log"`
}

// ReadLines returns the lines of every selected file, files in lexical path order.
// Lines are numbered across the corpus and keep their file and in-file position.
func ReadLines(cfg *Config) ([]ingest.Line, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("source path is not set")
	}

	paths, err := Files(cfg)
	if err != nil {
		return nil, err
	}

	var lines []ingest.Line
	for _, path := range paths {
		fileLines, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for i, text := range fileLines {
			lines = append(lines, ingest.Line{
				Number:   len(lines) + 1,
				Text:     text,
				File:     path,
				FileLine: i + 1,
			})
		}
	}
	return lines, nil
}

// Files resolves cfg.Path to the list of files ReadLines reads
func Files(cfg *Config) ([]string, error) {
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return []string{cfg.Path}, nil
	}

	suffix := cfg.Suffix
	if suffix == "" {
		suffix = ".log"
	}

	var paths []string
	err = filepath.WalkDir(cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, suffix) || strings.HasSuffix(name, suffix+gzipExt) || strings.HasSuffix(name, suffix+zstdExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, gzipExt):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, zstdExt):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	lines, err := ParseLines(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ParseLines splits r into lines. A trailing newline does not start an empty line
// and a "\r" before the newline is dropped.
func ParseLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}
