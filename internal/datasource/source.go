// Package datasource finds and loads saved analysis responses: a single
// JSON file, standard input, or the freshest valid response in a
// directory.
package datasource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/impactview/pkg/model"
)

// ErrNoSources is returned when a directory holds no valid response.
var ErrNoSources = errors.New("no valid response files")

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeFile is a response JSON file
	SourceTypeFile SourceType = "file"
	// SourceTypeStdin is a response piped on standard input
	SourceTypeStdin SourceType = "stdin"
)

// DataSource represents a saved response
type DataSource struct {
	Type    SourceType `json:"type"`
	Path    string     `json:"path"`
	ModTime time.Time  `json:"mod_time"`
	Size    int64      `json:"size"`
	// Valid indicates whether the source decoded cleanly
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// GraphCount is the number of graphs in the response (set during validation)
	GraphCount int `json:"graph_count"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, mod=%s, graphs=%d, %s)",
		s.Path, s.Type, s.ModTime.Format(time.RFC3339), s.GraphCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages when set
	Logger func(msg string)
}

// DiscoverSources lists the *.json responses in dir, freshest first.
func DiscoverSources(dir string, opts DiscoveryOptions) ([]DataSource, error) {
	logf := func(format string, args ...interface{}) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var sources []DataSource
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		s := DataSource{Type: SourceTypeFile, Path: path, ModTime: info.ModTime(), Size: info.Size()}
		if err := ValidateSource(&s); err != nil {
			logf("validation failed for %s: %v", path, err)
			if !opts.IncludeInvalid {
				continue
			}
		}
		sources = append(sources, s)
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Path < sources[j].Path
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	logf("discovered %d response(s) in %s", len(sources), dir)
	return sources, nil
}

// ValidateSource decodes the file and records the outcome on s.
func ValidateSource(s *DataSource) error {
	resp, err := readFile(s.Path)
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.GraphCount = len(resp.Graphs)
	return nil
}

// SelectBestSource returns the freshest valid source.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, ErrNoSources
}

func readFile(path string) (model.PromptResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.PromptResponse{}, err
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (model.PromptResponse, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.PromptResponse{}, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return model.PromptResponse{}, fmt.Errorf("empty response")
	}
	return model.DecodePromptResponse(data)
}
