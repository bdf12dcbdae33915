/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/logging"
)

const (
	filePrefix = "reconciliation_"
	timeLayout = "20060102_150405"

	// LatestFile always holds the most recent record.
	LatestFile = "latest.json"
)

// Sink writes records into a report directory as timestamped JSON (and
// optionally CSV) files plus latest.json.
type Sink struct {
	dir    string
	csv    bool
	logger *logrus.Entry
}

// NewSink creates a sink over dir. The directory is created on first save.
func NewSink(dir string, withCSV bool, logger *logrus.Logger) *Sink {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Sink{dir: dir, csv: withCSV, logger: logger.WithField("component", "report")}
}

// Dir returns the report directory.
func (s *Sink) Dir() string {
	return s.dir
}

// Save persists rec and returns the paths written.
func (s *Sink) Save(rec *Record) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	base := filePrefix + rec.Timestamp.UTC().Format(timeLayout)

	var written []string
	jsonPath := filepath.Join(s.dir, base+".json")
	if err := writeFile(jsonPath, rec.WriteJSON); err != nil {
		return written, err
	}
	written = append(written, jsonPath)

	if s.csv {
		csvPath := filepath.Join(s.dir, base+".csv")
		if err := writeFile(csvPath, rec.WriteCSV); err != nil {
			return written, err
		}
		written = append(written, csvPath)
	}

	latest := filepath.Join(s.dir, LatestFile)
	if err := writeFile(latest, rec.WriteJSON); err != nil {
		return written, err
	}
	written = append(written, latest)

	s.logger.WithFields(logging.Fields{
		"run_id": rec.RunID,
		"files":  len(written),
	}).Info("Report saved")
	return written, nil
}

// writeFile writes through a temporary file and renames it into place so
// readers never see a partial report.
func writeFile(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := encode(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a record file.
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	rec, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Latest loads latest.json.
func (s *Sink) Latest() (*Record, error) {
	return Load(filepath.Join(s.dir, LatestFile))
}

// List returns the timestamped JSON reports, newest first. A missing
// directory is an empty list.
func (s *Sink) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		out = append(out, filepath.Join(s.dir, name))
	}
	// The timestamp layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// LoadRecent returns up to n of the newest reports in chronological order.
// Unreadable files are logged and skipped.
func (s *Sink) LoadRecent(n int) ([]Record, error) {
	paths, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, p := range paths {
		if len(out) == n {
			break
		}
		rec, err := Load(p)
		if err != nil {
			s.logger.WithError(err).WithField("path", p).Warn("Skipping unreadable report")
			continue
		}
		out = append(out, *rec)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
