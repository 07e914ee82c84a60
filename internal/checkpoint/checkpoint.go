package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	progressFile = "progress.json"
	partialFile  = "corpus_partial.txt"
	finalFile    = "corpus.txt"

	timeLayout = "2006-01-02 15:04:05"
)

// progressRecord is the on-disk shape of a checkpoint.
type progressRecord struct {
	CurrentIssue    string   `json:"current_issue"`
	ProcessedIssues []string `json:"processed_issues"`
	LastUpdate      string   `json:"last_update"`
	CorpusBytes     int64    `json:"corpus_bytes"`
}

// State is a checkpoint as the pipeline sees it. The zero value means a
// fresh start. Corpus holds the full accumulator, CommittedBytes the
// prefix covered by the issues in ProcessedIssues; records past that
// boundary belong to the in-flight issue and are regenerated when it is
// reprocessed after a resume.
type State struct {
	CurrentIssue    string
	ProcessedIssues []string
	Corpus          string
	CommittedBytes  int64
}

// Store persists harvest progress under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Save commits the corpus snapshot first and the progress record second,
// each through a temp-file rename. A crash between the two renames
// leaves the older progress record, whose committed byte count trims the
// newer snapshot back on the next Load, so the pair on disk is always
// consistent with the done-list.
func (s *Store) Save(state State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(s.dir, partialFile), []byte(state.Corpus)); err != nil {
		return fmt.Errorf("write corpus snapshot: %w", err)
	}

	committed := state.CommittedBytes
	if committed < 0 {
		committed = 0
	}
	if limit := int64(len(state.Corpus)); committed > limit {
		committed = limit
	}
	record := progressRecord{
		CurrentIssue:    state.CurrentIssue,
		ProcessedIssues: state.ProcessedIssues,
		LastUpdate:      time.Now().Format(timeLayout),
		CorpusBytes:     committed,
	}
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, progressFile), raw); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		"issues_done", len(state.ProcessedIssues),
		"snapshot_bytes", len(state.Corpus),
		"committed_bytes", record.CorpusBytes)
	return nil
}

// Load reads the last checkpoint. Missing files yield a zero state and
// a corrupted progress file logs a warning and yields a zero state. The
// snapshot is trimmed to the committed byte count, which drops records
// of the issue that was in flight when the checkpoint was written; that
// issue is not in the done-list and will be reprocessed in full.
func (s *Store) Load() State {
	var state State

	raw, err := os.ReadFile(filepath.Join(s.dir, progressFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cannot read progress file", "error", err)
		}
		return state
	}

	var record progressRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		s.logger.Warn("progress file corrupted, starting fresh", "error", err)
		return state
	}
	state.CurrentIssue = record.CurrentIssue
	state.ProcessedIssues = record.ProcessedIssues

	corpusRaw, err := os.ReadFile(filepath.Join(s.dir, partialFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cannot read corpus snapshot", "error", err)
		}
		return state
	}
	if record.CorpusBytes < 0 {
		record.CorpusBytes = 0
	}
	if int64(len(corpusRaw)) > record.CorpusBytes {
		s.logger.Debug("trimming snapshot to committed prefix",
			"snapshot_bytes", len(corpusRaw),
			"committed_bytes", record.CorpusBytes)
		corpusRaw = corpusRaw[:record.CorpusBytes]
	}
	state.Corpus = string(corpusRaw)
	state.CommittedBytes = int64(len(state.Corpus))

	return state
}

// WriteFinal writes the finished corpus next to the snapshot and returns
// its path.
func (s *Store) WriteFinal(corpusText string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.dir, finalFile)
	if err := writeAtomic(path, []byte(corpusText)); err != nil {
		return "", fmt.Errorf("write final corpus: %w", err)
	}
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
