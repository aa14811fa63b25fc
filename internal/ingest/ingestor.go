// Package ingest loads historical tickets from tabular exports into the
// in-memory corpus and tracks which source files have already been
// processed, so repeated ingestion calls are idempotent.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rakhimov-me/smax-ai/internal/domain"
	"github.com/rakhimov-me/smax-ai/internal/logger"
)

// ErrNoSources is returned when the source directory holds no tabular files.
var ErrNoSources = errors.New("no source files found")

// ErrNoRecords is returned when new files were processed but produced no
// valid records.
var ErrNoRecords = errors.New("no records loaded from new sources")

// Table is the raw content of one source file.
type Table struct {
	Columns []string
	Rows    []domain.RawRow
}

// SourceReader enumerates and reads tabular source files. The Excel
// implementation lives in this package; tests substitute fakes.
type SourceReader interface {
	// ListSources returns the paths of all tabular files in dir.
	ListSources(dir string) ([]string, error)
	// Read loads one file into a header-keyed table.
	Read(path string) (Table, error)
}

// Ingestor owns the corpus: the ordered record sequence (newest batch
// first), the derived group/expert/label sets and the ingested-sources
// ledger that makes re-ingestion a no-op.
type Ingestor struct {
	reader SourceReader
	log    logger.Logger

	mu      sync.RWMutex
	records []domain.TicketRecord
	groups  map[string]bool
	experts map[string]bool
	labels  map[string]bool
	sources map[string]domain.SourceFileInfo
}

// New creates an empty ingestor.
func New(reader SourceReader, log logger.Logger) *Ingestor {
	i := &Ingestor{reader: reader, log: log}
	i.reset()
	return i
}

func (i *Ingestor) reset() {
	i.records = nil
	i.groups = make(map[string]bool)
	i.experts = make(map[string]bool)
	i.labels = make(map[string]bool)
	i.sources = make(map[string]domain.SourceFileInfo)
}

// Ingest processes every not-yet-ingested file in dir and prepends the
// accepted records to the corpus as one block. Already-ingested files are
// untouched, so calling Ingest twice in a row is a successful no-op.
// Returns the number of records added.
func (i *Ingestor) Ingest(dir string) (int, error) {
	files, err := i.reader.ListSources(dir)
	if err != nil {
		return 0, fmt.Errorf("list sources in %s: %w", dir, err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoSources, dir)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	newFiles := make([]string, 0, len(files))
	for _, f := range files {
		if _, done := i.sources[f]; !done {
			newFiles = append(newFiles, f)
		}
	}
	if len(newFiles) == 0 {
		i.log.Info("all source files already ingested", logger.Int("files", len(files)))
		return 0, nil
	}

	var batch []domain.TicketRecord
	for _, path := range newFiles {
		batch = append(batch, i.loadFile(path)...)
	}

	if len(batch) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoRecords, dir)
	}

	// Newest batch goes to the front, preserving its internal order.
	i.records = append(batch, i.records...)
	for _, r := range batch {
		i.groups[r.Group] = true
		i.experts[r.Expert] = true
		i.labels[r.Label] = true
	}

	i.log.Info("ingestion complete",
		logger.Int("new_files", len(newFiles)),
		logger.Int("new_records", len(batch)),
		logger.Int("total_records", len(i.records)),
	)
	return len(batch), nil
}

// loadFile reads and validates one source file. The file is marked ingested
// even when its schema is wrong, to avoid endless retry loops; read errors
// leave it unmarked so a later call can retry.
func (i *Ingestor) loadFile(path string) []domain.TicketRecord {
	table, err := i.reader.Read(path)
	if err != nil {
		i.log.Error("failed to read source file", logger.String("file", path), logger.Error(err))
		return nil
	}

	if missing := missingColumns(table.Columns); len(missing) > 0 {
		i.log.Warn("source file skipped: required columns missing",
			logger.String("file", path),
			logger.Strings("missing", missing),
			logger.Strings("found", table.Columns),
		)
		i.sources[path] = domain.SourceFileInfo{LoadedAt: time.Now()}
		return nil
	}

	var recs []domain.TicketRecord
	for _, row := range table.Rows {
		if isEmptyRow(row) {
			continue
		}
		rec, err := domain.NewTicketRecord(row, sourceName(path))
		if err != nil {
			i.log.Debug("row dropped", logger.String("file", path), logger.Error(err))
			continue
		}
		recs = append(recs, rec)
	}

	i.sources[path] = domain.SourceFileInfo{Records: len(recs), LoadedAt: time.Now()}
	i.log.Info("source file loaded",
		logger.String("file", path),
		logger.Int("rows", len(table.Rows)),
		logger.Int("records", len(recs)),
	)
	return recs
}

// ForceReloadOne drops one file from the ingested ledger so the next Ingest
// reprocesses it. Existing records stay; reloading duplicates them. That
// matches the historical behavior and is deliberately not deduplicated.
func (i *Ingestor) ForceReloadOne(path string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.sources[path]; !ok {
		return false
	}
	delete(i.sources, path)
	return true
}

// ForceReloadAll drops every file under dir from the ingested ledger.
func (i *Ingestor) ForceReloadAll(dir string) error {
	files, err := i.reader.ListSources(dir)
	if err != nil {
		return fmt.Errorf("list sources in %s: %w", dir, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, f := range files {
		delete(i.sources, f)
	}
	i.log.Info("sources marked for reload", logger.Int("files", len(files)))
	return nil
}

// Restore replaces the corpus and the ingested ledger with previously
// persisted state. Files in the restored ledger are skipped by later Ingest
// calls, so a restart does not reload what the archive already holds.
func (i *Ingestor) Restore(records []domain.TicketRecord, sources map[string]domain.SourceFileInfo) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reset()
	i.records = append(i.records, records...)
	for _, r := range records {
		i.groups[r.Group] = true
		i.experts[r.Expert] = true
		i.labels[r.Label] = true
	}
	for k, v := range sources {
		i.sources[k] = v
	}
	i.log.Info("corpus restored",
		logger.Int("records", len(records)),
		logger.Int("files", len(sources)),
	)
}

// Clear empties the corpus, the derived sets and the ingested ledger.
func (i *Ingestor) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reset()
}

// Records returns a copy of the corpus, newest batch first.
func (i *Ingestor) Records() []domain.TicketRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]domain.TicketRecord, len(i.records))
	copy(out, i.records)
	return out
}

// Len returns the corpus size.
func (i *Ingestor) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// Groups returns the unique group names, sorted for Russian text.
func (i *Ingestor) Groups() []string { return i.sortedSet(func() map[string]bool { return i.groups }) }

// Experts returns the unique expert names, sorted for Russian text.
func (i *Ingestor) Experts() []string { return i.sortedSet(func() map[string]bool { return i.experts }) }

// Labels returns the unique labels, sorted for Russian text.
func (i *Ingestor) Labels() []string { return i.sortedSet(func() map[string]bool { return i.labels }) }

func (i *Ingestor) sortedSet(get func() map[string]bool) []string {
	i.mu.RLock()
	set := get()
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	i.mu.RUnlock()

	collate.New(language.Russian).SortStrings(out)
	return out
}

// Stats summarizes the corpus and the ingested-file ledger.
func (i *Ingestor) Stats() domain.Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()
	info := make(map[string]domain.SourceFileInfo, len(i.sources))
	for k, v := range i.sources {
		info[k] = v
	}
	return domain.Stats{
		TotalRecords:      len(i.records),
		GroupsCount:       len(i.groups),
		ExpertsCount:      len(i.experts),
		LabelsCount:       len(i.labels),
		IngestedFilesInfo: info,
	}
}

func missingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[strings.TrimSpace(c)] = true
	}
	var missing []string
	for _, req := range domain.RequiredColumns() {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

func isEmptyRow(row domain.RawRow) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sourceName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
