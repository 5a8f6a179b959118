// Package ingest runs the incremental ingestion pipeline: walk the
// library, skip unchanged files by fingerprint, extract features in
// batches and commit each batch atomically to the dual store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/metrics"
	"github.com/media-curator/media-curator/internal/scanner"
	"github.com/media-curator/media-curator/internal/store"
)

// Snapshot is one progress update emitted during a scan.
type Snapshot struct {
	RunID          string        `json:"run_id"`
	Current        int           `json:"current"`
	Total          int           `json:"total"`
	NewlyProcessed int           `json:"newly_processed"`
	Failed         int           `json:"failed"`
	Filename       string        `json:"filename,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
	ETA            time.Duration `json:"eta"`
	ItemErr        string        `json:"item_error,omitempty"`
	Err            string        `json:"error,omitempty"`
	Done           bool          `json:"done"`
}

// Pipeline ties the scanner, the feature provider and the dual store
// together.
type Pipeline struct {
	store    *store.DualStore
	provider features.Provider
	scanner  *scanner.Scanner
	guard    *Guard
	cfg      config.IngestConfig
}

func NewPipeline(ds *store.DualStore, provider features.Provider, sc *scanner.Scanner, guard *Guard, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{
		store:    ds,
		provider: provider,
		scanner:  sc,
		guard:    guard,
		cfg:      cfg,
	}
}

// Guard returns the scan guard, for status polling.
func (p *Pipeline) Guard() *Guard {
	return p.guard
}

// IngestFile processes a single file immediately, outside any batch
// scan. The skip rule still applies: a known path with an unchanged
// fingerprint is not reprocessed. The returned bool reports whether the
// file was skipped.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*store.CommitResult, bool, error) {
	candidate, err := p.scanner.Stat(path)
	if err != nil {
		return nil, false, err
	}

	fingerprint := scanner.Fingerprint(path)
	existing, err := p.store.Meta.GetMediaByPath(ctx, path)
	if err == nil && existing.Fingerprint == fingerprint && existing.Processed {
		return nil, true, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	commit := p.extract(ctx, candidate, fingerprint)
	results, err := p.store.CommitBatch(ctx, []store.Commit{commit})
	if err != nil {
		return nil, false, err
	}
	if commit.Record.ProcessError != "" {
		return &results[0], false, fmt.Errorf("failed to process %s: %s", path, commit.Record.ProcessError)
	}
	return &results[0], false, nil
}

// Scan walks root and ingests everything new or changed. It returns a
// snapshot channel immediately and runs the work in the background; the
// channel closes when the scan ends. Only one scan runs at a time.
func (p *Pipeline) Scan(ctx context.Context, root string) (<-chan Snapshot, error) {
	runID, err := p.guard.Begin()
	if err != nil {
		return nil, err
	}

	metrics.ScanRuns.Inc()
	updates := make(chan Snapshot, 64)
	go func() {
		// release the guard before the channel closes, so a caller that
		// drained the channel can start the next scan immediately
		defer close(updates)
		defer p.guard.Finish()
		p.run(ctx, root, runID, updates)
	}()

	return updates, nil
}

// emit stores the snapshot in the guard and forwards it to the channel
// without blocking; a slow consumer only loses intermediate updates.
func (p *Pipeline) emit(updates chan<- Snapshot, s Snapshot) {
	p.guard.Update(s)
	select {
	case updates <- s:
	default:
	}
}

// finish publishes the terminal snapshot. Unlike emit the send blocks:
// the channel closes right after run returns, and the completion marker
// must not be dropped when the buffer is full.
func (p *Pipeline) finish(updates chan<- Snapshot, s Snapshot) {
	p.guard.Update(s)
	updates <- s
}

func (p *Pipeline) run(ctx context.Context, root, runID string, updates chan<- Snapshot) {
	started := time.Now()

	candidates, err := p.scanner.Collect(root)
	if err != nil {
		p.finish(updates, Snapshot{RunID: runID, Err: err.Error(), Done: true})
		return
	}

	known, err := p.store.Meta.Fingerprints(ctx)
	if err != nil {
		p.finish(updates, Snapshot{RunID: runID, Err: err.Error(), Done: true})
		return
	}

	progress := Snapshot{RunID: runID, Total: len(candidates)}
	batch := make([]scanner.Candidate, 0, p.cfg.BatchSize)
	fingerprints := make(map[string]string, p.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		commits := p.extractBatch(ctx, batch, fingerprints, started, &progress, updates)
		batch = batch[:0]
		// a discarded batch contributes no records; prior batches stand
		if len(commits) == 0 {
			return nil
		}
		if _, err := p.store.CommitBatch(ctx, commits); err != nil {
			return err
		}
		return nil
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			p.finish(updates, Snapshot{RunID: runID, Err: ctx.Err().Error(), Done: true})
			return
		}

		fingerprint := scanner.Fingerprint(c.Path)
		if known[c.Path] == fingerprint {
			progress.Current++
			progress.Filename = c.Path
			p.tick(&progress, started)
			p.emit(updates, progress)
			metrics.MediaProcessed.WithLabelValues("skipped").Inc()
			continue
		}

		fingerprints[c.Path] = fingerprint
		batch = append(batch, c)
		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				p.finish(updates, Snapshot{RunID: runID, Err: err.Error(), Done: true})
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.finish(updates, Snapshot{RunID: runID, Err: err.Error(), Done: true})
		return
	}

	metrics.ScanDuration.Observe(time.Since(started).Seconds())
	progress.Filename = ""
	progress.ItemErr = ""
	progress.Elapsed = time.Since(started)
	progress.ETA = 0
	progress.Done = true
	p.finish(updates, progress)
}

// tick recomputes the timing fields from the current position.
func (p *Pipeline) tick(progress *Snapshot, started time.Time) {
	progress.Elapsed = time.Since(started)
	progress.ETA = 0
	if progress.Current > 0 && progress.Current < progress.Total {
		perItem := progress.Elapsed / time.Duration(progress.Current)
		progress.ETA = perItem * time.Duration(progress.Total-progress.Current)
	}
}

type loadResult struct {
	index int
	data  []byte
	err   error
}

// loadBatch reads the buffer's files through the bounded worker pool.
// The pool parallelizes disk reads only; analysis happens in one
// provider call afterwards.
func (p *Pipeline) loadBatch(batch []scanner.Candidate) []loadResult {
	resultsChan := make(chan loadResult, len(batch))
	semaphore := make(chan struct{}, p.cfg.LoadWorkers)
	var wg sync.WaitGroup

	for i := range batch {
		wg.Add(1)
		go func(idx int, c scanner.Candidate) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			data, err := os.ReadFile(c.Path)
			resultsChan <- loadResult{index: idx, data: data, err: err}
		}(i, batch[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	loads := make([]loadResult, len(batch))
	for r := range resultsChan {
		loads[r.index] = r
	}
	return loads
}

// extractBatch turns one buffer into commits: parallel file loads, then
// a single analyzer call over everything readable. Unreadable files
// become failure commits; an analyzer failure discards the whole batch
// and returns nil.
func (p *Pipeline) extractBatch(ctx context.Context, batch []scanner.Candidate, fingerprints map[string]string, started time.Time, progress *Snapshot, updates chan<- Snapshot) []store.Commit {
	loads := p.loadBatch(batch)

	var payloads []features.MediaPayload
	var payloadIdx []int
	for i, r := range loads {
		if r.err == nil {
			payloads = append(payloads, features.MediaPayload{Data: r.data, Type: batch[i].Type})
			payloadIdx = append(payloadIdx, i)
		}
	}

	analyses := make(map[int]*features.Analysis, len(payloads))
	if len(payloads) > 0 {
		results, err := p.provider.AnalyzeBatch(ctx, payloads)
		if err != nil {
			for _, c := range batch {
				progress.Current++
				progress.Failed++
				progress.Filename = c.Path
				progress.ItemErr = fmt.Sprintf("batch analysis failed: %v", err)
				p.tick(progress, started)
				p.emit(updates, *progress)
				metrics.MediaProcessed.WithLabelValues("error").Inc()
			}
			progress.ItemErr = ""
			return nil
		}
		for j, a := range results {
			analyses[payloadIdx[j]] = a
		}
	}

	commits := make([]store.Commit, len(batch))
	for i, c := range batch {
		record := baseRecord(c, fingerprints[c.Path])
		if loads[i].err != nil {
			record.ProcessError = fmt.Sprintf("failed to read file: %v", loads[i].err)
			commits[i] = store.Commit{Record: record}
		} else {
			commits[i] = commitFromAnalysis(record, analyses[i])
		}

		progress.Current++
		progress.Filename = c.Path
		progress.ItemErr = commits[i].Record.ProcessError
		if commits[i].Record.ProcessError != "" {
			progress.Failed++
			metrics.MediaProcessed.WithLabelValues("error").Inc()
		} else {
			progress.NewlyProcessed++
			metrics.MediaProcessed.WithLabelValues("ok").Inc()
		}
		p.tick(progress, started)
		p.emit(updates, *progress)
	}
	progress.ItemErr = ""

	return commits
}

// extract reads one file and turns the analyzer output into a commit.
// Any failure yields a failure record so the item stays visible and the
// skip rule keeps retrying it on later scans only after the file changes.
func (p *Pipeline) extract(ctx context.Context, c scanner.Candidate, fingerprint string) store.Commit {
	record := baseRecord(c, fingerprint)

	data, err := os.ReadFile(c.Path)
	if err != nil {
		record.ProcessError = fmt.Sprintf("failed to read file: %v", err)
		return store.Commit{Record: record}
	}

	analysis, err := p.provider.AnalyzeMedia(ctx, data, c.Type)
	if err != nil {
		record.ProcessError = fmt.Sprintf("analysis failed: %v", err)
		return store.Commit{Record: record}
	}

	return commitFromAnalysis(record, analysis)
}

func baseRecord(c scanner.Candidate, fingerprint string) store.MediaRecord {
	return store.MediaRecord{
		Path:        c.Path,
		Fingerprint: fingerprint,
		Size:        c.Size,
		Type:        c.Type,
		CreatedAt:   c.ModifiedAt,
		ModifiedAt:  c.ModifiedAt,
	}
}

// commitFromAnalysis fills a base record with everything the analyzer
// extracted.
func commitFromAnalysis(record store.MediaRecord, analysis *features.Analysis) store.Commit {
	record.Processed = true
	record.Width = analysis.Width
	record.Height = analysis.Height
	record.Duration = analysis.Duration
	record.FPS = analysis.FPS
	record.StyleLabel = analysis.StyleLabel
	record.Tags = analysis.Tags
	record.CharacterTags = analysis.CharacterTags
	record.SeriesTags = analysis.SeriesTags
	record.Transcript = analysis.Transcript
	record.FrameNotes = analysis.FrameNotes

	faces := make([]store.FaceObservation, len(analysis.Faces))
	for i, f := range analysis.Faces {
		obs := store.FaceObservation{
			FaceIndex: f.FaceIndex,
			Cluster:   store.ClusterUnassigned,
			Timestamp: f.Timestamp,
			DetScore:  f.DetScore,
			Embedding: f.Embedding,
		}
		for j := 0; j < len(f.BBox) && j < 4; j++ {
			obs.BBox[j] = f.BBox[j]
		}
		faces[i] = obs
	}

	return store.Commit{
		Record:    record,
		Embedding: analysis.Embedding,
		Faces:     faces,
	}
}
