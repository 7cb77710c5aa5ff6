package scan

import (
	"context"
	"os"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type readOutcome int

const (
	readOK readOutcome = iota
	readBinary
	readUnreadable
	readOversized
)

type readResult struct {
	outcome readOutcome
	content []byte
}

// readAll reads candidates on a bounded pool. Results land in per-index
// slots, so entries keep the candidates' order whatever the completion order.
func (s *Scanner) readAll(ctx context.Context, candidates []candidate, stats *Stats) ([]FileEntry, error) {
	results := make([]readResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.readOne(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(candidates))
	for i, r := range results {
		rel := candidates[i].rel
		switch r.outcome {
		case readBinary:
			stats.Binary++
			stats.BinaryPaths = append(stats.BinaryPaths, rel)
		case readUnreadable:
			stats.Unreadable++
		case readOversized:
			stats.Oversized++
		default:
			stats.Files++
			stats.Bytes += int64(len(r.content))
			entries = append(entries, FileEntry{Path: rel, Content: string(r.content)})
		}
	}
	slices.Sort(stats.BinaryPaths)
	return entries, nil
}

// readOne reads a single file and classifies it.
func (s *Scanner) readOne(c candidate) readResult {
	if s.opts.MaxFileSize > 0 {
		info, err := os.Stat(c.abs)
		if err != nil {
			s.logger.Warn("Failed to stat file", zap.String("file", c.rel), zap.Error(err))
			return readResult{outcome: readUnreadable}
		}
		if info.Size() > s.opts.MaxFileSize {
			s.logger.Debug("Skipping file due to size limit",
				zap.String("file", c.rel),
				zap.Int64("sizeBytes", info.Size()),
				zap.Int64("maxFileSize", s.opts.MaxFileSize))
			return readResult{outcome: readOversized}
		}
	}

	data, err := os.ReadFile(c.abs)
	if err != nil {
		s.logger.Warn("Failed to read file", zap.String("file", c.rel), zap.Error(err))
		return readResult{outcome: readUnreadable}
	}
	if isBinary(data) {
		s.logger.Debug("Detected binary file", zap.String("file", c.rel))
		return readResult{outcome: readBinary}
	}
	return readResult{outcome: readOK, content: data}
}
