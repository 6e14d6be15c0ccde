package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"trove/internal/logging"
	"trove/internal/watcher"
)

// StartIndexing launches a recursive scan of root in the background. An empty
// root scans the configured watch root. With rebuild set, the index is cleared
// and every file re-indexed; otherwise files whose size and modification time
// already match their index entry are skipped.
func (d *Daemon) StartIndexing(ctx context.Context, root string, rebuild bool) error {
	if root == "" {
		root = d.cfg.Watch.Root
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan root %q is not a directory", root)
	}

	d.mu.Lock()
	if d.phase != PhaseRunning {
		d.mu.Unlock()
		return ErrNotRunning
	}
	if d.scanCancel != nil {
		d.mu.Unlock()
		return ErrIndexingActive
	}
	scanCtx, cancel := context.WithCancel(context.Background())
	d.scanCancel = cancel
	d.mu.Unlock()

	if err := d.state.SetIndexing(ctx, true); err != nil {
		d.logger.Warn("indexing flag not persisted", logging.Error(err))
	}

	d.logger.Info("indexing started",
		logging.String("root", root),
		logging.Bool("rebuild", rebuild))

	d.scanWG.Add(1)
	go d.runScan(scanCtx, root, rebuild)
	return nil
}

// StopIndexing cancels any in-flight scan and waits for it to wind down.
// Stopping when no scan is running still clears the persisted indexing flag.
func (d *Daemon) StopIndexing(ctx context.Context) error {
	d.mu.Lock()
	if d.phase != PhaseRunning {
		d.mu.Unlock()
		return ErrNotRunning
	}
	cancel := d.scanCancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.scanWG.Wait()

	if err := d.state.SetIndexing(ctx, false); err != nil {
		d.logger.Warn("indexing flag not persisted", logging.Error(err))
	}
	return nil
}

func (d *Daemon) runScan(ctx context.Context, root string, rebuild bool) {
	defer d.scanWG.Done()
	defer func() {
		d.mu.Lock()
		d.scanCancel = nil
		d.mu.Unlock()
		if err := d.state.SetIndexing(context.Background(), false); err != nil {
			d.logger.Warn("indexing flag not persisted", logging.Error(err))
		}
	}()

	indexed, err := d.scan(ctx, root, rebuild)
	switch {
	case errors.Is(err, context.Canceled):
		d.logger.Info("indexing cancelled", logging.Int64("files_indexed", indexed))
	case err != nil:
		d.logger.Error("indexing failed",
			logging.Error(err),
			logging.Int64("files_indexed", indexed))
	default:
		d.logger.Info("indexing complete", logging.Int64("files_indexed", indexed))
	}
}

// scan walks root and records eligible files. Cancellation is honored between
// files so the current write always completes.
func (d *Daemon) scan(ctx context.Context, root string, rebuild bool) (int64, error) {
	if rebuild {
		if err := d.index.Clear(ctx); err != nil {
			return 0, err
		}
	}

	filter := d.cfg.PathFilter()
	maxSize := d.cfg.Index.MaxFileSize

	var indexed int64
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable subtree; skip it rather than abort the scan.
			d.logger.Warn("scan skipping path", logging.String(logging.FieldPath, path), logging.Error(walkErr))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path != root && !filter(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || !filter(path) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if maxSize > 0 && info.Size() > maxSize {
			return nil
		}

		modifiedAt := info.ModTime().UTC()
		if !rebuild {
			existing, err := d.index.Lookup(ctx, path)
			if err != nil {
				return err
			}
			if existing != nil && existing.SizeBytes == info.Size() && existing.ModifiedAt.Equal(modifiedAt) {
				return nil
			}
		}
		if err := d.index.IndexFile(ctx, path, info.Size(), modifiedAt); err != nil {
			return err
		}
		indexed++
		return nil
	})
	return indexed, err
}

// handleNotification applies one coalesced watcher change to the index.
// Created and modified paths are stat'ed before recording; a path that
// disappeared between the event and the stat is treated as a delete.
func (d *Daemon) handleNotification(n watcher.Notification) {
	ctx := context.Background()

	if n.Action == watcher.ActionDeleted {
		d.removeIndexed(ctx, n.Path)
		return
	}

	info, err := os.Stat(n.Path)
	if err != nil {
		d.removeIndexed(ctx, n.Path)
		return
	}
	if info.IsDir() {
		return
	}
	if max := d.cfg.Index.MaxFileSize; max > 0 && info.Size() > max {
		return
	}
	if err := d.index.IndexFile(ctx, n.Path, info.Size(), info.ModTime().UTC()); err != nil {
		d.logger.Warn("change not indexed",
			logging.String(logging.FieldPath, n.Path),
			logging.Error(err))
	}
}

func (d *Daemon) removeIndexed(ctx context.Context, path string) {
	if err := d.index.RemoveFile(ctx, path); err != nil {
		d.logger.Warn("deletion not indexed",
			logging.String(logging.FieldPath, path),
			logging.Error(err))
	}
}
