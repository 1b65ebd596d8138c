package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Batch converts every WAV file in a watch folder to MP3, then moves the
// source into a backup folder.
type Batch struct {
	WatchFolder  string
	OutputFolder string
	BackupFolder string
	Transcoder   Transcoder
}

// Result counts what a batch run did
type Result struct {
	Converted int
	Failed    int
	Skipped   int
}

// Run processes the watch folder once. A failing file is logged and counted,
// and the remaining files are still processed. The error is non-nil only
// when the folders themselves are unusable.
func (b *Batch) Run(ctx context.Context) (Result, error) {
	var res Result

	for _, dir := range []string{b.WatchFolder, b.OutputFolder, b.BackupFolder} {
		if dir == "" {
			return res, fmt.Errorf("convert folders must all be configured")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return res, fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
	}

	files, err := b.pending()
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		slog.Info("No WAV files to convert", "folder", b.WatchFolder)
		return res, nil
	}
	slog.Info("Converting WAV files", "count", len(files), "folder", b.WatchFolder)

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			res.Skipped += len(files) - res.Converted - res.Failed
			return res, err
		}

		if err := b.convertOne(ctx, src); err != nil {
			slog.Error("Conversion failed", "file", filepath.Base(src), "error", err)
			res.Failed++
			continue
		}
		res.Converted++
	}

	slog.Info("Conversion finished", "converted", res.Converted, "failed", res.Failed)
	return res, nil
}

func (b *Batch) pending() ([]string, error) {
	entries, err := os.ReadDir(b.WatchFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		files = append(files, filepath.Join(b.WatchFolder, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (b *Batch) convertOne(ctx context.Context, src string) error {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	dst := filepath.Join(b.OutputFolder, base+".mp3")

	if err := b.Transcoder.Transcode(ctx, src, dst); err != nil {
		return err
	}

	backup := filepath.Join(b.BackupFolder, filepath.Base(src))
	if err := moveFile(src, backup); err != nil {
		return fmt.Errorf("converted but failed to back up %s: %w", src, err)
	}
	slog.Info("Converted", "file", filepath.Base(src), "output", dst, "backup", backup)
	return nil
}

// moveFile renames, falling back to copy+remove across filesystems
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return errors.Join(err, os.Remove(dst))
	}
	return nil
}
