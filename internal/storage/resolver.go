// Package storage resolves a request's target directory and file, ahead of
// any network I/O, following the destination policy and overwrite/free
// space rules from the storage configuration.
package storage

import (
	"os"
	"path/filepath"

	"github.com/detailyang/go-fallocate"

	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/utils"
)

// Resolve implements the storage resolver algorithm from the design: build
// a candidate directory list, pick the first writable one, place the
// target file, honor the overwrite policy, and validate free space. When
// dryRun is true every check runs but no destructive step (delete,
// truncate, create) is taken.
func Resolve(cfg model.StorageConfig, req model.Request, dryRun bool) (model.StorageResolution, error) {
	log := utils.GetLogger("storage")

	dir, err := pickWritableDirectory(candidateDirectories(cfg.Destinations), dryRun)
	if err != nil {
		return model.StorageResolution{}, model.NewStorageError("no writable directory")
	}

	target := filepath.Join(dir, req.FileName)
	resolution := model.StorageResolution{Directory: dir, File: target}

	if _, statErr := os.Stat(target); statErr == nil {
		if !cfg.OverwriteExisting {
			return model.StorageResolution{}, model.NewStorageError("exists & overwrite disabled")
		}
		resolution.OverwroteExisting = true
		if !dryRun {
			if err := os.Remove(target); err != nil {
				return model.StorageResolution{}, model.NewStorageError("failed to remove existing file")
			}
		}
	}

	if cfg.ValidateFreeSpace {
		available, err := freeSpaceBytes(dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("could not determine free space, skipping check")
		} else if available < cfg.MinFreeSpaceBytes {
			return model.StorageResolution{}, model.NewStorageError("insufficient space")
		}
	}

	if !dryRun {
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return model.StorageResolution{}, model.NewStorageError("failed to create target file")
		}
		defer f.Close()
		log.Debug().Str("file", target).Msg("created empty target file")
	}

	return resolution, nil
}

// Preallocate reserves totalBytes on disk for the resolved file when the
// size is known ahead of the fetch. Preallocation failures are non-fatal:
// a filesystem that refuses fallocate still lets the fetchers write.
func Preallocate(path string, totalBytes int64) {
	if totalBytes <= 0 {
		return
	}
	log := utils.GetLogger("storage")
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	if err := fallocate.Fallocate(f, 0, totalBytes); err != nil {
		log.Debug().Err(err).Str("file", path).Msg("preallocation not supported, continuing without it")
	}
}

func candidateDirectories(destinations []model.Destination) []string {
	var candidates []string
	for _, dest := range destinations {
		switch dest.Kind {
		case model.DestinationCustom:
			candidates = append(candidates, dest.Path)
		case model.DestinationScoped:
			candidates = append(candidates, filepath.Join(appExternalBaseDir(), dest.Path))
		default: // Auto
			candidates = append(candidates,
				externalDownloadsDir(),
				documentsDir(),
				filepath.Join(appInternalBaseDir(), "downloads"),
			)
		}
	}
	return candidates
}

func pickWritableDirectory(candidates []string, dryRun bool) (string, error) {
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if isWritableDir(dir) {
			return dir, nil
		}
		if dryRun {
			// A dry-run preview never creates directories; treat a
			// creatable-but-absent candidate as acceptable.
			if parent := filepath.Dir(dir); isWritableDir(parent) {
				return dir, nil
			}
			continue
		}
		if err := os.MkdirAll(dir, 0755); err == nil {
			return dir, nil
		}
	}
	return "", os.ErrPermission
}

func isWritableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe := filepath.Join(dir, ".dlengine-write-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}
