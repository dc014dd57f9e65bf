package health

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"avstress/internal/audio"
	"avstress/internal/clock"
	"avstress/internal/stimulus"
)

// DataDirCheck verifies that dir exists, or can be created, and accepts a
// new file.
func DataDirCheck(dir string) Check {
	return func(ctx context.Context) CheckResult {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return unhealthy(err, "cannot create %s", dir)
		}
		f, err := os.CreateTemp(dir, ".avstress-probe-*")
		if err != nil {
			return unhealthy(err, "%s is not writable", dir)
		}
		name := f.Name()
		f.Close()
		if err := os.Remove(name); err != nil {
			return unhealthy(err, "cannot remove probe file in %s", dir)
		}
		return healthy("%s is writable", dir)
	}
}

// DiskSpaceCheck fails when the file system holding dir has less than
// minFree bytes available. A missing dir is measured at its nearest
// existing parent.
func DiskSpaceCheck(dir string, minFree uint64) Check {
	return func(ctx context.Context) CheckResult {
		probe := dir
		for {
			if _, err := os.Stat(probe); err == nil || probe == filepath.Dir(probe) {
				break
			}
			probe = filepath.Dir(probe)
		}
		free, err := freeBytes(probe)
		if err != nil {
			return unhealthy(err, "cannot stat file system of %s", dir)
		}
		if free < minFree {
			return unhealthy(nil, "%d MB free, want at least %d MB", free>>20, minFree>>20)
		}
		return healthy("%d MB free", free>>20)
	}
}

// StimuliCheck verifies that every color has a sound file in dir that
// decodes at sampleRate.
func StimuliCheck(dir, ext string, sampleRate int) Check {
	return func(ctx context.Context) CheckResult {
		if _, err := stimulus.LoadCatalog(dir, ext, audio.CheckOpener(sampleRate)); err != nil {
			return unhealthy(err, "stimulus files unusable in %s", dir)
		}
		return healthy("%d sounds at %d Hz in %s", len(stimulus.Labels), sampleRate, dir)
	}
}

// LogAbsentCheck reports an existing trial log, which a session would
// refuse to overwrite unless told otherwise.
func LogAbsentCheck(path string) Check {
	return func(ctx context.Context) CheckResult {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			return healthy("%s is new", filepath.Base(path))
		case err != nil:
			return unhealthy(err, "cannot stat %s", path)
		case info.Size() == 0:
			return healthy("%s is empty", filepath.Base(path))
		default:
			return unhealthy(nil, "%s already holds %d bytes", filepath.Base(path), info.Size())
		}
	}
}

// ClockCheck samples the reaction-time clock and fails when its resolution
// is coarser than maxStep.
func ClockCheck(maxStep time.Duration) Check {
	return func(ctx context.Context) CheckResult {
		const samples = 100
		resolution := time.Duration(1<<63 - 1)
		prev := clock.Now()
		for i := 0; i < samples; i++ {
			next := clock.Now()
			for next == prev {
				if ctx.Err() != nil {
					return unhealthy(ctx.Err(), "clock did not advance")
				}
				next = clock.Now()
			}
			step := next.Sub(prev)
			if step < 0 {
				return unhealthy(nil, "clock went backwards")
			}
			resolution = min(resolution, step)
			prev = next
		}
		if resolution > maxStep {
			return unhealthy(nil, "clock resolution %s exceeds %s", resolution, maxStep)
		}
		return healthy("clock resolution %s", resolution)
	}
}
