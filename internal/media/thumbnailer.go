// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/syncplayer/internal/cache"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
)

const (
	// thumbnailTimeout bounds one ffmpeg invocation. Seeking a large file
	// on spinning disks can take a few seconds; 30s means stuck, not slow.
	thumbnailTimeout = 30 * time.Second

	// failureTTL is how long a failed generation is remembered before the
	// next request may retry it. Keeps a broken file from re-running
	// ffmpeg on every picker render.
	failureTTL = time.Minute
)

// ErrNoCoverArt reports an audio file without an embedded picture stream.
var ErrNoCoverArt = errors.New("no embedded cover art")

// Thumbnailer generates 720p JPEG previews for the playlist picker with
// ffmpeg and caches them on disk, so each media file costs at most one
// subprocess per server lifetime. Video files get a frame grabbed from a
// random point in the first third of the file; audio files get their
// embedded cover art when they carry one.
type Thumbnailer struct {
	prober     *Prober
	cacheDir   string
	ffmpegPath string
	timeout    time.Duration

	failures *cache.Cache
	breaker  *gobreaker.CircuitBreaker[string]

	mu  sync.Mutex
	rng *rand.Rand
}

// NewThumbnailer creates a thumbnailer writing JPEGs under cacheDir, which
// it creates if needed.
func NewThumbnailer(prober *Prober, cacheDir string) (*Thumbnailer, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating thumbnail cache dir: %w", err)
	}

	t := &Thumbnailer{
		prober:     prober,
		cacheDir:   cacheDir,
		ffmpegPath: "ffmpeg",
		timeout:    thumbnailTimeout,
		failures:   cache.New(failureTTL),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // math/rand is fine for picking a preview frame
	}
	t.breaker = newSubprocessBreaker[string]("ffmpeg")
	return t, nil
}

// WithBinary overrides the ffmpeg binary path.
func (t *Thumbnailer) WithBinary(path string) *Thumbnailer {
	t.ffmpegPath = path
	return t
}

// Dir returns the on-disk cache directory, for the static file server.
func (t *Thumbnailer) Dir() string {
	return t.cacheDir
}

// Thumbnail returns the public URL path of the preview for filename,
// generating it on first request. isAudio is true when the file has no
// video stream; in that case a nil error with an empty path means the file
// also has no cover art to show.
func (t *Thumbnailer) Thumbnail(ctx context.Context, filename string) (publicPath string, isAudio bool, err error) {
	path, err := t.prober.Resolve(filename)
	if err != nil {
		return "", false, err
	}

	// When the probe itself fails the kind is unknown; the video path at
	// least surfaces a real error instead of a silent cover-art miss.
	summary, probeErr := t.prober.Summary(ctx, filename)
	isAudio = probeErr == nil && !summary.hasVideo

	target := filepath.Join(t.cacheDir, cacheName(filename))
	if _, statErr := os.Stat(target); statErr == nil {
		return publicThumbnailPath(filename), isAudio, nil
	}

	if cached, ok := t.failures.Get(filename); ok {
		if failure, isErr := cached.(error); isErr {
			if errors.Is(failure, ErrNoCoverArt) {
				return "", true, nil
			}
			return "", isAudio, failure
		}
	}

	_, err = t.breaker.Execute(func() (string, error) {
		return target, t.generate(ctx, path, target, isAudio, filename)
	})
	recordBreakerResult("ffmpeg", err)
	if err != nil {
		t.failures.Set(filename, err)
		if errors.Is(err, ErrNoCoverArt) {
			return "", true, nil
		}
		logging.Warn().
			Err(err).
			Str("filename", filename).
			Msg("thumbnail generation failed")
		return "", isAudio, err
	}

	return publicThumbnailPath(filename), isAudio, nil
}

// generate runs one ffmpeg invocation, writing to a temp file in the cache
// directory and renaming over the target only on success, so the static
// file server never sees a half-written JPEG.
func (t *Thumbnailer) generate(ctx context.Context, path, target string, isAudio bool, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	temp := target + ".part"
	defer os.Remove(temp)

	var args []string
	if isAudio {
		// Attached pictures ride along as a copyable video stream.
		args = []string{
			"-v", "error",
			"-i", path,
			"-an",
			"-c:v", "copy",
			"-f", "mjpeg",
			"-y", temp,
		}
	} else {
		args = []string{
			"-v", "error",
			"-ss", fmt.Sprintf("%.2f", t.seekPoint(ctx, filename)),
			"-i", path,
			"-frames:v", "1",
			"-vf", "scale=-2:720",
			"-q:v", "4",
			"-f", "mjpeg",
			"-y", temp,
		}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	runErr := cmd.Run()
	metrics.RecordThumbnail(time.Since(start), runErr)
	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("thumbnail timeout after %v", t.timeout)
		}
		if isAudio {
			return ErrNoCoverArt
		}
		return fmt.Errorf("ffmpeg failed: %w", runErr)
	}

	// ffmpeg exits 0 with an empty output for some artless audio files.
	info, err := os.Stat(temp)
	if err != nil || info.Size() == 0 {
		if isAudio {
			return ErrNoCoverArt
		}
		return fmt.Errorf("ffmpeg produced no output for %q", filename)
	}

	return os.Rename(temp, target)
}

// seekPoint picks a frame position inside the first third of the file.
// Unknown durations fall back to a few seconds in, which every real video
// has.
func (t *Thumbnailer) seekPoint(ctx context.Context, filename string) float64 {
	duration := t.prober.Duration(ctx, filename)
	if duration <= 0 {
		return 5.0
	}

	t.mu.Lock()
	fraction := t.rng.Float64()
	t.mu.Unlock()

	return duration / 3.0 * fraction
}

// cacheName maps a media filename to its JPEG name in the cache directory.
// A content-independent hash keeps arbitrary Unicode names out of URLs and
// distinguishes files that differ only in extension.
func cacheName(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:8]) + ".jpg"
}

// publicThumbnailPath is the URL path the static handler serves the cached
// JPEG under.
func publicThumbnailPath(filename string) string {
	return "/thumbnails/" + cacheName(filename)
}
