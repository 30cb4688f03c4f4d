// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/syncplayer/internal/cache"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/validation"
)

const (
	// probeTimeout bounds one ffprobe invocation. Local files answer in
	// well under a second; anything slower is a stuck process.
	probeTimeout = 10 * time.Second

	// probeCacheSize bounds the probe-result LRU. Playlists are small;
	// 256 filenames covers a busy multi-room server.
	probeCacheSize = 256

	// probeCacheTTL expires cached probe results so replaced files are
	// re-read eventually.
	probeCacheTTL = 10 * time.Minute
)

// ErrInvalidFilename rejects names that must never reach an argument vector.
var ErrInvalidFilename = errors.New("invalid media filename")

// ErrUnknownFile reports a filename with no copy in the media directory.
var ErrUnknownFile = errors.New("no such media file")

// probeSummary is the cached digest of one ffprobe run: everything the
// playlist installer and the tracks API ask about a file.
type probeSummary struct {
	Tracks   models.TrackSet
	UsesHEVC bool
	Duration float64
	hasVideo bool
}

// ffprobe JSON output, reduced to the fields the summary needs.
type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Disposition probeDisposition  `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

type probeDisposition struct {
	Default     int `json:"default"`
	Forced      int `json:"forced"`
	AttachedPic int `json:"attached_pic"`
}

// Prober answers track, codec and duration questions about files in the
// media directory by running ffprobe. Results are LRU-cached per filename,
// and every invocation goes through a circuit breaker so a missing or broken
// binary degrades to empty results instead of a subprocess storm.
//
// It implements the event router's MediaSource.
type Prober struct {
	mediaDir    string
	ffprobePath string
	timeout     time.Duration

	cache   *cache.LRUCache
	breaker *gobreaker.CircuitBreaker[*probeSummary]
}

// NewProber creates a prober over mediaDir using the ffprobe binary on PATH.
func NewProber(mediaDir string) *Prober {
	p := &Prober{
		mediaDir:    mediaDir,
		ffprobePath: "ffprobe",
		timeout:     probeTimeout,
		cache:       cache.NewLRUCache(probeCacheSize, probeCacheTTL),
	}
	p.breaker = newSubprocessBreaker[*probeSummary]("ffprobe")
	return p
}

// WithBinary overrides the ffprobe binary path.
func (p *Prober) WithBinary(path string) *Prober {
	p.ffprobePath = path
	return p
}

// WithTimeout overrides the per-invocation timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// newSubprocessBreaker builds the shared breaker shape for ffprobe/ffmpeg
// invocations: trip after repeated consecutive failures (the missing-binary
// signature), recover through half-open probes, and mirror every transition
// into the circuit breaker metrics.
func newSubprocessBreaker[T any](name string) *gobreaker.CircuitBreaker[T] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2, // allow a couple of trial runs in half-open state
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerStateString(from), breakerStateString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("subprocess circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// recordBreakerResult classifies one breaker-wrapped invocation for metrics.
func recordBreakerResult(name string, err error) {
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
	}
}

// Resolve validates filename and returns its absolute path under the media
// directory. The returned error distinguishes bad names from missing files.
func (p *Prober) Resolve(filename string) (string, error) {
	if !validation.ValidFilename(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	path := filepath.Join(p.mediaDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownFile, filename)
	}
	return path, nil
}

// FileSize reports the size of the server's copy of filename. ok is false
// for invalid names and files the media directory does not hold.
func (p *Prober) FileSize(filename string) (int64, bool) {
	if !validation.ValidFilename(filename) {
		return 0, false
	}
	info, err := os.Stat(filepath.Join(p.mediaDir, filename))
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

// Tracks lists the embedded audio and subtitle streams of a file. Probe
// failures degrade to an empty track set: the file still plays, the viewer
// just gets no track menu.
func (p *Prober) Tracks(ctx context.Context, filename string) models.TrackSet {
	summary, err := p.Summary(ctx, filename)
	if err != nil {
		return models.EmptyTrackSet()
	}
	return summary.Tracks
}

// UsesHEVC reports whether the file's primary video stream is HEVC. False on
// any probe failure; clients then find out the hard way, as before.
func (p *Prober) UsesHEVC(ctx context.Context, filename string) bool {
	summary, err := p.Summary(ctx, filename)
	if err != nil {
		return false
	}
	return summary.UsesHEVC
}

// Duration returns the container duration in seconds, or 0 when unknown.
func (p *Prober) Duration(ctx context.Context, filename string) float64 {
	summary, err := p.Summary(ctx, filename)
	if err != nil {
		return 0
	}
	return summary.Duration
}

// HasVideo reports whether the file carries a real video stream (attached
// cover art does not count). Audio files take the cover-art thumbnail path.
func (p *Prober) HasVideo(ctx context.Context, filename string) bool {
	summary, err := p.Summary(ctx, filename)
	if err != nil {
		return false
	}
	// UsesHEVC implies video; re-probe summaries keep a separate flag.
	return summary.hasVideo
}

// Summary probes a file, serving repeated questions from the LRU cache.
func (p *Prober) Summary(ctx context.Context, filename string) (*probeSummary, error) {
	if cached, ok := p.cache.Get(filename); ok {
		metrics.CacheHits.WithLabelValues("probe").Inc()
		return cached.(*probeSummary), nil
	}
	metrics.CacheMisses.WithLabelValues("probe").Inc()

	path, err := p.Resolve(filename)
	if err != nil {
		return nil, err
	}

	summary, err := p.breaker.Execute(func() (*probeSummary, error) {
		return p.probe(ctx, path)
	})
	recordBreakerResult("ffprobe", err)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("filename", filename).
			Msg("media probe failed")
		return nil, err
	}

	p.cache.Add(filename, summary)
	metrics.CacheSize.WithLabelValues("probe").Set(float64(p.cache.Len()))
	return summary, nil
}

// probe runs one ffprobe invocation and reduces its JSON to a summary.
func (p *Prober) probe(ctx context.Context, path string) (*probeSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	metrics.RecordProbe(time.Since(start), err)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	return summarize(&result), nil
}

// summarize reduces raw probe output to the fields the server cares about.
// Track indices are per-kind ordinals, matching how players address their
// audioTracks/textTracks lists.
func summarize(result *probeResult) *probeSummary {
	summary := &probeSummary{Tracks: models.EmptyTrackSet()}

	if result.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil && dur > 0 {
			summary.Duration = dur
		}
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if stream.Disposition.AttachedPic == 1 {
				continue // cover art, not a playable video stream
			}
			if !summary.hasVideo {
				summary.hasVideo = true
				summary.UsesHEVC = stream.CodecName == "hevc"
			}
		case "audio":
			summary.Tracks.Audio = append(summary.Tracks.Audio, models.Track{
				Index:    len(summary.Tracks.Audio),
				Codec:    stream.CodecName,
				Language: stream.Tags["language"],
				Title:    stream.Tags["title"],
				Default:  stream.Disposition.Default == 1,
			})
		case "subtitle":
			summary.Tracks.Subtitles = append(summary.Tracks.Subtitles, models.Track{
				Index:    len(summary.Tracks.Subtitles),
				Codec:    stream.CodecName,
				Language: stream.Tags["language"],
				Title:    stream.Tags["title"],
				Default:  stream.Disposition.Default == 1,
			})
		}
	}

	return summary
}
