package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PlaylistName is the HLS entry point inside an output directory.
const PlaylistName = "index.m3u8"

// Options configures one ffmpeg invocation.
type Options struct {
	FFmpegPath     string
	SegmentSeconds int
	Quality        int
}

// qualityToCRF maps the 0-100 quality scale onto x264's CRF scale, where
// lower is better. 0 -> 51, 100 -> 18.
func qualityToCRF(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return 51 - (quality*33+50)/100
}

func (o Options) ffmpeg() string {
	if o.FFmpegPath == "" {
		return "ffmpeg"
	}
	return o.FFmpegPath
}

func (o Options) segmentSeconds() int {
	if o.SegmentSeconds <= 0 {
		return 4
	}
	return o.SegmentSeconds
}

func run(ctx context.Context, dir string, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
	}
	return nil
}

// HLSArgs builds the segmented-output argument list for a full re-encode.
func HLSArgs(inputPath string, opts Options) []string {
	return []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", strconv.Itoa(qualityToCRF(opts.Quality)),
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "hls",
		"-hls_time", strconv.Itoa(opts.segmentSeconds()),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", "seg_%05d.ts",
		PlaylistName,
	}
}

// HLSCopyArgs builds the argument list for a stream copy with no re-encode.
func HLSCopyArgs(inputPath string, opts Options) []string {
	return []string{
		"-i", inputPath,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", strconv.Itoa(opts.segmentSeconds()),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", "seg_%05d.ts",
		PlaylistName,
	}
}

// HLS transcodes the input into adaptive-streaming segments under outDir.
func HLS(ctx context.Context, inputPath, outDir string, opts Options) error {
	return run(ctx, outDir, opts.ffmpeg(), HLSArgs(inputPath, opts))
}

// HLSCopy segments the input without re-encoding. Fails on containers the
// HLS muxer cannot take as-is; callers fall back to a full transcode.
func HLSCopy(ctx context.Context, inputPath, outDir string, opts Options) error {
	return run(ctx, outDir, opts.ffmpeg(), HLSCopyArgs(inputPath, opts))
}

// Thumbnail grabs a single frame as a JPEG.
func Thumbnail(ctx context.Context, inputPath, outPath string, opts Options) error {
	return run(ctx, "", opts.ffmpeg(), []string{
		"-i", inputPath,
		"-ss", "00:00:01",
		"-frames:v", "1",
		"-q:v", "4",
		"-y",
		outPath,
	})
}
