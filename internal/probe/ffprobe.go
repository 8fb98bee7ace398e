package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// VideoInfo is the container-level metadata used for matching videos.
type VideoInfo struct {
	Duration     float64
	Size         int64
	CreationTime time.Time
}

// VideoProber extracts container metadata without decoding frames.
type VideoProber interface {
	ProbeVideo(ctx context.Context, path string) (VideoInfo, error)
}

// FFprobe probes videos by running ffprobe and decoding its JSON output.
type FFprobe struct {
	Binary string
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Size     string            `json:"size"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Duration  string            `json:"duration"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
}

// ProbeVideo executes ffprobe against path.
func (p FFprobe) ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return VideoInfo{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseFFprobe(output)
}

func parseFFprobe(output []byte) (VideoInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := VideoInfo{Duration: parseFloat(out.Format.Duration)}
	if size := parseFloat(out.Format.Size); size > 0 {
		info.Size = int64(size)
	}
	if info.Duration <= 0 {
		for _, s := range out.Streams {
			if strings.EqualFold(s.CodecType, "video") {
				if d := parseFloat(s.Duration); d > 0 {
					info.Duration = d
					break
				}
			}
		}
	}
	if info.Duration <= 0 {
		return VideoInfo{}, errors.New("ffprobe: container reports no duration")
	}

	candidates := []string{
		out.Format.Tags["com.apple.quicktime.creationdate"],
		out.Format.Tags["creation_time"],
	}
	for _, s := range out.Streams {
		candidates = append(candidates, s.Tags["creation_time"])
	}
	for _, value := range candidates {
		if ts, err := parseContainerTime(value); err == nil {
			info.CreationTime = ts
			break
		}
	}
	return info, nil
}

var containerLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
}

// parseContainerTime parses a QuickTime/MP4 creation time. Values without a
// zone are UTC, as the container format defines them.
func parseContainerTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrNoCaptureTime
	}
	for _, layout := range containerLayouts {
		ts, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		// 1904-01-01 is the QuickTime epoch, written when the clock was unset.
		if ts.Year() <= 1904 || ts.Unix() == 0 {
			return time.Time{}, fmt.Errorf("implausible creation time %q", value)
		}
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized creation time %q", value)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}
