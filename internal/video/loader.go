package video

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// NoisePrefix marks a synthetic video source, e.g. "noise:500x300x255@7".
const NoisePrefix = "noise:"

// Loader turns a source identifier into a video.
type Loader interface {
	Load(ctx context.Context, source string) (*Video, error)
}

// Noise builds a video of depth random frames. The same seed always
// produces the same pixels.
func Noise(width, height, depth int, seed int64) (*Video, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid noise shape %dx%dx%d", width, height, depth)
	}
	rng := rand.New(rand.NewSource(seed))
	frames := make([]Frame, depth)
	for i := range frames {
		pix := make([]uint8, width*height)
		for j := range pix {
			pix[j] = uint8(rng.Intn(int(DefaultMaxLevel) + 1))
		}
		frames[i] = Frame{width: width, height: height, maxLevel: DefaultMaxLevel, pix: pix}
	}
	return &Video{frames: frames}, nil
}

// NoiseShape is a parsed "noise:" source.
type NoiseShape struct {
	Width  int
	Height int
	Depth  int
	Seed   int64
}

// ParseNoise parses "noise:WxHxD" with an optional "@seed" suffix.
func ParseNoise(source string) (NoiseShape, error) {
	body, ok := strings.CutPrefix(source, NoisePrefix)
	if !ok {
		return NoiseShape{}, fmt.Errorf("not a noise source: %q", source)
	}
	var ns NoiseShape
	if shape, seed, found := strings.Cut(body, "@"); found {
		n, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return NoiseShape{}, fmt.Errorf("noise seed %q: %w", seed, err)
		}
		ns.Seed = n
		body = shape
	}
	parts := strings.Split(body, "x")
	if len(parts) != 3 {
		return NoiseShape{}, fmt.Errorf("noise shape %q: want WIDTHxHEIGHTxDEPTH", body)
	}
	dims := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return NoiseShape{}, fmt.Errorf("noise shape %q: %q is not a positive integer", body, p)
		}
		dims[i] = n
	}
	ns.Width, ns.Height, ns.Depth = dims[0], dims[1], dims[2]
	return ns, nil
}

// NoiseLoader serves "noise:" sources.
type NoiseLoader struct{}

// Load implements Loader.
func (NoiseLoader) Load(_ context.Context, source string) (*Video, error) {
	ns, err := ParseNoise(source)
	if err != nil {
		return nil, err
	}
	return Noise(ns.Width, ns.Height, ns.Depth, ns.Seed)
}

// FFmpegLoader extracts frames from a video file with the ffmpeg binary and
// decodes them as grayscale.
type FFmpegLoader struct {
	// Binary is the ffmpeg executable; "ffmpeg" when empty.
	Binary string
	// FPS resamples the video before extraction; 0 keeps every frame.
	FPS int
	// TempDir is the parent of the scratch directory; os.TempDir() when empty.
	TempDir string
	Logger  *slog.Logger
}

// Load implements Loader.
func (l *FFmpegLoader) Load(ctx context.Context, source string) (*Video, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("video source: %w", err)
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	workDir, err := os.MkdirTemp(l.TempDir, "motionvdl-frames-")
	if err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	binary := l.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{"-v", "error", "-i", source}
	if l.FPS > 0 {
		args = append(args, "-vf", fmt.Sprintf("fps=%d", l.FPS))
	}
	args = append(args, "-y", filepath.Join(workDir, "frame_%06d.png"))

	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	paths, err := filepath.Glob(filepath.Join(workDir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	v, err := LoadFrames(paths)
	if err != nil {
		return nil, err
	}
	logger.Info("frames extracted", "source", source, "count", v.FrameCount(),
		"width", v.Width(), "height", v.Height())
	return v, nil
}

// LoadFrames decodes PNG files, in lexical path order, into a video.
func LoadFrames(paths []string) (*Video, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames extracted from video")
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	frames := make([]Frame, 0, len(sorted))
	for _, p := range sorted {
		f, err := decodePNG(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return New(frames...)
}

func decodePNG(path string) (Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return Frame{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return FrameFromImage(img)
}

// SourceLoader routes "noise:" sources to NoiseLoader and everything else
// to the file loader.
type SourceLoader struct {
	File Loader
}

// Load implements Loader.
func (s SourceLoader) Load(ctx context.Context, source string) (*Video, error) {
	if strings.HasPrefix(source, NoisePrefix) {
		return NoiseLoader{}.Load(ctx, source)
	}
	if s.File == nil {
		return nil, fmt.Errorf("no file loader configured for %q", source)
	}
	return s.File.Load(ctx, source)
}
