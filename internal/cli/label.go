package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/motionvdl/internal/display"
	"github.com/roach88/motionvdl/internal/export"
	"github.com/roach88/motionvdl/internal/host"
	"github.com/roach88/motionvdl/internal/session"
	"github.com/roach88/motionvdl/internal/skeleton"
	"github.com/roach88/motionvdl/internal/video"
)

// LabelOptions holds flags for the label command.
type LabelOptions struct {
	*RootOptions
	archiveFlags

	Debug    bool
	Events   string // event file; stdin when empty
	Skeleton string
	FPS      int

	// IDGenerator allows overriding session IDs (for testing).
	// If nil, the host uses UUIDv7.
	IDGenerator host.IDGenerator
}

// LabelResult summarizes a labelling run.
type LabelResult struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	Frames    int    `json:"frames"`
	Capacity  int    `json:"capacity"`
	Counts    []int  `json:"counts"`
	Exported  bool   `json:"exported"`
	Key       string `json:"key,omitempty"`
	Rejected  int    `json:"rejected,omitempty"`
}

func (r LabelResult) String() string {
	if r.Exported {
		return fmt.Sprintf("session %s: exported %d frames x %d points to %s",
			r.SessionID, r.Frames, r.Capacity, r.Key)
	}
	return fmt.Sprintf("session %s: not exported (points per frame %v, need %d)",
		r.SessionID, r.Counts, r.Capacity)
}

// NewLabelCommand creates the label command.
func NewLabelCommand(rootOpts *RootOptions) *cobra.Command {
	return newLabelCommand(&LabelOptions{RootOptions: rootOpts})
}

func newLabelCommand(opts *LabelOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label <source>",
		Short: "Label a video interactively",
		Long: `Open a labelling session on a video and read input events, one per line.

The source is a video file (decoded with ffmpeg) or a synthetic
"noise:WxHxD[@seed]" clip. Events:

  point X Y   mark a point on the current frame (p)
  undo        remove the last point (u)
  up          next frame (next, n)
  down        previous frame (back, b)
  complete    export if every frame is full (c)
  quit        abandon the session (q)

Blank lines and lines starting with # are ignored. The bundle is written to
the configured archive when the session completes.

Exit codes:
  0 - Label exported
  1 - Input ended before the label was exported
  2 - Command error (bad source, skeleton or archive)

Examples:
  motionvdl label clip.mp4 --skeleton mouse.cue
  motionvdl label noise:500x300x5 --events session.txt --sink sqlite --db labels.db
  motionvdl label clip.mp4 --debug`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabel(opts, args[0], cmd)
		},
	}

	opts.archiveFlags.bind(cmd)
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "log every event at debug level")
	cmd.Flags().StringVar(&opts.Events, "events", "", "read events from a file instead of stdin")
	cmd.Flags().StringVar(&opts.Skeleton, "skeleton", "", "CUE skeleton file (env MOTIONVDL_SKELETON)")
	cmd.Flags().IntVar(&opts.FPS, "fps", 0, "resample the video before labelling (env MOTIONVDL_FFMPEG_FPS)")

	return cmd
}

func runLabel(opts *LabelOptions, source string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if cmd.Flags().Changed("fps") {
		if opts.FPS < 0 {
			return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", fmt.Errorf("--fps must not be negative"))
		}
		cfg.FFmpegFPS = opts.FPS
	}
	if cmd.Flags().Changed("skeleton") {
		cfg.Skeleton = opts.Skeleton
	}
	errOut := &syncWriter{w: cmd.ErrOrStderr()}
	f.ErrWriter = errOut
	logger := newLogger(f.GetErrWriter(), opts.Verbose || opts.Debug, cfg.Level())

	sk := skeleton.Default()
	if cfg.Skeleton != "" {
		sk, err = skeleton.Load(cfg.Skeleton)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeSkeleton, "invalid skeleton", err)
		}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := video.SourceLoader{File: &video.FFmpegLoader{
		Binary:  cfg.FFmpegBinary,
		FPS:     cfg.FFmpegFPS,
		TempDir: cfg.TempDir,
		Logger:  logger,
	}}
	v, err := loader.Load(ctx, source)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSource, "cannot load video", err)
	}
	frames := v.FrameCount()
	f.VerboseLog("loaded %d frames of %dx%d from %s", frames, v.Width(), v.Height(), source)

	archive, err := export.Open(ctx, cfg.Target())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArchive, "cannot open archive", err)
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil {
			logger.Error("error closing archive", "error", closeErr)
		}
	}()

	in := cmd.InOrStdin()
	if opts.Events != "" {
		file, err := os.Open(opts.Events)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "cannot open events file", err)
		}
		defer file.Close()
		in = file
	}

	// The renderer shares stdout with text output; in JSON mode it moves to
	// stderr so the envelope stays parseable.
	screen := cmd.OutOrStdout()
	if opts.Format == "json" {
		screen = errOut
	}
	hostOpts := []host.Option{host.WithLogger(logger), host.WithSkeleton(sk)}
	if opts.IDGenerator != nil {
		hostOpts = append(hostOpts, host.WithIDGenerator(opts.IDGenerator))
	}
	h := host.New(display.NewText(screen), archive, hostOpts...)

	s, err := h.Start(v, source)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSource, "cannot start session", err)
	}
	_, id := h.Current()
	f.VerboseLog("session %s: %d points per frame (%s)", id, s.Capacity(), sk.Name)
	result := LabelResult{SessionID: id, Source: source, Frames: frames, Capacity: s.Capacity()}

	disp := session.NewDispatcher(s)
	rejected := make(chan int, 1)
	go func() {
		rejected <- feed(in, disp, logger)
	}()

	if err := disp.Run(ctx); err != nil {
		result.Counts = s.Counts()
		s.Abandon()
		logger.Warn("session abandoned", "session", id, "reason", err)
		return f.Fail(ExitFailure, ErrCodeIncomplete, "labelling interrupted", err)
	}
	result.Rejected = <-rejected

	if s.Active() {
		result.Counts = s.Counts()
		s.Abandon()
		logger.Warn("session abandoned", "session", id, "counts", result.Counts)
		if err := f.Error(ErrCodeIncomplete, "input ended before the label was exported", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, result.String())
	}

	pending := h.Pending()
	if len(pending) == 0 {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "session closed without a bundle", nil)
	}
	lbl, err := pending[0].DecodeLabel()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "exported label is unreadable", err)
	}
	keys, err := h.Flush(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArchive, "cannot write bundle", err)
	}

	f.VerboseLog("wrote %s", keys[0])

	result.Counts = lbl.Counts()
	result.Exported = true
	result.Key = keys[0]
	return f.Success(result)
}

// feed parses one event per line from r into d and closes d at EOF or on
// quit. It returns the number of lines it could not parse.
func feed(r io.Reader, d *session.Dispatcher, logger *slog.Logger) int {
	defer d.Close()

	rejected := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "q" {
			return rejected
		}
		e, err := session.ParseEvent(line)
		if err != nil {
			rejected++
			logger.Warn("ignoring input", "line", line, "error", err)
			continue
		}
		logger.Debug("event", "event", e.String())
		d.Enqueue(e)
	}
	if err := sc.Err(); err != nil {
		logger.Error("reading input", "error", err)
	}
	return rejected
}

// syncWriter serializes writes from the input goroutine and the session
// goroutine onto one stream.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
