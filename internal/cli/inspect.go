package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/motionvdl/internal/export"
	"github.com/roach88/motionvdl/internal/label"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	archiveFlags
	Points bool
}

// InspectResult describes one bundle.
type InspectResult struct {
	SessionID string                `json:"session_id"`
	Source    string                `json:"source"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	Depth     int                   `json:"depth"`
	MaxLevel  uint8                 `json:"max_level"`
	Capacity  int                   `json:"capacity"`
	Joints    []string              `json:"joints,omitempty"`
	VideoBits int                   `json:"video_bits"`
	LabelBits int                   `json:"label_bits"`
	Digest    string                `json:"digest"`
	Points    map[int][]label.Point `json:"points,omitempty"`
}

func (r InspectResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "session:  %s\n", r.SessionID)
	fmt.Fprintf(&b, "source:   %s\n", r.Source)
	fmt.Fprintf(&b, "video:    %d frames of %dx%d, max level %d (%d bits)\n",
		r.Depth, r.Width, r.Height, r.MaxLevel, r.VideoBits)
	fmt.Fprintf(&b, "label:    %d points per frame (%d bits)\n", r.Capacity, r.LabelBits)
	if len(r.Joints) > 0 {
		fmt.Fprintf(&b, "joints:   %s\n", strings.Join(r.Joints, ", "))
	}
	fmt.Fprintf(&b, "digest:   %s", r.Digest)
	for i := 0; i < r.Depth; i++ {
		pts, ok := r.Points[i]
		if !ok {
			continue
		}
		parts := make([]string, len(pts))
		for j, p := range pts {
			parts[j] = p.String()
		}
		fmt.Fprintf(&b, "\nframe %d: %s", i, strings.Join(parts, " "))
	}
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <session-id|file.mvdl>",
		Short: "Show an exported bundle",
		Long: `Read a bundle from the archive (or a .mvdl file), verify its digest and
decode its label.

Examples:
  motionvdl inspect 0190c3a8-0000-7000-8000-000000000001
  motionvdl inspect labels/0190c3a8-0000-7000-8000-000000000001.mvdl --points
  motionvdl inspect 0190c3a8-0000-7000-8000-000000000001 --sink sqlite --db labels.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	opts.archiveFlags.bind(cmd)
	cmd.Flags().BoolVar(&opts.Points, "points", false, "print every frame's points")

	return cmd
}

func runInspect(opts *InspectOptions, ref string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	b, err := readBundle(opts, ref, cmd)
	if errors.Is(err, export.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("bundle not found: %s", ref), err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArchive, "cannot read bundle", err)
	}

	lbl, err := b.DecodeLabel()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArchive, "cannot decode label", err)
	}

	result := InspectResult{
		SessionID: b.SessionID,
		Source:    b.Source,
		Width:     b.Width,
		Height:    b.Height,
		Depth:     b.Depth,
		MaxLevel:  b.MaxLevel,
		Capacity:  b.Capacity,
		Joints:    b.Joints,
		VideoBits: b.Video.Bits,
		LabelBits: b.Label.Bits,
		Digest:    b.Digest,
	}
	if opts.Points {
		result.Points = make(map[int][]label.Point, lbl.Depth())
		for i := 0; i < lbl.Depth(); i++ {
			result.Points[i] = lbl.PointsAt(i)
		}
	}
	return f.Success(result)
}

// readBundle treats ref as a file when it names an existing .mvdl file and
// as a session ID otherwise.
func readBundle(opts *InspectOptions, ref string, cmd *cobra.Command) (*export.Bundle, error) {
	if strings.HasSuffix(ref, export.Extension) {
		if _, err := os.Stat(ref); err == nil {
			return export.ReadFile(ref)
		}
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ctx := commandContext(cmd)
	archive, err := export.Open(ctx, cfg.Target())
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return archive.Read(ctx, ref)
}
