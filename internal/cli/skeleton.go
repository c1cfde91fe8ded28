package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/motionvdl/internal/skeleton"
)

// NewSkeletonCommand creates the skeleton command.
func NewSkeletonCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skeleton [file.cue]",
		Short: "Validate a skeleton file or print the default",
		Long: `Validate a CUE skeleton file and print it in canonical form. Without an
argument, print the default 11-joint body skeleton.

A skeleton names the points marked on every frame; the number of joints is
the per-frame point count:

  skeleton: {
  	name: "mouse"
  	joints: ["nose", "left_ear", "right_ear", "tail_base"]
  }

Examples:
  motionvdl skeleton > body.cue
  motionvdl skeleton mouse.cue
  motionvdl skeleton mouse.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkeleton(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runSkeleton(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	sk := skeleton.Default()
	if len(args) == 1 {
		var err error
		sk, err = skeleton.Load(args[0])
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeSkeleton, "invalid skeleton", err)
		}
	}

	if opts.Format == "json" {
		return f.Success(sk)
	}
	out, err := sk.Format()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "cannot format skeleton", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
