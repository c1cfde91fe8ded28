package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/motionvdl/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the motionvdl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "motionvdl",
		Short: "MotionVDL - video keypoint labelling",
		Long: `Label a fixed number of keypoints on every frame of a video and export
the frames and points as a pair of bitstreams.

Settings come from MOTIONVDL_* environment variables; flags override them.`,
		// main prints the error once and maps it to an exit code.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLabelCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSkeletonCommand(opts))

	return cmd
}

// archiveFlags select where bundles are stored. Unset flags fall back to
// the environment.
type archiveFlags struct {
	Sink   string
	Out    string
	DB     string
	Bucket string
	Prefix string
}

func (a *archiveFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.Sink, "sink", "", "archive kind: dir, sqlite or s3 (env MOTIONVDL_SINK)")
	cmd.Flags().StringVar(&a.Out, "out", "", "bundle directory for the dir sink (env MOTIONVDL_OUT_DIR)")
	cmd.Flags().StringVar(&a.DB, "db", "", "SQLite database for the sqlite sink (env MOTIONVDL_DB)")
	cmd.Flags().StringVar(&a.Bucket, "bucket", "", "bucket for the s3 sink (env MOTIONVDL_S3_BUCKET)")
	cmd.Flags().StringVar(&a.Prefix, "prefix", "", "key prefix for the s3 sink (env MOTIONVDL_S3_PREFIX)")
}

// loadConfig reads the environment, applies the archive flags the user set
// explicitly, then validates the result.
func (a *archiveFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("sink") {
		cfg.Sink = a.Sink
	}
	if flags.Changed("out") {
		cfg.OutDir = a.Out
	}
	if flags.Changed("db") {
		cfg.DB = a.DB
	}
	if flags.Changed("bucket") {
		cfg.S3Bucket = a.Bucket
	}
	if flags.Changed("prefix") {
		cfg.S3Prefix = a.Prefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
