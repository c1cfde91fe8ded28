package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/motionvdl/internal/export"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	archiveFlags
	Source string
}

// ListResult is the set of stored bundles.
type ListResult struct {
	Bundles []export.Summary `json:"bundles"`
}

func (r ListResult) String() string {
	if len(r.Bundles) == 0 {
		return "No bundles found."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSOURCE\tFRAMES\tPOINTS\tDIGEST")
	for _, s := range r.Bundles {
		digest := s.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.SessionID, s.Source, s.Depth, s.Capacity, digest)
	}
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exported bundles",
		Long: `List the bundles in the configured archive, ordered by session ID.

Examples:
  motionvdl list
  motionvdl list --sink sqlite --db labels.db --source clip.mp4
  motionvdl list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	opts.archiveFlags.bind(cmd)
	cmd.Flags().StringVar(&opts.Source, "source", "", "only bundles labelled from this source")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	ctx := commandContext(cmd)
	archive, err := export.Open(ctx, cfg.Target())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArchive, "cannot open archive", err)
	}
	defer archive.Close()

	var summaries []export.Summary
	if st, ok := archive.(*export.Store); ok && opts.Source != "" {
		summaries, err = st.ListBySource(ctx, opts.Source)
	} else {
		summaries, err = archive.List(ctx)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArchive, "cannot list bundles", err)
	}

	result := ListResult{Bundles: make([]export.Summary, 0, len(summaries))}
	for _, s := range summaries {
		if opts.Source != "" && s.Source != opts.Source {
			continue
		}
		result.Bundles = append(result.Bundles, s)
	}
	return f.Success(result)
}
