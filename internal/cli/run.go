package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/motionvdl/internal/config"
	"github.com/roach88/motionvdl/internal/script"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // script name filter (glob pattern)
	Golden string // golden directory; <scripts-dir>/golden when empty
}

// ScriptResult holds the result of a single script.
type ScriptResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scripts []ScriptResult `json:"scripts"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Total   int            `json:"total"`
}

func (r RunResult) String() string {
	var b strings.Builder
	for _, s := range r.Scripts {
		if s.Pass {
			fmt.Fprintf(&b, "PASS %s\n", s.Name)
			continue
		}
		fmt.Fprintf(&b, "FAIL %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scripts-dir>",
		Short: "Replay event scripts against labelling sessions",
		Long: `Replay every YAML event script in a directory against a recording
display and check its expectations.

When a golden file named after the script exists, the display transcript
must match it byte for byte.

Exit codes:
  0 - All scripts passed
  1 - One or more scripts failed
  2 - Command error (invalid paths, unreadable scripts)

Examples:
  motionvdl run ./scripts
  motionvdl run ./scripts --filter "undo_*"
  motionvdl run ./scripts --update
  motionvdl run ./scripts --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scripts by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <scripts-dir>/golden)")

	return cmd
}

func runScripts(opts *RunOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scripts directory not found: %s", dir))
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	logger := newLogger(f.GetErrWriter(), opts.Verbose, cfg.Level())

	scripts, err := script.LoadDir(dir)
	if errors.Is(err, script.ErrNoScripts) {
		scripts = nil
	} else if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScript, "cannot load scripts", err)
	}

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	result := RunResult{Scripts: []ScriptResult{}}
	for _, s := range scripts {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		logger.Debug("running script", "name", s.Name)
		sr := runScript(opts, s, goldenDir, cmd)
		f.VerboseLog("%s: %d errors", s.Name, len(sr.Errors))
		result.Scripts = append(result.Scripts, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Total == 0 && opts.Format != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "No scripts found.")
		return nil
	}
	if err := f.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scripts failed", result.Failed, result.Total))
	}
	return nil
}

// runScript executes one script and checks or updates its golden file.
func runScript(opts *RunOptions, s *script.Script, goldenDir string, cmd *cobra.Command) ScriptResult {
	res, err := script.Run(commandContext(cmd), s)
	if err != nil {
		return ScriptResult{Name: s.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}
	sr := ScriptResult{Name: s.Name, Pass: res.Pass, Errors: res.Errors}

	goldenPath := filepath.Join(goldenDir, s.Name+".golden")
	if opts.Update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			return failScript(sr, fmt.Sprintf("failed to create golden directory: %v", err))
		}
		if err := os.WriteFile(goldenPath, []byte(res.Transcript), 0o644); err != nil {
			return failScript(sr, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return sr
	}

	want, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		// No golden file: expectations only.
		return sr
	}
	if err != nil {
		return failScript(sr, fmt.Sprintf("failed to read golden file: %v", err))
	}
	if !bytes.Equal(want, []byte(res.Transcript)) {
		return failScript(sr, "transcript does not match golden file (run with --update to regenerate)")
	}
	return sr
}

func failScript(sr ScriptResult, msg string) ScriptResult {
	sr.Pass = false
	sr.Errors = append(sr.Errors, msg)
	return sr
}
