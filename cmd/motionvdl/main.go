// Command motionvdl labels keypoints on video frames.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/motionvdl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
