package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DanSipola/aws-gate/pkg/gate"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Output aws-gate version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\nBuild Date: %s\n", gate.ApplicationVersion, gate.ApplicationBuildDate)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
