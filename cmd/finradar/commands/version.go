package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the finradar version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("finradar %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
