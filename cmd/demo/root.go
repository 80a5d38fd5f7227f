package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "A Multi-Paxos replica node",
	Long:  `quorum runs and drives a Multi-Paxos replica over a static, YAML-configured cluster.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
