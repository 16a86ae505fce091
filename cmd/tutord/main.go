package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "tutord",
	Short: "Course-aware AI tutor service",
	Long: `tutord answers course questions by retrieving relevant material,
querying a language model, and structuring the answer for students.

Run "tutord start" to launch the server, then "tutord ask" to query it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tutord version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tutord version %s\n", version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(interactionsCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
