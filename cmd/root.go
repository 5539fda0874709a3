package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sync",
	Short: "Point-of-sale synchronization service",
	Long:  `Backend synchronization service for offline-first point-of-sale clients`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
