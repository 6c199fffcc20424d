// Command venture-assessor runs venture assessments from the command line or
// serves the assessment UI and API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "venture-assessor",
	Short:        "Venture assessment pipeline",
	Long:         "Runs company, team, funding, competitive, market and IP risk analyses for a company website and collects human counter-scores.",
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
