// Package commands implements the pawdcast command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pawdcast/pawdcast/orchestrator"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	workDir  string
)

var rootCmd = &cobra.Command{
	Use:   "pawdcast",
	Short: "Turn dialogue skits into talking-pet videos",
	Long: `pawdcast assembles a video from a two-speaker dialogue skit: each line
plays over its speaker's template clip and a closing clip is appended.

Audio comes from one of three sources:
  audio    a single recording of the whole skit, split at speaker changes
  skit     speech synthesized per line
  article  a skit written from an article, then synthesized

Configuration is read from --config, config/<CONFIG_ENV>/config.yaml or
pawdcast.yaml, and PAWDCAST_* environment variables (a .env file is honored).

Examples:
  pawdcast analyze --audio take1.wav --skit skit.txt
  pawdcast render --mode audio --audio take1.wav --skit skit.txt \
    --template1 dog.mp4 --template2 cat.mp4 --closing outro.mp4 -o out.mp4
  pawdcast serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		msg := orchestrator.UserMessage(err)
		fmt.Fprintln(os.Stderr, styles.Error.Render(msg))
		if details := err.Error(); details != msg && "Error: "+details != msg {
			fmt.Fprintln(os.Stderr, styles.Dim.Render(details))
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config/<CONFIG_ENV>/config.yaml or pawdcast.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "scratch directory for intermediate files")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(voicesCmd)
	rootCmd.AddCommand(configCmd)
}
