package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	analyzeAudio      string
	analyzeSkit       string
	analyzeTimestamps string
	analyzeJSON       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Show where a recording switches between skit lines",
	Long: `Parse a skit and split its recording into one segment per line without
rendering any video. Useful for checking the split before a render, or for
finding manual timestamps to pass to --timestamps.

Examples:
  pawdcast analyze --audio take1.wav --skit skit.txt
  pawdcast analyze --audio take1.wav --skit skit.txt --timestamps "8.5,15.2"
  pawdcast analyze --audio take1.wav --skit skit.txt --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeAudio == "" || analyzeSkit == "" {
			return fmt.Errorf("--audio and --skit are required")
		}
		skit, err := os.ReadFile(analyzeSkit)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := loadApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		if err := a.ffmpeg.Check(ctx); err != nil {
			return err
		}
		res, err := a.pipeline.Analyze(ctx, analyzeAudio, string(skit), analyzeTimestamps)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if analyzeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprint(out, renderAnalysis(res))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAudio, "audio", "", "recording of the whole skit")
	analyzeCmd.Flags().StringVar(&analyzeSkit, "skit", "", "skit text file")
	analyzeCmd.Flags().StringVar(&analyzeTimestamps, "timestamps", "", "comma separated split times in seconds, skips detection")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print JSON instead of a table")
}
