package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, config file, environment and
flags are merged. API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		b, err := c.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices of the configured TTS provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(c.VoiceTable()))
		for _, v := range c.VoiceTable() {
			var used []string
			if v == c.Voices.Speaker1 {
				used = append(used, "speaker 1")
			}
			if v == c.Voices.Speaker2 {
				used = append(used, "speaker 2")
			}
			rows = append(rows, []string{v, strings.Join(used, ", ")})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Title.Render("provider: "+c.Providers.TTS))
		fmt.Fprint(out, table([]string{"VOICE", "USED BY"}, rows))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
