package main

import (
	"os"

	"github.com/aretw0/parley/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Talk to the assistant in the terminal",
	Long: `Starts an interactive conversation on standard input and output.
Ctrl+C cancels the question being asked; press it again when idle to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, debug, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if id, _ := cmd.Flags().GetString("conversation"); id != "" {
			cfg.ConversationID = id
		}

		return cli.Run(cmd.Context(), cli.RunOptions{
			Config: cfg,
			Debug:  debug,
			Quiet:  quiet,
			In:     os.Stdin,
			Out:    os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner and system messages")
	runCmd.Flags().String("conversation", "", "Conversation ID (random when empty)")
}
