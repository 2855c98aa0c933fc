package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./plannerbot.yaml"

// newRootCommand builds the command tree. The config path is shared by
// every subcommand through a persistent flag.
func newRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "plannerbot",
		Short: "Student planner reminders over Telegram",
		Long: `plannerbot schedules reminders before task deadlines and weekly class
sessions, delivers them to a Telegram chat, and checks timetables for
overlapping sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to config (.yaml, .yml or .json)")

	root.AddCommand(
		newRunCommand(&cfgPath),
		newValidateCommand(&cfgPath),
		newRemindersCommand(&cfgPath),
		newTimetableCommand(),
	)
	return root
}
