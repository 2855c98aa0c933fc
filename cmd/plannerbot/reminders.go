package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"plannerbot/internal/app"
	"plannerbot/internal/config"
	"plannerbot/internal/notify/memory"
	"plannerbot/internal/reminder"
	"plannerbot/internal/storage"
	logx "plannerbot/pkg/logx"

	"github.com/spf13/cobra"
)

func newRemindersCommand(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect stored reminders",
	}
	cmd.AddCommand(newRemindersListCommand(cfgPath), newRemindersCountCommand(cfgPath))
	return cmd
}

// openReminders opens the configured store read-side. The returned service
// is backed by an offline platform: it can list but not deliver.
func openReminders(cfgPath string) (*reminder.Service, func() error, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, nil, err
	}
	sc, err := app.MapStorageConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	rc, err := app.MapReminderConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	log := logx.NewConsole("warn")
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, nil, err
	}
	return reminder.New(rc, memory.New(), store, log), store.Close, nil
}

func newRemindersListCommand(cfgPath *string) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reminders in scheduling order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := openReminders(*cfgPath)
			if err != nil {
				return err
			}
			defer closeStore()

			var list []reminder.Reminder
			if subject != "" {
				list, err = svc.ListFor(cmd.Context(), subject)
			} else {
				list, err = svc.List(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRIGGER\tKIND\tSUBJECT\tTITLE\tID")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.TriggerTime.Local().Format(time.DateTime), r.Kind, r.SubjectRefID, r.Title, r.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "only reminders for this task or session id")
	return cmd
}

func newRemindersCountCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count reminders that have not fired yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := openReminders(*cfgPath)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := svc.CountActive(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
