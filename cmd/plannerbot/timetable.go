package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"plannerbot/internal/timetable"

	"github.com/spf13/cobra"
)

// errConflict makes the process exit with status 2 after the verdict has
// been printed.
var errConflict = errors.New("session conflict")

func newTimetableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timetable",
		Short: "Inspect a weekly session timetable",
	}
	cmd.AddCommand(newTimetableCheckCommand(), newTimetableListCommand())
	return cmd
}

func newTimetableCheckCommand() *cobra.Command {
	var file, day, start, end, exclude string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a time slot overlaps an existing session",
		Example: `  plannerbot timetable check --sessions timetable.yaml --day wed --start 10:00 --end 11:30
  plannerbot timetable check -s timetable.yaml -d 3 --start 9:00 --end 10:00 --exclude calc-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := timetable.LoadSessions(file)
			if err != nil {
				return err
			}
			d, err := timetable.ParseDay(day)
			if err != nil {
				return err
			}
			s, err := timetable.ParseClock(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			e, err := timetable.ParseClock(end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			v := timetable.CheckSlot(sessions, d, s, e, exclude)
			out := cmd.OutOrStdout()
			if !v.HasConflict {
				fmt.Fprintf(out, "ok: %s %s - %s is free\n", d, s.Format12h(), e.Format12h())
				return nil
			}
			fmt.Fprintln(out, "conflict:", v.Message)
			return errConflict
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "sessions", "s", "timetable.yaml", "YAML file with a sessions list")
	f.StringVarP(&day, "day", "d", "", "day of week (sun..sat or 0-6)")
	f.StringVar(&start, "start", "", "start time, HH:MM")
	f.StringVar(&end, "end", "", "end time, HH:MM")
	f.StringVar(&exclude, "exclude", "", "session id to ignore (when editing that session)")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newTimetableListCommand() *cobra.Command {
	var file, day string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, optionally for one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := timetable.LoadSessions(file)
			if err != nil {
				return err
			}
			if day != "" {
				d, err := timetable.ParseDay(day)
				if err != nil {
					return err
				}
				sessions = timetable.SessionsFor(sessions, d)
			}
			sort.SliceStable(sessions, func(i, j int) bool {
				if sessions[i].Day != sessions[j].Day {
					return sessions[i].Day < sessions[j].Day
				}
				return sessions[i].Start.Minutes() < sessions[j].Start.Minutes()
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tSTART\tEND\tID\tTITLE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Day, s.Start, s.End, s.ID, s.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "sessions", "s", "timetable.yaml", "YAML file with a sessions list")
	cmd.Flags().StringVarP(&day, "day", "d", "", "only this day of week")
	return cmd
}
