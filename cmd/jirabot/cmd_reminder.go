package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/jirabot/internal/scheduler"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

func init() {
	rootCmd.AddCommand(reminderCmd)
	reminderCmd.AddCommand(reminderAddCmd, reminderListCmd, reminderRemoveCmd, reminderEnableCmd, reminderDisableCmd)

	reminderAddCmd.Flags().String("issue", "", "issue key (required)")
	reminderAddCmd.Flags().String("schedule", "", "cron schedule expression (required)")
	reminderAddCmd.Flags().String("chat-key", "", "delivery chat key, e.g. telegram:42 (required)")
	reminderAddCmd.Flags().String("note", "", "note appended to the reminder message")
	_ = reminderAddCmd.MarkFlagRequired("issue")
	_ = reminderAddCmd.MarkFlagRequired("schedule")
	_ = reminderAddCmd.MarkFlagRequired("chat-key")
}

func reminderStore() *state.ReminderStore {
	cfg := loadConfig()
	return state.NewReminderStore(filepath.Join(cfg.DataDir, "reminders.json"))
}

var reminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Manage issue reminders",
}

var reminderAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new reminder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, _ := cmd.Flags().GetString("issue")
		schedule, _ := cmd.Flags().GetString("schedule")
		chatKey, _ := cmd.Flags().GetString("chat-key")
		note, _ := cmd.Flags().GetString("note")

		if err := scheduler.Validate(schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}

		rem := &state.Reminder{
			ID:       types.NewReminderID(),
			IssueKey: issue,
			ChatKey:  types.ChatKey(chatKey),
			Schedule: schedule,
			Note:     note,
			Enabled:  true,
		}
		if err := reminderStore().Add(rem); err != nil {
			return fmt.Errorf("add reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %s added for %s. Restart the daemon to pick it up.\n", rem.ID, issue)
		return nil
	},
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reminders, err := reminderStore().List()
		if err != nil {
			return fmt.Errorf("list reminders: %w", err)
		}

		if len(reminders) == 0 {
			fmt.Println("No reminders configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tISSUE\tSCHEDULE\tENABLED\tCHAT KEY")
		for _, r := range reminders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
				r.ID,
				r.IssueKey,
				r.Schedule,
				r.Enabled,
				r.ChatKey,
			)
		}
		return w.Flush()
	},
}

var reminderRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reminderStore().Remove(types.ReminderID(args[0])); err != nil {
			return fmt.Errorf("remove reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %s removed.\n", args[0])
		return nil
	},
}

var reminderEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reminderStore().SetEnabled(types.ReminderID(args[0]), true); err != nil {
			return fmt.Errorf("enable reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %s enabled.\n", args[0])
		return nil
	},
}

var reminderDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reminderStore().SetEnabled(types.ReminderID(args[0]), false); err != nil {
			return fmt.Errorf("disable reminder: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Reminder %s disabled.\n", args[0])
		return nil
	},
}
