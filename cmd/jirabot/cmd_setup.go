package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/jirabot/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Jirabot Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. Jira site
		cfg.Jira.BaseURL = prompt(scanner, "Jira base URL", cfg.Jira.BaseURL)

		// 2. Bot account
		cfg.Jira.Email = prompt(scanner, "Jira account email", cfg.Jira.Email)
		cfg.Jira.APIToken = prompt(scanner, "Jira API token", cfg.Jira.APIToken)

		// 3. Telegram bot token
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token", cfg.Telegram.Token)

		// 4. Webhook server (optional)
		enabledStr := prompt(scanner, "Enable webhook server (true/false)", strconv.FormatBool(cfg.HTTP.Enabled))
		if b, err := strconv.ParseBool(enabledStr); err == nil {
			cfg.HTTP.Enabled = b
		}
		if cfg.HTTP.Enabled {
			cfg.HTTP.Listen = prompt(scanner, "Webhook listen address", cfg.HTTP.Listen)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
