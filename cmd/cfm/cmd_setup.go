package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/config"
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

		fmt.Println("cfm setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Backend.BaseURL = prompt(scanner, "Backend base URL", cfg.Backend.BaseURL)

		timeout := prompt(scanner, "Request timeout (seconds)", strconv.Itoa(cfg.Backend.TimeoutSeconds))
		if n, err := strconv.Atoi(timeout); err == nil && n > 0 {
			cfg.Backend.TimeoutSeconds = n
		}

		cfg.Owner.UUID = prompt(scanner, "Owner UUID", cfg.Owner.UUID)
		cfg.Owner.Username = prompt(scanner, "Owner username", cfg.Owner.Username)

		resolve := prompt(scanner, "Resolve build ids after artifact replies (y/n)", yesNo(cfg.Chat.ResolveBuildIDs))
		cfg.Chat.ResolveBuildIDs = strings.HasPrefix(strings.ToLower(resolve), "y")

		cfg.UI.Theme = prompt(scanner, "Theme (auto, dark, light)", cfg.UI.Theme)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		fmt.Println("Run `cfm login` to store your credentials.")
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
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
