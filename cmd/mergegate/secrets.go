package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mergegate/pkg/config"
)

//nolint:gochecknoglobals // Cobra command definitions
var (
	secretsCmd = &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted credentials file",
		Long: fmt.Sprintf(`Manage the encrypted credentials file at %s.

The file is encrypted with a passphrase taken from %s or
prompted interactively. The merge command reads the %s and
%s entries from it when no token is set in the environment.`,
			config.SecretsFilePath("."), config.EnvPassphrase, config.EnvToken, config.EnvUsername),
	}

	secretsSetCmd = &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret",
		Long: `Store a named secret in the encrypted credentials file, creating the
file if needed. The value is read from a hidden prompt, or from stdin
when piped.`,
		Args: cobra.ExactArgs(1),
		RunE: runSecretsSet,
	}

	secretsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the names of stored secrets",
		RunE:  runSecretsList,
	}
)

//nolint:gochecknoinits // Cobra command registration
func init() {
	secretsCmd.AddCommand(secretsSetCmd)
	secretsCmd.AddCommand(secretsListCmd)
	rootCmd.AddCommand(secretsCmd)
}

func runSecretsSet(_ *cobra.Command, args []string) error {
	name := args[0]

	passphrase, err := resolvePassphrase(!config.SecretsFileExists("."))
	if err != nil {
		return err
	}

	value, err := readSecretValue(name)
	if err != nil {
		return err
	}

	if err := config.SetSecretInFile(".", passphrase, name, value); err != nil {
		return err
	}

	fmt.Printf("✅ Secret %s saved to %s\n", name, config.SecretsFilePath("."))
	return nil
}

func runSecretsList(_ *cobra.Command, _ []string) error {
	if !config.SecretsFileExists(".") {
		fmt.Println("No secrets file found.")
		return nil
	}

	passphrase, err := resolvePassphrase(false)
	if err != nil {
		return err
	}

	names, err := config.SecretNamesInFile(".", passphrase)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("Secrets file is empty.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// resolvePassphrase returns the secrets-file passphrase from the
// environment or an interactive prompt. A fresh file gets a
// confirmation prompt so a typo cannot lock the user out.
func resolvePassphrase(confirm bool) (string, error) {
	if pass := os.Getenv(config.EnvPassphrase); pass != "" {
		return pass, nil
	}
	if !term.IsTerminal(syscall.Stdin) {
		return "", fmt.Errorf("set %s or run interactively to enter a passphrase", config.EnvPassphrase)
	}
	if confirm {
		return promptNewPassphrase()
	}

	fmt.Print("Enter passphrase: ")
	pass, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pass), nil
}

// promptNewPassphrase prompts for a passphrase with confirmation.
func promptNewPassphrase() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Print("Choose a passphrase for the secrets file: ")
		first, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}

		fmt.Print("Confirm passphrase: ")
		second, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}

		match := bytes.Equal(first, second)
		empty := len(first) == 0
		pass := string(first)

		// Clear passphrase bytes from memory
		for i := range first {
			first[i] = 0
		}
		for i := range second {
			second[i] = 0
		}

		switch {
		case empty:
			fmt.Println("❌ Passphrase cannot be empty.")
		case !match:
			if attempt < maxAttempts {
				fmt.Println("❌ Passphrases do not match. Please try again.")
			}
		default:
			return pass, nil
		}
	}
	return "", fmt.Errorf("no passphrase entered after %d attempts", maxAttempts)
}

// readSecretValue reads the secret value from a hidden prompt, or a
// single line from stdin when input is piped.
func readSecretValue(name string) (string, error) {
	if term.IsTerminal(syscall.Stdin) {
		fmt.Printf("Enter value for %s: ", name)
		raw, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read secret value: %w", err)
		}
		value := string(raw)
		for i := range raw {
			raw[i] = 0
		}
		if value == "" {
			return "", fmt.Errorf("secret value cannot be empty")
		}
		return value, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret value from stdin: %w", err)
	}
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return "", fmt.Errorf("secret value cannot be empty")
	}
	return value, nil
}
