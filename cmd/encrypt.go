package cmd

import (
	"fmt"
	"os"

	"dwhctl/internal/config"
	"dwhctl/internal/ui"
	"dwhctl/pkg/errors"

	"github.com/spf13/cobra"
)

var (
	encryptPassphrase string
	encryptKeyring    string
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt [value]",
	Short: "Encrypt a secret for the config file",
	Long: `Encrypt a secret with AES-256-GCM so it can be stored in the config file as
ENC[...]. The passphrase comes from --passphrase or $DWH_ENCRYPTION_KEY and
must be set the same way when the config is loaded.

With --keyring NAME the secret is stored in the OS keyring instead and the
value to put in the config file is keyring:NAME.

The secret is read from a prompt when not given as an argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncrypt,
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().StringVar(&encryptPassphrase, "passphrase", "", "encryption passphrase (default $DWH_ENCRYPTION_KEY)")
	encryptCmd.Flags().StringVar(&encryptKeyring, "keyring", "", "store in the OS keyring under this name")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	var secret string
	if len(args) == 1 {
		secret = args[0]
	} else {
		var err error
		if secret, err = ui.Password("Secret:"); err != nil {
			return err
		}
	}
	if secret == "" {
		return errors.ConfigError("Nothing to encrypt", "value")
	}

	out := cmd.OutOrStdout()

	if encryptKeyring != "" {
		if err := config.StoreInKeyring(encryptKeyring, secret); err != nil {
			return errors.Wrap(err, errors.ErrCodeSecretUnavailable, "Failed to store secret").
				WithContext("name", encryptKeyring)
		}
		fmt.Fprintf(out, "keyring:%s\n", encryptKeyring)
		return nil
	}

	passphrase := encryptPassphrase
	if passphrase == "" {
		passphrase = os.Getenv(config.PassphraseEnv)
	}
	if passphrase == "" {
		return errors.ConfigError("No passphrase given", "passphrase").
			WithSuggestions(fmt.Sprintf("Pass --passphrase or export %s", config.PassphraseEnv))
	}

	sealed, err := config.Encrypt(secret, passphrase)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encrypt secret")
	}
	fmt.Fprintln(out, sealed)
	return nil
}
