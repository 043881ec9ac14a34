package cli

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rowan/backstop/internal/storage"
)

var (
	keygenOut        string
	keygenPassphrase bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an archive encryption key",
	Long: `Generate a 32-byte archive encryption key and write it hex-encoded to a
key file. By default the key is random; with --passphrase it is derived from
an interactively entered passphrase.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var key []byte

		if keygenPassphrase {
			fmt.Print("Passphrase: ")
			passphrase, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read passphrase: %w", err)
			}

			fmt.Print("Confirm passphrase: ")
			confirm, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read passphrase: %w", err)
			}
			if !bytes.Equal(passphrase, confirm) {
				return fmt.Errorf("passphrases do not match")
			}

			salt := make([]byte, 16)
			if _, err := rand.Read(salt); err != nil {
				return fmt.Errorf("failed to generate salt: %w", err)
			}
			key, err = storage.DeriveKey(passphrase, salt)
			if err != nil {
				return err
			}
		} else {
			key = make([]byte, storage.KeySize)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
		}

		if err := storage.WriteKeyFile(keygenOut, key); err != nil {
			return err
		}

		fmt.Printf("Key written to %s\n", keygenOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenOut, "out", "backstop.key", "Key file to write")
	keygenCmd.Flags().BoolVar(&keygenPassphrase, "passphrase", false, "Derive the key from a passphrase")
}
