// cmd/relay/vault.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/espnet/sensor-relay/internal/vault"
)

var vaultDir string

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Work with credential vault artifacts",
}

var vaultEncryptCmd = &cobra.Command{
	Use:   "encrypt <plaintext>",
	Short: "Encrypt a string with the vault's key material",
	Long: `encrypt produces the base64 blob to store as credentials.txt. The
result is decrypted again and compared against the input before it is
printed, so a bad key or IV file fails loudly instead of producing an
unusable vault.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		mat, err := vault.LoadMaterial(vaultDir)
		if err != nil {
			return err
		}
		c := vault.NewCipher(mat)

		blob, err := c.Encrypt(args[0])
		if err != nil {
			return err
		}

		// Round-trip check before handing the blob out.
		back, err := c.Decrypt(blob)
		if err != nil {
			return fmt.Errorf("self-check decrypt failed: %w", err)
		}
		if back != args[0] {
			return fmt.Errorf("self-check mismatch: got %q back", back)
		}

		fmt.Println(blob)
		return nil
	},
}

var vaultDecryptCmd = &cobra.Command{
	Use:   "decrypt <base64-blob>",
	Short: "Decrypt a base64 blob with the vault's key material",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		mat, err := vault.LoadMaterial(vaultDir)
		if err != nil {
			return err
		}
		plain, err := vault.NewCipher(mat).Decrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Println(plain)
		return nil
	},
}

func init() {
	vaultCmd.PersistentFlags().StringVar(&vaultDir, "dir", ".", "vault directory holding key.txt and iv.txt")
	vaultCmd.AddCommand(vaultEncryptCmd, vaultDecryptCmd)
	rootCmd.AddCommand(vaultCmd)
}
