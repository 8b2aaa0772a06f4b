package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vibast-solutions/ms-go-accounts/app/token"

	"github.com/spf13/cobra"
)

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
)

var (
	keysDir   string
	keysBits  int
	keysForce bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the access token signing keys",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an RSA keypair for signing access tokens",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		privatePath, publicPath, err := writeKeyPair(keysDir, keysBits, keysForce)
		if err != nil {
			return err
		}

		fmt.Printf("private_key: %s\n", privatePath)
		fmt.Printf("public_key: %s\n", publicPath)
		return nil
	},
}

func init() {
	keysGenerateCmd.Flags().StringVar(&keysDir, "dir", "./keys", "directory to write private.pem and public.pem to")
	keysGenerateCmd.Flags().IntVar(&keysBits, "bits", token.DefaultKeyBits, "RSA key size")
	keysGenerateCmd.Flags().BoolVar(&keysForce, "force", false, "overwrite existing keys")

	keysCmd.AddCommand(keysGenerateCmd)
	rootCmd.AddCommand(keysCmd)
}

func writeKeyPair(dir string, bits int, force bool) (string, string, error) {
	privatePath := filepath.Join(dir, privateKeyFile)
	publicPath := filepath.Join(dir, publicKeyFile)

	if !force {
		for _, path := range []string{privatePath, publicPath} {
			if _, err := os.Stat(path); err == nil {
				return "", "", fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", "", err
			}
		}
	}

	privatePEM, publicPEM, err := token.GenerateKeyPair(bits)
	if err != nil {
		return "", "", err
	}

	if err = os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}
	if err = os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		return "", "", err
	}
	if err = os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		return "", "", err
	}
	return privatePath, publicPath, nil
}
