package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/spf13/cobra"
)

var outputFile string
var keyName string
var keyEmail string

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	keysCmd.Flags().StringVarP(&keyName, "name", "n", "", "key holder name")
	keysCmd.Flags().StringVarP(&keyEmail, "email", "e", "", "key holder email")
	keysCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(keysCmd)
}

// keysCmd generates an OpenPGP key pair for an address, e.g. for seeding a
// test user or a directory fixture
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate an OpenPGP key pair",
	Long:  "Generate an x25519 OpenPGP key pair for an email address",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := crypto.GenerateKey(keyName, keyEmail, "x25519", 0)
		check(err)
		armoredPrivate, err := key.Armor()
		check(err)
		armoredPublic, err := key.GetArmoredPublicKey()
		check(err)

		keysJson := map[string]interface{}{
			"type":        "mailtrust_keys_openpgp",
			"fingerprint": key.GetFingerprint(),
			"privateKey":  armoredPrivate,
			"publicKey":   armoredPublic,
			"created":     time.Now().UnixMilli(),
		}
		fileBytes, err := json.MarshalIndent(keysJson, "", "  ")
		if outputFile != "" {
			// save keys to disk in a file
			// fail if file already exists
			if _, err := os.Stat(outputFile); !errors.Is(err, os.ErrNotExist) {
				fmt.Printf("File already exists: %s\n", outputFile)
				os.Exit(1)
			}
			check(err)
			err = os.WriteFile(outputFile, fileBytes, 0644)
			check(err)
			fmt.Printf("Output file: %s\n", outputFile)
		} else {
			fmt.Printf("\n%s\n", string(fileBytes))
		}
	},
}
