package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
	"github.com/spf13/cobra"
)

var cardFile string
var privateKeyFile string
var passphrase string

func init() {
	cardCmd.Flags().StringVarP(&cardFile, "card", "i", "", "vCard payload file")
	cardCmd.Flags().StringVarP(&privateKeyFile, "key", "k", "", "armored private key file")
	cardCmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "private key passphrase")
	cardCmd.MarkFlagRequired("card")
	cardCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(cardCmd)
}

// cardCmd signs a vCard payload and prints the signed card document ready
// to be PUT to the contacts endpoint
var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Sign a contact card",
	Long:  "Sign a vCard payload with a private key and print the signed card as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := os.ReadFile(cardFile)
		check(err)
		armoredKey, err := os.ReadFile(privateKeyFile)
		check(err)

		var pass []byte
		if passphrase != "" {
			pass = []byte(passphrase)
		}
		signature, err := util.SignDetached(string(armoredKey), pass, payload)
		check(err)

		card := types.CardData{
			Type:      types.CardTypeSignedOnly,
			Data:      string(payload),
			Signature: signature,
		}
		cardBytes, err := json.MarshalIndent(card, "", "  ")
		check(err)
		fmt.Printf("%s\n", string(cardBytes))
	},
}
