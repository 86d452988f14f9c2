package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mailtrust",
	Short:   "Mailtrust resolves recipient trust for encrypted email",
	Long:    `Mailtrust resolves recipient trust for encrypted email: verification keys, encryption status and send preferences, backed by signed contact cards and a public key directory.`,
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
