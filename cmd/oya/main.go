package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lprior-repo/oya-sub002/internal/cli"
)

var rootCmd = &cobra.Command{Use: "oya"}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
