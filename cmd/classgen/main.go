package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	var verbose int

	rootCmd := &cobra.Command{
		Use:          "classgen",
		Short:        "Write JVM class files from recipes",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbose, nil)
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")

	rootCmd.AddCommand(newEmitCmd())
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newDisasmCmd())
	rootCmd.AddCommand(newAsmCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
