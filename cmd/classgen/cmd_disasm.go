package main

import (
	"fmt"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/format"
	"github.com/spf13/cobra"
)

func newDisasmCmd() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "disasm <file.class>...",
		Short: "Print the code of each method",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := format.NewListingEncoder(cmd.OutOrStdout())
			enc.Method = method
			for _, filename := range args {
				cf, err := classfile.ParseFile(filename)
				if err != nil {
					return fmt.Errorf("parse class file: %w", err)
				}
				if err := enc.Encode(cf); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "", "only list methods with this name")

	return cmd
}
