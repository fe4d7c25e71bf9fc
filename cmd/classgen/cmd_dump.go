package main

import (
	"fmt"
	"strings"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/format"
	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	var dumpFormat string

	cmd := &cobra.Command{
		Use:   "dump <file.class>...",
		Short: "Show the contents of class files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			enc, err := format.NewEncoder(dumpFormat, out)
			if err != nil {
				return err
			}

			for _, filename := range args {
				cf, err := classfile.ParseFile(filename)
				if err != nil {
					return fmt.Errorf("parse class file: %w", err)
				}
				if err := enc.Encode(cf); err != nil {
					return fmt.Errorf("encode %s: %w", dumpFormat, err)
				}
				if dumpFormat == "json" {
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dumpFormat, "format", "f", "line", "output format ("+strings.Join(format.Names, ", ")+")")

	return cmd
}
