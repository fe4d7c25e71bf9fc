package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dhamidi/classgen/asm"
	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/constpool"
	"github.com/spf13/cobra"
)

func newAsmCmd() *cobra.Command {
	var showHex bool

	cmd := &cobra.Command{
		Use:   "asm <listing>",
		Short: "Assemble an instruction listing and print the encoded code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			src, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("read listing: %w", err)
			}
			prog, err := asm.Assemble(filename, src)
			if err != nil {
				return err
			}

			code := bytecode.NewCode(constpool.New())
			if err := code.AddAll(prog.Instructions...); err != nil {
				return err
			}
			data, err := code.Bytes()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showHex {
				fmt.Fprintln(out, hex.EncodeToString(data))
				return nil
			}

			labels := map[int][]string{}
			for _, name := range prog.Labels() {
				loc, _ := prog.Label(name)
				if off, ok := loc.Offset(); ok {
					labels[off] = append(labels[off], name)
				}
			}
			insns, err := bytecode.Disassemble(data)
			if err != nil {
				return err
			}
			for _, d := range insns {
				for _, name := range labels[d.Offset] {
					fmt.Fprintf(out, "%s:\n", name)
				}
				fmt.Fprintln(out, d.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showHex, "hex", "x", false, "print the code array as hex")

	return cmd
}
