package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhamidi/classgen/loader"
	"github.com/dhamidi/classgen/recipe"
	"github.com/spf13/cobra"
)

func newEmitCmd() *cobra.Command {
	var outDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "emit <recipe.toml>...",
		Short: "Build class files from recipes",
		Long: `Build one class file per recipe. Each class is written to
<dir>/<internal name>.class after it has been read back and checked.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ld := loader.New()
			for _, path := range args {
				rec, err := recipe.Load(path)
				if err != nil {
					return err
				}
				class, err := rec.Build()
				if err != nil {
					return err
				}
				data, err := class.Bytes()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if _, err := ld.Define(class.Name(), data, &loader.Domain{CodeSource: path}); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			for _, name := range ld.Names() {
				c, err := ld.FindClass(name)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				target := filepath.Join(outDir, filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))+".class")
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", c.Domain.CodeSource, target, len(c.Bytes))
					continue
				}
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				if err := os.WriteFile(target, c.Bytes, 0o644); err != nil {
					return fmt.Errorf("write class file: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to write class files to")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "check recipes without writing files")

	return cmd
}
