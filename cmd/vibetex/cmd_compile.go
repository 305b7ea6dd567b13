package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vibetex/internal/compile"
	"vibetex/internal/tactile"
)

var (
	compileHTML bool
	compileOut  string
)

// compileCmd compiles a .tex file with the local toolchain
var compileCmd = &cobra.Command{
	Use:   "compile [file.tex]",
	Short: "Compile a .tex file to PDF (or HTML with --html)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().BoolVar(&compileHTML, "html", false, "Convert to HTML instead of PDF")
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Output path (default: next to the input)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	src := args[0]
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	c := compile.New(tactile.NewDirectExecutor(), compile.OptionsFromConfig(cfg))
	var (
		out []byte
		ext = ".pdf"
	)
	if compileHTML {
		ext = ".html"
		out, err = c.CompileHTML(ctx, src, data)
	} else {
		out, err = c.CompilePDF(ctx, src, data)
	}
	if err != nil {
		return err
	}

	dst := compileOut
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + ext
	}
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", dst, len(out))
	return nil
}
