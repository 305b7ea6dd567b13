package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vibetex/internal/store"
	"vibetex/internal/system"
)

// templatesCmd lists templates or prints one
var templatesCmd = &cobra.Command{
	Use:   "templates [name]",
	Short: "List document templates, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTemplates,
}

// toolsCmd lists the tools available with the current config
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the generation tools available with the current config",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	lib, err := store.NewTemplateLibrary(cfg.Templates.Dir)
	if err != nil {
		return err
	}
	defer lib.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		content, err := lib.Get(args[0])
		if err != nil {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(lib.Names(), ", "))
		}
		fmt.Fprintln(out, content)
		return nil
	}

	fmt.Fprintf(out, "Templates in %s:\n", lib.Dir())
	for _, name := range lib.Names() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg.Templates.Watch = false
	cfg.Store.DatabasePath = ""
	rt, err := system.Boot(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tDESCRIPTION")
	for _, spec := range rt.Registry.Specs() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, spec.Category, spec.Description)
	}
	return w.Flush()
}
