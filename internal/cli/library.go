package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"jordanella.com/screen-mapper/internal/library"
)

func newNewCmd() *cobra.Command {
	var region string
	var outputDirectory string
	var force bool

	cmd := &cobra.Command{
		Use:   "new <library.go>",
		Short: "Create an empty library",
		Example: `  # Library for a 800x600 window at the top left of the screen
  screenmapper new libs/hud.go --region 0,0,800,600 --output captures`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to replace it)", path)
				}
			}

			box, err := parseRegion(region)
			if err != nil {
				return err
			}
			lib, err := library.New(path, box, outputDirectory)
			if err != nil {
				return err
			}
			if err := library.Save(lib); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (type %s)\n", path, library.TypeName(path))
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Capture region x,y,width,height (default whole screen)")
	cmd.Flags().StringVar(&outputDirectory, "output", "captures", "Directory for session folders")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file")

	return cmd
}

func newAddCmd() *cobra.Command {
	var name, kind, box, templateImage string

	cmd := &cobra.Command{
		Use:   "add <library.go>",
		Short: "Add a rule to a library",
		Example: `  screenmapper add libs/hud.go --name score --kind number --box 600,10,120,32
  screenmapper add libs/hud.go --name coin --kind template_match --box 0,0,800,600 --template assets/coin.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := library.ParseKind(kind)
			if err != nil {
				return err
			}
			b, err := library.ParseBox(box)
			if err != nil {
				return err
			}

			return editLibrary(args[0], cmd.OutOrStdout(), func(lib *library.Library) (string, error) {
				rule := library.BoxFunction{Name: name, Kind: k, Box: b, TemplateImage: templateImage}
				if err := lib.Add(rule); err != nil {
					return "", err
				}
				return fmt.Sprintf("Added %s", name), nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Rule name, a Go identifier (required)")
	cmd.Flags().StringVar(&kind, "kind", "text", "text, number or template_match")
	cmd.Flags().StringVar(&box, "box", "", "Box x,y,width,height in frame coordinates (required)")
	cmd.Flags().StringVar(&templateImage, "template", "", "Template image for template_match")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("box")

	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <library.go> <rule>...",
		Short: "Remove rules from a library",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLibrary(args[0], cmd.OutOrStdout(), func(lib *library.Library) (string, error) {
				for _, name := range args[1:] {
					if !lib.Remove(name) {
						return "", fmt.Errorf("no rule named %q", name)
					}
				}
				return fmt.Sprintf("Removed %d rule(s)", len(args)-1), nil
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <library.go> <old> <new>",
		Short: "Rename a rule",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLibrary(args[0], cmd.OutOrStdout(), func(lib *library.Library) (string, error) {
				if err := lib.Rename(args[1], args[2]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Renamed %s to %s", args[1], args[2]), nil
			})
		},
	}
}

// editLibrary loads path, applies edit and saves the result. Nothing is
// written when edit fails.
func editLibrary(path string, out io.Writer, edit func(*library.Library) (string, error)) error {
	lib, err := library.Load(path)
	if err != nil {
		return err
	}
	message, err := edit(lib)
	if err != nil {
		return err
	}
	if err := library.Save(lib); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%d rules in %s)\n", message, lib.Len(), filepath.Base(path))
	return nil
}

// printLibrary writes a readable summary of lib
func printLibrary(out io.Writer, lib *library.Library) {
	fmt.Fprintf(out, "Library:  %s\n", lib.DestinationPath)
	fmt.Fprintf(out, "Type:     %s\n", library.TypeName(lib.DestinationPath))
	if lib.CaptureRegion != nil {
		fmt.Fprintf(out, "Region:   %s\n", lib.CaptureRegion)
	} else {
		fmt.Fprintln(out, "Region:   whole screen")
	}
	fmt.Fprintf(out, "Output:   %s\n", lib.OutputDirectory)
	fmt.Fprintf(out, "Rules:    %d\n", lib.Len())

	for _, rule := range lib.Rules() {
		fmt.Fprintf(out, "  %-16s %-15s %s", rule.Name, rule.Kind, rule.Box)
		if rule.TemplateImage != "" {
			fmt.Fprintf(out, "  %s", rule.TemplateImage)
			if _, err := os.Stat(rule.TemplateImage); errors.Is(err, os.ErrNotExist) {
				fmt.Fprint(out, " (missing)")
			}
		}
		fmt.Fprintln(out)
	}
}

func parseRegion(text string) (*library.Box, error) {
	if text == "" {
		return nil, nil
	}
	box, err := library.ParseBox(text)
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	return &box, nil
}
