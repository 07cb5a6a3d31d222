package cli

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/spf13/cobra"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/cv"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/pkg/templates"
)

func newEvalCmd(opts *rootOptions) *cobra.Command {
	var rules []string
	var crop bool
	var annotate string

	cmd := &cobra.Command{
		Use:   "eval <library.go> <frame>",
		Short: "Evaluate a library's rules on one saved frame",
		Long: `Eval loads a frame image and evaluates the library's rules on it, printing
one line per rule. Frames saved by a session are already cropped to the
capture region; use --crop for full screenshots.

Template rules without a match also print the best score found. With
--annotate, a copy of the frame is written with every rule's box outlined:
green when the rule succeeded, red when it failed, and blue around each
template match.

The command fails when any rule fails.`,
		Example: `  screenmapper eval libs/hud.go "captures/03 05_10:00:00/03 05_10_00_04.png"
  screenmapper eval libs/hud.go screenshot.png --crop --rule score --rule gold
  screenmapper eval libs/hud.go frame.png --annotate frame-boxes.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library.Load(args[0])
			if err != nil {
				return err
			}
			selected, err := selectRules(lib, rules)
			if err != nil {
				return err
			}

			frame, err := cv.LoadImage(args[1])
			if err != nil {
				return err
			}
			if crop && lib.CaptureRegion != nil {
				region := lib.CaptureRegion.Rectangle()
				if !region.In(frame.Bounds()) {
					return fmt.Errorf("capture region %s does not fit the %dx%d frame",
						lib.CaptureRegion, frame.Bounds().Dx(), frame.Bounds().Dy())
				}
				frame = cv.CropRegion(frame, region)
			}

			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			engine, err := newEngine(env)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			results := capture.NewLibraryAnalyzer(engine, selected).Analyze(ctx, frame)

			out := cmd.OutOrStdout()
			failed := 0
			for i, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(out, "%-16s error: %v\n", res.Name, res.Err)
					continue
				}
				fmt.Fprintf(out, "%-16s %s\n", res.Name, res.Value)

				rule := selected[i]
				if rule.Kind == library.KindTemplateMatch && len(res.Value.Matches) == 0 {
					best, err := engine.BestMatch(frame, rule.Box, rule.TemplateImage)
					if err == nil {
						fmt.Fprintf(out, "%-16s best %.2f at (%d, %d)\n", "",
							best.Confidence, best.Location.X, best.Location.Y)
					}
				}
			}

			if annotate != "" {
				annotated := annotateFrame(frame, selected, results, engine.Templates())
				if err := cv.SavePNG(annotated, annotate); err != nil {
					return err
				}
				fmt.Fprintf(out, "Annotated frame written to %s\n", annotate)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d rules failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&rules, "rule", nil, "Evaluate only this rule (repeatable)")
	cmd.Flags().BoolVar(&crop, "crop", false, "Crop the frame to the library's capture region first")
	cmd.Flags().StringVar(&annotate, "annotate", "", "Write a PNG copy of the frame with rule boxes outlined")

	return cmd
}

var (
	boxOK     = color.RGBA{0, 200, 0, 255}
	boxFailed = color.RGBA{230, 0, 0, 255}
	matchBox  = color.RGBA{0, 90, 255, 255}
)

// annotateFrame outlines each rule's box coloured by its result, and each
// template match at the template's size
func annotateFrame(frame *image.RGBA, rules []library.BoxFunction, results []capture.RuleResult, cache *templates.ImageCache) *image.RGBA {
	origin := frame.Bounds().Min
	var ok, failed, matches []image.Rectangle

	for i, res := range results {
		box := rules[i].Box.Rectangle().Add(origin)
		if res.Err != nil {
			failed = append(failed, box)
			continue
		}
		ok = append(ok, box)

		if len(res.Value.Matches) == 0 {
			continue
		}
		needle, err := cache.Get(rules[i].TemplateImage)
		if err != nil {
			continue
		}
		size := needle.Bounds().Size()
		for _, p := range res.Value.Matches {
			matches = append(matches, image.Rectangle{Min: p, Max: p.Add(size)}.Add(origin))
		}
	}

	annotated := cv.Annotate(frame, matches, matchBox)
	annotated = cv.Annotate(annotated, ok, boxOK)
	return cv.Annotate(annotated, failed, boxFailed)
}

// selectRules returns the named rules in library order, or all rules when
// names is empty
func selectRules(lib *library.Library, names []string) ([]library.BoxFunction, error) {
	if len(names) == 0 {
		return lib.Rules(), nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := lib.Rule(name); !ok {
			return nil, fmt.Errorf("no rule named %q", name)
		}
		want[name] = true
	}

	var selected []library.BoxFunction
	for _, rule := range lib.Rules() {
		if want[rule.Name] {
			selected = append(selected, rule)
		}
	}
	return selected, nil
}
