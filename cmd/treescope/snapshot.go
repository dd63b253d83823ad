package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/search"
)

func snapshotCmd(a *app) *cobra.Command {
	var (
		output      string
		scanDir     string
		query       string
		field       string
		collapseAll bool
		horizontal  float64
		vertical    float64
		zoom        float64
		width       int
		height      int
	)
	cmd := &cobra.Command{
		Use:   "snapshot [payload] -o out.png|out.svg",
		Short: "Render the laid out tree to a PNG or SVG file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			if cmd.Flags().Changed("horizontal") {
				a.cfg.Layout.Horizontal = horizontal
			}
			if cmd.Flags().Changed("vertical") {
				a.cfg.Layout.Vertical = vertical
			}
			if err := a.cfg.Layout.Validate(); err != nil {
				return err
			}
			if width > 0 {
				a.cfg.View.Width = width
			}
			if height > 0 {
				a.cfg.View.Height = height
			}

			src, err := a.resolveSource(args, scanDir)
			if err != nil {
				return err
			}
			data, err := src.read(cmd.Context())
			if err != nil {
				return err
			}

			sess := explorer.New(a.cfg.SessionOptions())
			pass, err := sess.Load(data)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			if collapseAll {
				if pass, err = sess.Dispatch(explorer.CollapseAll{}); err != nil {
					return err
				}
			}
			if query != "" {
				f := a.cfg.SearchField()
				if field != "" {
					if f, err = search.ParseField(field); err != nil {
						return err
					}
				}
				q := search.Query{Text: query, Field: f, AttributeKey: a.cfg.Search.AttributeKey}
				if pass, err = sess.Dispatch(explorer.QueryChanged{Query: q}); err != nil {
					return err
				}
				info.Fprintf(cmd.OutOrStdout(), "%d matches for %q\n", pass.Matches, query)
			}
			if zoom > 0 && zoom != 1 {
				if _, err = sess.Dispatch(explorer.ZoomRequested{Factor: zoom}); err != nil {
					return err
				}
			}

			opts := sess.RenderOptions()
			opts.Title = sess.Tree().Node(sess.Tree().Root()).Name
			if err := render.Save(output, sess.Frame(), opts); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d visible of %d nodes)\n",
				output, len(sess.Visible()), sess.Tree().Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; the extension picks PNG or SVG")
	cmd.Flags().StringVar(&scanDir, "scan", "", "build the tree from this directory")
	cmd.Flags().StringVarP(&query, "query", "q", "", "only show nodes matching this text and their ancestors")
	cmd.Flags().StringVar(&field, "field", "", "field searched by --query: name or attribute")
	cmd.Flags().BoolVar(&collapseAll, "collapse-all", false, "collapse everything below the root")
	cmd.Flags().Float64Var(&horizontal, "horizontal", 0, "distance between depth levels")
	cmd.Flags().Float64Var(&vertical, "vertical", 0, "distance between siblings")
	cmd.Flags().Float64Var(&zoom, "zoom", 1, "zoom factor around the center of the surface")
	cmd.Flags().IntVar(&width, "width", 0, "surface width")
	cmd.Flags().IntVar(&height, "height", 0, "surface height")
	return cmd
}
