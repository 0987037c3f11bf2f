package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/spf13/cobra"

	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
	geoio "github.com/mattfenn/erfgen/pkg/io"
)

// previewCommand creates the preview command for rendering parcels as SVG.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		output string
		width  int
	)

	cmd := &cobra.Command{
		Use:   "preview [parcels.geojson]",
		Short: "Render a parcel collection as an SVG image",
		Long: `Render a generated parcel collection as a simple SVG map.

The preview is a plan view of the parcel outlines, scaled to the requested
pixel width. It is meant for a quick visual sanity check; use a GIS for real
inspection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = strings.TrimSuffix(args[0], ".geojson") + ".svg"
			}
			return c.runPreview(args[0], output, width)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output SVG file (default: input name with .svg)")
	cmd.Flags().IntVar(&width, "width", 800, "image width in pixels")

	return cmd
}

func (c *CLI) runPreview(input, output string, width int) error {
	coll, err := geoio.ImportParcels(input)
	if err != nil {
		return err
	}
	if len(coll.Parcels) == 0 {
		return errors.New(errors.ErrCodeInsufficientInput, "no parcels in %s", input)
	}

	sp := newSpinner("rendering preview")
	sp.Start()

	f, err := os.Create(output)
	if err != nil {
		sp.StopWithError(fmt.Sprintf("create %s: %v", output, err))
		return err
	}
	defer f.Close()

	if err := writeSVG(coll, f, width); err != nil {
		sp.StopWithError("render failed")
		return err
	}

	sp.StopWithSuccess(fmt.Sprintf("Rendered %d parcels", len(coll.Parcels)))
	printFile(output)
	return nil
}

const previewMargin = 10

// writeSVG draws the parcel outlines scaled to the given pixel width, with
// the y axis flipped into screen coordinates.
func writeSVG(coll feature.Collection, w io.Writer, width int) error {
	b := coll.Bound()
	spanX := b.Max[0] - b.Min[0]
	spanY := b.Max[1] - b.Min[1]
	if spanX <= 0 || spanY <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "degenerate parcel extent")
	}

	scale := float64(width-2*previewMargin) / spanX
	height := int(spanY*scale) + 2*previewMargin

	toPixel := func(x, y float64) (int, int) {
		px := previewMargin + int((x-b.Min[0])*scale)
		py := previewMargin + int((b.Max[1]-y)*scale)
		return px, py
	}

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white")

	for _, parcel := range coll.Parcels {
		for ri, ring := range parcel.Geometry {
			xs := make([]int, len(ring))
			ys := make([]int, len(ring))
			for i, pt := range ring {
				xs[i], ys[i] = toPixel(pt[0], pt[1])
			}
			style := "fill:#dbe9d8;stroke:#2f4f2f;stroke-width:1"
			if ri > 0 {
				style = "fill:white;stroke:#2f4f2f;stroke-width:1"
			}
			canvas.Polygon(xs, ys, style)
		}
	}

	canvas.End()
	return nil
}
