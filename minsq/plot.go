package main

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"bitbucket.org/Davydov/minsq/optimize"
)

var (
	plotLineColor = color.RGBA{R: 37, G: 150, B: 190, A: 255}
	plotH         = 4 * vg.Inch
	plotW         = 6 * vg.Inch
)

// plotTrajectory saves the score after every accepted move. The image
// format is given by the file extension.
func plotTrajectory(steps []optimize.Step, fn string) error {
	if len(steps) == 0 {
		return errors.New("empty trajectory")
	}
	p := plot.New()
	p.Title.Text = "Search trajectory"
	p.X.Label.Text = "Accepted moves"
	p.Y.Label.Text = "Weighted squared error"

	pts := make(plotter.XYs, len(steps))
	for i, st := range steps {
		pts[i].X = float64(st.Iteration)
		pts[i].Y = st.Score
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = plotLineColor
	points.Color = plotLineColor
	points.Shape = draw.CircleGlyph{}
	points.Radius = vg.Points(2)
	p.Add(line, points)
	return p.Save(plotW, plotH, fn)
}
