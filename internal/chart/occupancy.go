// Package chart renders the current snapshot as an interactive bar chart.
package chart

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/occupancy"
)

// Occupancy builds a bar chart with one bar per area, coloured like the
// area on the map, next to the area capacity.
func Occupancy(areas []model.AreaStatus) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Besucherauslastung",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Besucher pro Bereich",
			Subtitle: "aktueller Stand",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Besucher"}),
	)

	names := make([]string, 0, len(areas))
	visitors := make([]opts.BarData, 0, len(areas))
	capacity := make([]opts.BarData, 0, len(areas))
	for _, a := range areas {
		res := occupancy.Evaluate(a)
		names = append(names, a.Name)
		visitors = append(visitors, opts.BarData{
			Name:      a.Name,
			Value:     a.Visitors,
			ItemStyle: &opts.ItemStyle{Color: res.Color},
		})
		capacity = append(capacity, opts.BarData{
			Name:      a.Name,
			Value:     a.Capacity,
			ItemStyle: &opts.ItemStyle{Color: "#94a3b8"},
		})
	}
	bar.SetXAxis(names).
		AddSeries("Besucher", visitors).
		AddSeries("Kapazität", capacity)
	return bar
}

// RenderOccupancy writes the chart page for areas to w.
func RenderOccupancy(w io.Writer, areas []model.AreaStatus) error {
	return Occupancy(areas).Render(w)
}
