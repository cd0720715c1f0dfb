// Package mapview draws the venue map as an SVG document: one rectangle
// per area filled with its occupancy colour, name and visitor labels,
// street labels around the grounds and an optional legend.
package mapview

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"strconv"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/occupancy"
)

// Stroke and text colours.
const (
	StrokeColor         = "#667080"
	SelectedStrokeColor = "#000"
	TextColor           = "#1e293b"
	LabelColor          = "#0f172a"
	FillOpacity         = 0.7
	legendHeight        = 40
)

// Label is a free text placed on the map, such as a street name.
type Label struct {
	Text   string
	X, Y   float64
	Rotate float64 // degrees around (X, Y)
}

// Options controls a render.  Zero Width or Height fall back to 1200x800.
type Options struct {
	Width, Height int
	SelectedID    uint64
	SelectURL     string
	Labels        []Label
	Legend        bool
}

// StreetLabels are the roads around the exhibition grounds.
func StreetLabels() []Label {
	return []Label{
		{Text: "Paul Henri Spaak Straße", X: 600, Y: 30},
		{Text: "Willy-Brandt-Allee", X: 600, Y: 770},
		{Text: "Olof-Palme-Straße", X: 120, Y: 400, Rotate: 90},
		{Text: "Am Messesee", X: 1080, Y: 400, Rotate: 270},
	}
}

// LegendEntries pairs each level shown in the legend with its caption.
var LegendEntries = []struct {
	Level   occupancy.Level
	Caption string
}{
	{occupancy.LevelLow, "Niedriger Besucherandrang"},
	{occupancy.LevelMedium, "Mittlerer Besucherandrang"},
	{occupancy.LevelHigh, "Hoher Besucherandrang"},
}

type areaView struct {
	ID          uint64
	Name        string
	X, Y, W, H  int
	Fill        string
	Stroke      string
	StrokeWidth int
	Opacity     float64
	CX, CY, CY2 float64
	Visitors    int
	Level       occupancy.Level
	Href        string
	Data        string
}

type labelView struct {
	Label
	Transform string
}

type legendView struct {
	X, Y    int
	Color   string
	Caption string
}

type svgView struct {
	Width, Height int
	ViewHeight    int
	Areas         []areaView
	Labels        []labelView
	LabelColor    string
	TextColor     string
	Legend        []legendView
}

var svgTmpl = template.Must(template.New("map").Parse(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 {{.Width}} {{.ViewHeight}}" width="100%" role="img">
{{- range .Areas}}
<a href="{{.Href}}">
<g class="area level-{{.Level}}" data-id="{{.ID}}" data-area="{{.Data}}">
<rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" fill="{{.Fill}}" fill-opacity="{{.Opacity}}" stroke="{{.Stroke}}" stroke-width="{{.StrokeWidth}}"/>
<text x="{{.CX}}" y="{{.CY}}" text-anchor="middle" dominant-baseline="middle" fill="{{$.TextColor}}" font-weight="bold" font-size="14">{{.Name}}</text>
<text x="{{.CX}}" y="{{.CY2}}" text-anchor="middle" dominant-baseline="middle" fill="{{$.TextColor}}" font-size="12">{{.Visitors}}</text>
</g>
</a>
{{- end}}
{{- range .Labels}}
<text x="{{.X}}" y="{{.Y}}" text-anchor="middle" fill="{{$.LabelColor}}" font-weight="bold" font-size="16"{{if .Transform}} transform="{{.Transform}}"{{end}}>{{.Text}}</text>
{{- end}}
{{- range .Legend}}
<g class="legend">
<rect x="{{.X}}" y="{{.Y}}" width="16" height="16" rx="3" fill="{{.Color}}"/>
<text x="{{.CaptionX}}" y="{{.CaptionY}}" dominant-baseline="middle" fill="{{$.TextColor}}" font-size="14">{{.Caption}}</text>
</g>
{{- end}}
</svg>
`))

// CaptionX is the x position of the legend caption.
func (l legendView) CaptionX() int { return l.X + 24 }

// CaptionY is the y position of the legend caption.
func (l legendView) CaptionY() int { return l.Y + 8 }

// Render writes the SVG document for areas.  Every area is classified
// against its own thresholds; the selected area gets a heavier stroke.
func Render(w io.Writer, areas []model.AreaStatus, opts Options) error {
	v := svgView{
		Width:      opts.Width,
		Height:     opts.Height,
		LabelColor: LabelColor,
		TextColor:  TextColor,
	}
	if v.Width <= 0 {
		v.Width = 1200
	}
	if v.Height <= 0 {
		v.Height = 800
	}
	v.ViewHeight = v.Height

	for _, a := range areas {
		av, err := newAreaView(a, opts)
		if err != nil {
			return err
		}
		v.Areas = append(v.Areas, av)
	}
	for _, l := range opts.Labels {
		lv := labelView{Label: l}
		if l.Rotate != 0 {
			lv.Transform = "rotate(" + ftoa(l.Rotate) + "," + ftoa(l.X) + "," + ftoa(l.Y) + ")"
		}
		v.Labels = append(v.Labels, lv)
	}
	if opts.Legend {
		v.ViewHeight += legendHeight
		step := v.Width / (len(LegendEntries) + 1)
		for i, e := range LegendEntries {
			v.Legend = append(v.Legend, legendView{
				X:       step*(i+1) - 90,
				Y:       v.Height + 12,
				Color:   occupancy.LevelColor(e.Level),
				Caption: e.Caption,
			})
		}
	}
	return svgTmpl.Execute(w, v)
}

// RenderString is Render into a string.
func RenderString(areas []model.AreaStatus, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, areas, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newAreaView(a model.AreaStatus, opts Options) (areaView, error) {
	res := occupancy.Evaluate(a)
	data, err := json.Marshal(a)
	if err != nil {
		return areaView{}, err
	}
	av := areaView{
		ID:          a.ID,
		Name:        a.Name,
		X:           a.X,
		Y:           a.Y,
		W:           a.Width,
		H:           a.Height,
		Fill:        res.Color,
		Stroke:      StrokeColor,
		StrokeWidth: 1,
		Opacity:     FillOpacity,
		CX:          float64(a.X) + float64(a.Width)/2,
		CY:          float64(a.Y) + float64(a.Height)/2,
		Visitors:    a.Visitors,
		Level:       res.Level,
		Href:        opts.SelectURL + strconv.FormatUint(a.ID, 10),
		Data:        string(data),
	}
	av.CY2 = av.CY + 20
	if opts.SelectedID != 0 && a.ID == opts.SelectedID {
		av.Stroke = SelectedStrokeColor
		av.StrokeWidth = 2
	}
	return av, nil
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
