package mapview

import (
	"html/template"
	"io"
	"time"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/occupancy"
)

// Page is the data of the public map page.
type Page struct {
	Title          string
	RefreshSeconds int
	RefreshedAt    *time.Time
	Refreshing     bool
	Notice         string
	Selected       *model.AreaStatus
}

type pageView struct {
	Page
	Map     template.HTML
	Level   occupancy.Level
	Bands   []model.Threshold
	Updated string
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
<meta charset="utf-8">
{{- if gt .RefreshSeconds 0}}
<meta http-equiv="refresh" content="{{.RefreshSeconds}}">
{{- end}}
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f8fafc;color:#0f172a}
header{display:flex;justify-content:space-between;align-items:center;padding:12px 24px;background:#fff;border-bottom:1px solid #e2e8f0}
main{display:flex;gap:24px;padding:24px}
.map{flex:3;background:#fff;border-radius:8px;padding:8px}
aside{flex:1;background:#fff;border-radius:8px;padding:16px}
.busy{color:#64748b;font-style:italic}
.notice{background:#fee2e2;color:#991b1b;padding:8px 24px}
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<form method="post" action="/v1/map/refresh"><button type="submit">Aktualisieren</button></form>
<span class="status">{{if .Updated}}Stand: {{.Updated}}{{end}}{{if .Refreshing}} <span class="busy" aria-busy="true">Aktualisierung läuft…</span>{{end}}</span>
</header>
{{- if .Notice}}
<div class="notice" role="alert">{{.Notice}}</div>
{{- end}}
<main>
<div class="map">{{.Map}}</div>
<aside>
{{- with .Selected}}
<h2>{{.Name}}</h2>
<p>Besucher: {{.Visitors}}{{if gt .Capacity 0}} / {{.Capacity}}{{end}}</p>
<p>Auslastung: {{$.Level}}</p>
<ul>
{{- range $.Bands}}
<li><span style="color:{{.Color}}">&#9632;</span> bis {{.UpperBound}}</li>
{{- end}}
</ul>
{{- else}}
<p>Bereich auf der Karte auswählen.</p>
{{- end}}
</aside>
</main>
</body>
</html>
`))

// RenderPage writes the HTML page embedding the map.  The page reloads
// itself every RefreshSeconds.
func RenderPage(w io.Writer, areas []model.AreaStatus, p Page, opts Options) error {
	svg, err := RenderString(areas, opts)
	if err != nil {
		return err
	}
	v := pageView{Page: p, Map: template.HTML(svg)}
	if v.Title == "" {
		v.Title = "Besucherauslastung"
	}
	if p.RefreshedAt != nil {
		v.Updated = p.RefreshedAt.Local().Format("15:04:05")
	}
	if p.Selected != nil {
		v.Level = occupancy.Evaluate(*p.Selected).Level
		v.Bands = occupancy.Sorted(p.Selected.Thresholds)
	}
	return pageTmpl.Execute(w, v)
}
