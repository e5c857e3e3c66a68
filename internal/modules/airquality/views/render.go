package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"strconv"

	"airquality-server/internal/modules/airquality/types"
)

//go:embed templates/*.html
var viewsFS embed.FS

var dashboardTmpl *template.Template

var funcs = template.FuncMap{
	"num": formatFloat,
	"opt": formatOptional,
}

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("views").Funcs(funcs).ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type DashboardData struct {
	Stats types.Stats
	// Sample holds the first measurements in id order.
	Sample []types.Entry
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatFloat(*v)
}
