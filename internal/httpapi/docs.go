package httpapi

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/swaggo/swag"
)

//go:embed static
var staticFS embed.FS

const swaggerDocPath = "static/swagger.json"

// apiDoc serves the embedded OpenAPI document through the swag registry.
type apiDoc struct {
	doc string
}

func (d apiDoc) ReadDoc() string {
	return d.doc
}

func init() {
	doc, err := staticFS.ReadFile(swaggerDocPath)
	if err != nil {
		panic(err)
	}
	swag.Register(swag.Name, apiDoc{doc: string(doc)})
}

// registerDocs mounts the Swagger UI under /api/ and the static assets under
// /static/. staticDir, when set, replaces the embedded assets.
func registerDocs(r chi.Router, staticDir string) {
	r.Get("/api", http.RedirectHandler("/api/index.html", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/api/*", httpSwagger.Handler(
		httpSwagger.URL("/api/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	var files http.FileSystem
	if staticDir != "" {
		files = http.Dir(staticDir)
	} else {
		sub, err := fs.Sub(staticFS, "static")
		if err != nil {
			panic(err)
		}
		files = http.FS(sub)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(files)))
}
