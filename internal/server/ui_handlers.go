package server

import (
	"html/template"
	"log/slog"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>metaopt runs</title></head>
<body>
<h1>Runs</h1>
<table>
<tr><th>ID</th><th>State</th><th>Problem</th><th>Algorithm</th><th>Iterations</th><th>Best</th></tr>
{{range .}}<tr>
<td><a href="/api/v1/runs/{{.ID}}/status">{{.ID}}</a></td>
<td>{{.State}}</td>
<td>{{.Config.Problem.Name}}/{{.Config.Problem.Dimension}}</td>
<td>{{.Config.Algorithm}}</td>
<td>{{.Iterations}}/{{.Config.MaxIterations}}</td>
<td>{{if .Best}}{{.Best.Fitness}}{{end}}</td>
</tr>{{else}}<tr><td colspan="6">No runs yet</td></tr>{{end}}
</table>
</body>
</html>
`))

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := indexTemplate.Execute(w, s.jobManager.ListJobs()); err != nil {
		slog.Error("Failed to render index", "error", err)
	}
}
