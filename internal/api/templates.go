package api

import "html/template"

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Search</title></head>
<body>
<form method="post" action="/">
<input type="text" name="query" value="{{.Query}}" autofocus>
<button type="submit">Search</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
`

var (
	formTemplate = template.Must(template.New("form").Parse(pageHead + `</body>
</html>
`))

	resultsTemplate = template.Must(template.New("results").Parse(pageHead + `{{if .Results}}<table>
<thead><tr><th>URL</th><th>Total frequency</th></tr></thead>
<tbody>
{{range .Results}}<tr><td><a href="{{.URL}}">{{.URL}}</a></td><td>{{.TotalFrequency}}</td></tr>
{{end}}</tbody>
</table>
{{else}}<p>No documents match.</p>
{{end}}</body>
</html>
`))
)
