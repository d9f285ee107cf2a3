package web

import (
	"html/template"

	"github.com/book-expert/sentence-clips-service/internal/core"
)

// formData feeds the input page. Clips is non-nil only after a preview.
type formData struct {
	Error       string
	Text        string
	Voice       string
	Rate        string
	Volume      string
	ShowPlayers bool
	Loop        bool
	Clips       []core.Clip
}

// resultsData feeds the page shown after a successful run.
type resultsData struct {
	RunID       string
	ArchiveName string
	ArchiveSize string
	ShowPlayers bool
	Loop        bool
	Players     []playerView
}

// playerView is one sentence's entry on the results page. DataURI is empty
// when the clip could not be read back; Warning then explains the gap.
type playerView struct {
	Index    int
	Sentence string
	FileName string
	DataURI  template.URL
	Warning  string
}

const indexTemplateText = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sentence Clips</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 46rem; padding: 0 1rem; }
textarea { width: 100%; min-height: 12rem; }
.error { background: #fdd; border: 1px solid #c00; padding: 0.5rem 1rem; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
</style>
</head>
<body>
<h1>Sentence Clips</h1>
<p>Paste English text or upload a .txt file. Every sentence becomes one MP3 clip, delivered together as a ZIP archive.</p>
{{if .Error}}<div class="error"><p>{{.Error}}</p></div>{{end}}
<form method="post" action="/generate" enctype="multipart/form-data">
<p><textarea name="text" placeholder="Paste text here.">{{.Text}}</textarea></p>
<p><label>Or upload: <input type="file" name="file" accept=".txt"></label></p>
<p>
<label>Voice <input type="text" name="voice" value="{{.Voice}}"></label>
<label>Rate <input type="text" name="rate" value="{{.Rate}}" size="6"></label>
<label>Volume <input type="text" name="volume" value="{{.Volume}}" size="6"></label>
</p>
<p>
<label><input type="checkbox" name="players"{{if .ShowPlayers}} checked{{end}}> Show audio players after generating</label>
<label><input type="checkbox" name="loop"{{if .Loop}} checked{{end}}> Loop playback</label>
</p>
<p>
<button type="submit" formaction="/preview">Preview file names</button>
<button type="submit">Generate clips</button>
</p>
</form>
{{if .Clips}}
<h2>Preview</h2>
<table>
<tr><th>#</th><th>Sentence</th><th>File name</th></tr>
{{range .Clips}}<tr><td>{{printf "%03d" .Index}}</td><td>{{.Sentence}}</td><td>{{.FileName}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`

const resultsTemplateText = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sentence Clips</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 46rem; padding: 0 1rem; }
.clip { border-bottom: 1px solid #eee; margin-bottom: 1rem; padding-bottom: 1rem; }
.warning { color: #a60; }
</style>
</head>
<body>
<h1>Your clips are ready</h1>
<p><a href="/runs/{{.RunID}}/archive" download>Download {{.ArchiveName}}</a> ({{.ArchiveSize}})</p>
<p><a href="/">Start over</a></p>
{{if .ShowPlayers}}<h2>Listen</h2>
{{range .Players}}<div class="clip">
<p><strong>{{printf "%03d" .Index}}</strong> {{.Sentence}}<br><small>{{.FileName}}</small></p>
{{if .Warning}}<p class="warning">{{.Warning}}</p>
{{else}}<audio controls{{if $.Loop}} loop{{end}} src="{{.DataURI}}"></audio>
{{end}}</div>
{{end}}{{end}}</body>
</html>
`

var (
	indexTemplate   = template.Must(template.New("index").Parse(indexTemplateText))
	resultsTemplate = template.Must(template.New("results").Parse(resultsTemplateText))
)
