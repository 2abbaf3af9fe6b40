package server

import "html/template"

var (
	homeTmpl         = template.Must(template.New("home").Parse(homeHTML))
	loginSuccessTmpl = template.Must(template.New("login_success").Parse(loginSuccessHTML))
	loginErrorTmpl   = template.Must(template.New("login_error").Parse(loginErrorHTML))
	selectTmpl       = template.Must(template.New("select").Parse(selectHTML))
	finishedTmpl     = template.Must(template.New("finished").Parse(finishedHTML))
)

const pageStyle = `
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; min-height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); max-width: 36rem; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; }
        a.button, button { background: #1DB954; color: white; border: none; padding: 0.6rem 1.4rem;
                           border-radius: 999px; text-decoration: none; font-size: 1rem; cursor: pointer; }
        input[type=email], input[type=text] { padding: 0.5rem; border: 1px solid #ccc;
                                              border-radius: 4px; width: 80%; margin-bottom: 1rem; }
        ul { list-style: none; padding: 0; text-align: left; }
        li { margin: 0.25rem 0; }
        h2 { font-size: 1rem; color: #333; text-align: left; }
    </style>
`

const homeHTML = `<!DOCTYPE html>
<html>
<head><title>Discover Weekly Albums</title>` + pageStyle + `</head>
<body>
    <div class="container">
        <h1>Discover Weekly Albums</h1>
        <p>Rebuilds a playlist with the full albums behind your Discover Weekly tracks.</p>
{{if .Authorized}}
        <p>Signed in as <strong>{{.Email}}</strong>.</p>
        <a class="button" href="/run">Rebuild my playlist</a>
{{else}}
        <form method="post" action="/login">
            <input type="email" name="email" placeholder="you@example.com" value="{{.Email}}" required>
            <br>
            <button type="submit">Connect Spotify</button>
        </form>
{{end}}
    </div>
</body>
</html>
`

const loginSuccessHTML = `<!DOCTYPE html>
<html>
<head><title>Connected</title>` + pageStyle + `</head>
<body>
    <div class="container">
        <h1>✓ Connected</h1>
        <p>Your Spotify account is linked.</p>
        <a class="button" href="/run">Rebuild my playlist</a>
    </div>
</body>
</html>
`

const loginErrorHTML = `<!DOCTYPE html>
<html>
<head><title>Something went wrong</title>` + pageStyle + `</head>
<body>
    <div class="container">
        <h1 style="color:#d33">✗ Something went wrong</h1>
        <p>{{.Reason}}</p>
        <a class="button" href="/">Start over</a>
    </div>
</body>
</html>
`

const selectHTML = `<!DOCTYPE html>
<html>
<head><title>Pick a source playlist</title>` + pageStyle + `</head>
<body>
    <div class="container">
        <h1>Pick a source playlist</h1>
        <p>More than one playlist matched, or none did. Choose the one to read from.</p>
        <form method="post" action="/run/manual-selection">
{{range .Groups}}
            <h2>{{.Owner}}</h2>
            <ul>
{{range .Playlists}}
                <li><label><input type="radio" name="playlist" value="{{.ID}}"> {{.Name}} ({{.TrackCount}} tracks)</label></li>
{{end}}
            </ul>
{{end}}
            <p>… or paste a playlist link:</p>
            <input type="text" name="address" placeholder="https://open.spotify.com/playlist/…">
            <br>
            <button type="submit">Use this playlist</button>
        </form>
    </div>
</body>
</html>
`

const finishedHTML = `<!DOCTYPE html>
<html>
<head><title>Done</title>` + pageStyle + `</head>
<body>
    <div class="container">
        <h1>✓ Done</h1>
        <p><strong>{{.Playlist}}</strong> now holds {{.Tracks}} tracks from {{.Albums}} albums.</p>
        <a class="button" href="/run">Run again</a>
    </div>
</body>
</html>
`
