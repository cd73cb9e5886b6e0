// Package ui serves pages from a store over HTTP, with the revision text
// rendered to HTML.
package ui

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/format"
	"github.com/dhamidi/wikidump/store"
	"github.com/dhamidi/wikidump/wikitext"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("wikidump.ui")

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"wikiPath": wikiPath,
}).Parse(`
{{define "index.html"}}<!DOCTYPE html>
<html>
<head><title>wikidump</title></head>
<body>
<form action="/" method="get">
<input type="text" name="title" placeholder="Page title" autofocus>
<button type="submit">Go</button>
</form>
</body>
</html>
{{end}}
{{define "page.html"}}<!DOCTYPE html>
<html>
<head><title>{{.Page.Title}}</title></head>
<body>
<h1>{{.Page.Title}}</h1>
<p class="meta">revision {{.Revision.ID}}{{if not .Revision.Timestamp.IsZero}} of {{.Revision.Timestamp.Format "2006-01-02 15:04"}}{{end}}{{with .Revision.Contributor}} by {{.Username}}{{end}}</p>
{{if .Redirect}}<p class="redirect">Redirect page</p>{{end}}
{{.Body}}
<ul class="history">
{{range .Page.Revisions}}<li><a href="{{wikiPath $.Page.Title}}?oldid={{.ID}}">{{.ID}}</a> {{.UnescapedComment}}</li>
{{end}}</ul>
</body>
</html>
{{end}}
`))

// Server answers
//
//	GET /wiki/{title}     the page with its revision rendered to HTML
//	GET /raw/{title}      the revision text as stored in the dump
//	GET /                 a search form; ?title= redirects to /wiki/
//
// The wiki and raw routes take ?oldid= to select a revision other than the
// last one. Requests for /wiki/ with Accept: application/json get the page
// in the json output format.
type Server struct {
	store store.Store
	conv  wikitext.Converter
	mux   *http.ServeMux
}

func NewServer(s store.Store, conv wikitext.Converter) *Server {
	if conv == nil {
		conv = wikitext.NewMarkup()
	}
	srv := &Server{
		store: s,
		conv:  conv,
		mux:   http.NewServeMux(),
	}

	srv.mux.HandleFunc("GET /wiki/{title...}", srv.handlePage)
	srv.mux.HandleFunc("GET /raw/{title...}", srv.handleRaw)
	srv.mux.HandleFunc("GET /{$}", srv.handleIndex)

	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debugf("%s %s", r.Method, r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.Errorf("render %s: %s", name, err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if title := strings.TrimSpace(r.URL.Query().Get("title")); title != "" {
		http.Redirect(w, r, wikiPath(title), http.StatusSeeOther)
		return
	}
	s.render(w, "index.html", nil)
}

type pageViewData struct {
	Page     *dump.Page
	Revision *dump.Revision
	Redirect bool
	Body     template.HTML
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, rev, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		if err := format.NewJSONEncoder(w).Encode(page); err != nil {
			log.Errorf("encode %q: %s", page.Title, err)
		}
		return
	}

	data := pageViewData{Page: page, Revision: rev, Redirect: page.Redirect}
	body, err := wikitext.Render(s.conv, rev, page.Title, wikitext.ModeHTML)
	switch {
	case errors.Is(err, wikitext.ErrNoText):
		data.Body = `<p class="notext">This revision has no text.</p>`
	case err != nil:
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	default:
		data.Body = template.HTML(body)
	}
	s.render(w, "page.html", data)
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	page, rev, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if rev.Text == nil {
		http.Error(w, fmt.Sprintf("revision %d of %q has no text", rev.ID, page.Title), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, *rev.Text)
}

// lookup resolves the title and revision of a request. It writes the error
// response itself and reports whether the caller should go on.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*dump.Page, *dump.Revision, bool) {
	title := r.PathValue("title")
	if title == "" {
		http.Error(w, "missing title", http.StatusBadRequest)
		return nil, nil, false
	}

	revID := dump.NoID
	if oldid := r.URL.Query().Get("oldid"); oldid != "" {
		id, err := strconv.ParseInt(oldid, 10, 64)
		if err != nil {
			http.Error(w, "invalid oldid: "+oldid, http.StatusBadRequest)
			return nil, nil, false
		}
		revID = id
	}

	page, err := s.store.Get(r.Context(), title)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "page not found", http.StatusNotFound)
		return nil, nil, false
	}
	if err != nil {
		log.Errorf("get %q: %s", title, err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return nil, nil, false
	}

	rev, err := page.FindRevision(revID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, nil, false
	}
	return page, rev, true
}

func wikiPath(title string) string {
	return "/wiki/" + url.PathEscape(dump.NormalizeTitle(title))
}
