package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/search"
)

//go:embed assets/index.html
var assets embed.FS

var indexTemplate = template.Must(template.ParseFS(assets, "assets/index.html"))

type indexData struct {
	Title     string
	Frame     template.HTML
	Analysis  template.HTML
	Objective string
	Spacing   layout.Spacing
	Field     search.Field
	Query     string
	Width     int
	Height    int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Title: s.title}
	err := s.withSession(func(sess *explorer.Session) error {
		o := s.renderOptions(sess, !sess.Animated())
		data.Spacing = sess.Spacing()
		data.Field = sess.Query().Field
		data.Query = sess.Query().Text
		data.Width, data.Height = o.Width, o.Height
		data.Objective = s.objective
		if !sess.Loaded() {
			return nil
		}
		doc, err := render.SVGString(sess.Frame(), o)
		if err != nil {
			return err
		}
		data.Frame = template.HTML(doc)
		data.Analysis, err = RenderMarkdown(s.analysis)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
