package server

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/detail"
	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/loader"
	"github.com/vanderheijden86/treescope/pkg/metrics"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/search"
)

// Request body limits.
const (
	maxEventBytes  = 64 << 10
	maxUploadBytes = 256 << 20
)

var errNoBackend = errors.New("no analysis backend configured")

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("POST /api/event", s.handleEvent)
	mux.HandleFunc("GET /api/node/{id}", s.handleNode)
	mux.HandleFunc("GET /api/snapshot.svg", s.handleSnapshotSVG)
	mux.HandleFunc("GET /api/snapshot.png", s.handleSnapshotPNG)
	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("POST /api/load/example", s.handleExample)
	mux.HandleFunc("POST /api/load/upload", s.handleUpload)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/images", s.handleImages)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.Handle("GET /__events", s.hub)
	return noCacheMiddleware(mux)
}

// noCacheMiddleware adds headers to prevent browser caching.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	var (
		pe *hierarchy.ParseError
		se *loader.StatusError
		ue *url.Error
	)
	switch {
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, explorer.ErrBadEvent),
		errors.Is(err, explorer.ErrUnknownNode),
		errors.Is(err, explorer.ErrUnknownEvent),
		errors.Is(err, layout.ErrInvalidSpacing),
		errors.Is(err, search.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrNoTree),
		errors.Is(err, render.ErrNoFrame),
		errors.Is(err, loader.ErrStale):
		return http.StatusConflict
	case errors.Is(err, loader.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoBackend):
		return http.StatusServiceUnavailable
	case errors.As(err, &se), errors.As(err, &ue), errors.Is(err, loader.ErrMissingTree):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Printf("warning: %s %s: %v", r.Method, r.URL.Path, err)
	} else {
		debug.Log("server: %s %s: %d %v", r.Method, r.URL.Path, code, err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// setPassHeaders exposes the pass outcome next to the SVG body.
func setPassHeaders(w http.ResponseWriter, p *explorer.Pass) {
	h := w.Header()
	h.Set("X-Treescope-Event", p.Event)
	h.Set("X-Treescope-Seq", strconv.Itoa(p.Frame.Seq))
	h.Set("X-Treescope-Source", strconv.Itoa(int(p.Source)))
	h.Set("X-Treescope-Animated", strconv.FormatBool(p.Animated))
	h.Set("X-Treescope-Scale", strconv.FormatFloat(p.Transform.Scale, 'f', -1, 64))
	if p.Event == "query" || p.Event == "load" {
		h.Set("X-Treescope-Matches", strconv.Itoa(p.Matches))
	}
	if p.Detail != nil {
		h.Set("X-Treescope-Selected", strconv.Itoa(int(p.Detail.ID)))
	}
}

func writeSVG(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "image/svg+xml")
	io.WriteString(w, doc)
}

// renderOptions must be called with the session locked.
func (s *Server) renderOptions(sess *explorer.Session, static bool) render.Options {
	o := sess.RenderOptions()
	o.Title = s.title
	o.Static = static
	return o
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	forceStatic := r.URL.Query().Get("static") == "1"
	var doc string
	err := s.withSession(func(sess *explorer.Session) error {
		var err error
		static := forceStatic || !sess.Animated()
		doc, err = render.SVGString(sess.Frame(), s.renderOptions(sess, static))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSVG(w, doc)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := loader.ReadPayload(r.Body, loader.ReadOptions{MaxSize: maxEventBytes})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := explorer.DecodeEvent(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		pass *explorer.Pass
		doc  string
	)
	err = s.withSession(func(sess *explorer.Session) error {
		p, err := sess.Dispatch(ev)
		if err != nil {
			return err
		}
		pass = p
		// Pan and zoom redraw the previous frame; replaying its
		// transition would undo the collapse the user already saw.
		doc, err = render.SVGString(p.Frame, s.renderOptions(sess, !p.Animated))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setPassHeaders(w, pass)
	writeSVG(w, doc)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, explorer.ErrUnknownNode)
		return
	}
	var resp struct {
		ID     hierarchy.ID   `json:"id"`
		Path   string         `json:"path"`
		Fields []detail.Field `json:"fields"`
		HTML   template.HTML  `json:"html"`
	}
	err = s.withSession(func(sess *explorer.Session) error {
		panel, err := sess.Detail(hierarchy.ID(id))
		if err != nil {
			return err
		}
		i, _ := sess.Tree().Lookup(panel.ID)
		resp.ID, resp.Path, resp.Fields = panel.ID, sess.Tree().Path(i), panel.Fields
		resp.HTML, err = RenderMarkdown(panel.Markdown())
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshotSVG(w http.ResponseWriter, r *http.Request) {
	var doc string
	err := s.withSession(func(sess *explorer.Session) error {
		var err error
		doc, err = render.SVGString(sess.Frame(), s.renderOptions(sess, true))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="treescope.svg"`)
	writeSVG(w, doc)
}

func (s *Server) handleSnapshotPNG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := s.withSession(func(sess *explorer.Session) error {
		return render.WritePNG(&buf, sess.Frame(), s.renderOptions(sess, true))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="treescope.png"`)
	buf.WriteTo(w)
}

type loadResult struct {
	Nodes   int          `json:"nodes"`
	FirstID hierarchy.ID `json:"first_id"`
	MaxID   hierarchy.ID `json:"max_id"`
}

func (s *Server) result() loadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.session.Tree()
	return loadResult{Nodes: t.Len(), FirstID: t.Node(t.Root()).ID, MaxID: t.MaxID()}
}

// handleLoad installs a payload posted as the request body.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	data, err := loader.ReadPayload(r.Body, loader.ReadOptions{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.seq.Next()
	if err := s.Load(data); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.result())
}

// apply installs a backend response unless a newer request started since
// tok was taken.
func (s *Server) apply(tok loader.Token, resp *loader.Response) error {
	s.mu.Lock()
	if err := s.seq.Check(tok); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, err := s.session.Load(resp.Tree); err != nil {
		s.mu.Unlock()
		return err
	}
	s.analysis = resp.Analysis
	if resp.Objective != "" {
		s.objective = resp.Objective
	}
	s.mu.Unlock()

	s.hub.Broadcast(EventFrame)
	s.hub.Broadcast(EventAnalysis)
	return nil
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		s.fail(w, r, errNoBackend)
		return
	}
	tok := s.seq.Next()
	resp, err := s.backend.Example(r.Context())
	if err == nil {
		err = s.apply(tok, resp)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.result())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		s.fail(w, r, errNoBackend)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file: " + err.Error()})
		return
	}
	defer file.Close()
	objective := r.FormValue("objective")

	tok := s.seq.Next()
	resp, err := s.backend.Upload(r.Context(), hdr.Filename, file, objective)
	if err == nil {
		if resp.Objective == "" {
			resp.Objective = objective
		}
		err = s.apply(tok, resp)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.result())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		s.fail(w, r, errNoBackend)
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	body, err := loader.ReadPayload(r.Body, loader.ReadOptions{MaxSize: maxEventBytes})
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected {\"question\": \"...\"}"})
		return
	}

	answer, err := s.backend.Ask(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	html, err := RenderMarkdown(answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": answer, "html": html})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		s.fail(w, r, errNoBackend)
		return
	}
	names, err := s.backend.Images(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	md, objective := s.analysis, s.objective
	s.mu.Unlock()

	html, err := RenderMarkdown(md)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if objective != "" {
		w.Header().Set("X-Treescope-Objective", url.QueryEscape(objective))
	}
	io.WriteString(w, string(html))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.AllTimingStats())
}
