package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mattjoyce/crispbridge/internal/settings"
	"github.com/mattjoyce/crispbridge/internal/tokengate"
)

const maxFormBytes = 1 << 20

// handleSettings renders the settings page. GET loads from Crisp; POST
// rebuilds the form from the submission and applies the chosen action.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := s.deps.Settings.NewForm(tokengate.WebsiteID(ctx))

	if r.Method == http.MethodGet {
		form.Load(ctx)
		s.renderSettings(w, r, form)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form submission")
		return
	}
	form.Restore(ctx, r.PostForm)
	applyAction(ctx, form, r.PostForm.Get("action"))
	s.renderSettings(w, r, form)
}

// applyAction dispatches a submitted action: "save" (the default),
// "reload", "add:<key>" or "remove:<key>:<index>".
func applyAction(ctx context.Context, form *settings.Form, action string) {
	switch {
	case action == "reload":
		form.Reload(ctx)
	case strings.HasPrefix(action, "add:"):
		form.AddArrayItem(strings.TrimPrefix(action, "add:"))
	case strings.HasPrefix(action, "remove:"):
		rest := strings.TrimPrefix(action, "remove:")
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			return
		}
		index, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return
		}
		form.RemoveArrayItem(rest[:i], index)
	default:
		form.Save(ctx)
	}
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, form *settings.Form) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, newPageView(form, r.URL.RequestURI())); err != nil {
		s.logger.Error("settings render failed", "website_id", form.WebsiteID, "error", err)
		s.writeError(w, http.StatusInternalServerError, settings.MsgUnexpected)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
