package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/pipeline"
	"github.com/busweaver/busweaver/pkg/store"
)

// createTopologyRequest mirrors client.CreateTopologyRequest.
type createTopologyRequest struct {
	Name           string `json:"name"`
	Manifest       string `json:"manifest"`
	ManifestFormat string `json:"manifest_format"`
}

// handleHealth answers liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateTopology builds the uploaded manifest, checks it and
// stores the resulting document. The manifest travels inline in the
// request body, so the server never touches the filesystem.
func (s *Server) handleCreateTopology(w http.ResponseWriter, r *http.Request) {
	var req createTopologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.logger, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode request body"))
		return
	}
	if req.Manifest == "" {
		writeError(w, s.logger, errors.New(errors.ErrCodeInvalidManifest, "manifest must not be empty"))
		return
	}
	if err := pipeline.ValidateManifestFormat(req.ManifestFormat); err != nil {
		writeError(w, s.logger, errors.Wrap(errors.ErrCodeInvalidFormat, err, "manifest format"))
		return
	}

	opts := pipeline.Options{
		Manifest:       req.Manifest,
		ManifestFormat: req.ManifestFormat,
		Logger:         s.logger,
	}

	sys, err := s.runner.Load(r.Context(), opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	rep, err := s.runner.Check(r.Context(), sys, opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	hash, err := pipeline.SystemHash(sys)
	if err != nil {
		writeError(w, s.logger, errors.Wrap(errors.ErrCodeInternal, err, "hash system"))
		return
	}

	name := req.Name
	if name == "" {
		name = sys.Name
	}

	doc := store.New(name, hash, sys, rep)
	if err := s.store.Put(r.Context(), doc); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info("topology created", "id", doc.ID, "name", doc.Name,
		"entities", sys.EntityCount(), "findings", len(rep.Findings))
	writeJSON(w, http.StatusCreated, doc)
}

// handleListTopologies returns all stored documents, newest first.
// Systems and reports are stripped; they can be large, and list callers
// only need the metadata.
func (s *Server) handleListTopologies(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	out := make([]*store.Document, len(docs))
	for i, doc := range docs {
		meta := *doc
		meta.System = nil
		meta.Report = nil
		out[i] = &meta
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetTopology returns one document including system and report.
func (s *Server) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetReport returns the consistency report of a stored topology.
// Documents created through this API always carry a report; if one is
// missing (written by an older tool), it is computed and persisted.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if doc.Report == nil {
		rep, err := s.runner.Check(r.Context(), doc.System, pipeline.Options{Logger: s.logger})
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		doc.Report = rep
		if err := s.store.Put(r.Context(), doc); err != nil {
			s.logger.Warn("persist recomputed report", "id", doc.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, doc.Report)
}

// contentTypes maps render formats to their MIME types.
var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
	pipeline.FormatDOT:  "text/vnd.graphviz",
	pipeline.FormatJSON: "application/json",
}

// handleRenderTopology renders a stored topology into one artifact
// format. Artifacts are cached by system hash, so repeated renders of
// an unchanged topology are served from cache.
func (s *Server) handleRenderTopology(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.DefaultFormat
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		writeError(w, s.logger, errors.Wrap(errors.ErrCodeInvalidFormat, err, "render format"))
		return
	}
	detailed := r.URL.Query().Get("detailed") == "true"

	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	artifacts, err := s.runner.Render(r.Context(), doc.System, pipeline.Options{
		Formats:  []string{format},
		Detailed: detailed,
		Logger:   s.logger,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifacts[format])
}

// handleDeleteTopology removes a stored topology.
func (s *Server) handleDeleteTopology(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("topology deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
