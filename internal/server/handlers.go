package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
	"github.com/pagecraft-dev/pagecraft/internal/datasource"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

type dataResponse struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusOf maps document and query failures to HTTP statuses.
func statusOf(err error) int {
	var notFound *appdom.NodeNotFoundError
	var mismatch *appdom.TypeMismatchError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.As(err, &notFound), errors.As(err, &mismatch):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, datasource.ErrInvalidQuery),
		errors.Is(err, datasource.ErrUnknownConnector):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleData serves GET /data/{appId}/{version}/{queryId}?params=<json>.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	appID, version, queryID := chi.URLParam(r, "appId"), chi.URLParam(r, "version"), chi.URLParam(r, "queryId")

	var params map[string]any
	if raw := r.URL.Query().Get("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			writeJSON(w, http.StatusBadRequest, dataResponse{Error: "params must be a JSON object: " + err.Error()})
			return
		}
	}

	data, err := s.executor.Execute(r.Context(), appID, version, queryID, params)
	if err != nil {
		s.logger.Debug("query failed",
			zap.String("app", appID),
			zap.String("version", version),
			zap.String("query", queryID),
			zap.Error(err),
		)
		writeJSON(w, statusOf(err), dataResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: data})
}

// handlePage serves GET /pages/{appId}/{version}/{pageId}.js?editor=&pretty=.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	appID, version, pageID := chi.URLParam(r, "appId"), chi.URLParam(r, "version"), chi.URLParam(r, "pageId")

	config := codegen.RenderConfig{Version: version}
	var err error
	if config.Editor, err = boolParam(r, "editor"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if config.Pretty, err = boolParam(r, "pretty"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.config.Docs.Load(r.Context(), appID, version)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}

	res, err := s.compiler.CompilePage(r.Context(), appID, doc, appdom.NodeID(pageID), config)
	if err != nil {
		var cerr *cerrors.CompilerError
		if errors.As(err, &cerr) {
			status := http.StatusUnprocessableEntity
			if cerr.Code == cerrors.ErrNodeNotFound || cerr.Code == cerrors.ErrNodeTypeMismatch {
				status = http.StatusNotFound
			}
			body, jerr := cerr.ToJSON()
			if jerr != nil {
				writeError(w, status, cerr.Error())
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		writeError(w, statusOf(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("ETag", `"`+res.Key+`"`)
	if r.Header.Get("If-None-Match") == `"`+res.Key+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write([]byte(res.Source))
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return v, nil
}
