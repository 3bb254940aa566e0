package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/plugins"
)

// HookError is one failed hook reported back to the caller
type HookError struct {
	PluginID string `json:"plugin_id"`
	Error    string `json:"error"`
}

// HookResponse is the body returned by POST /api/hooks/{name}
type HookResponse struct {
	Hook    string               `json:"hook"`
	Results []plugins.HookResult `json:"results"`
	Errors  []HookError          `json:"errors"`
}

// StateValue is the body returned by GET /api/state/{key}
type StateValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// listPlugins handles GET /api/plugins
func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.manager.Info())
}

// getPlugin handles GET /api/plugins/{id}
func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	info, ok := s.manager.PluginInfo(id)
	if !ok {
		httputil.WriteNotFoundError(w, "plugin not found: "+id)
		return
	}
	httputil.WriteSuccess(w, info)
}

// installPlugin handles POST /api/plugins/{id}/install
func (s *Server) installPlugin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.manager.Install(r.Context(), id); err != nil {
		observability.FromContext(r.Context()).WithField("plugin", id).WithError(err).Warn("Plugin install failed")
		writeLifecycleError(w, err)
		return
	}

	info, _ := s.manager.PluginInfo(id)
	httputil.WriteSuccess(w, info)
}

// listRoutes handles GET /api/routes
func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes := s.manager.Routes()
	if routes == nil {
		routes = []plugins.Route{}
	}
	httputil.WriteSuccess(w, routes)
}

// listComponents handles GET /api/components
func (s *Server) listComponents(w http.ResponseWriter, r *http.Request) {
	index := make(map[string][]string)
	for _, info := range s.manager.Info() {
		if len(info.Components) > 0 {
			index[info.ID] = info.Components
		}
	}
	httputil.WriteSuccess(w, index)
}

// getState handles GET /api/state
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.manager.AllState())
}

// getStateKey handles GET /api/state/{key}
func (s *Server) getStateKey(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	value, ok := s.manager.State(key)
	if !ok {
		httputil.WriteNotFoundError(w, "state key not found: "+key)
		return
	}
	httputil.WriteSuccess(w, StateValue{Key: key, Value: value})
}

// setStateKey handles PUT /api/state/{key}
func (s *Server) setStateKey(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	var value any
	if !httputil.ParseJSONOrError(w, r, &value) {
		return
	}

	s.manager.SetState(key, value)
	httputil.WriteSuccess(w, StateValue{Key: key, Value: value})
}

// executeHook handles POST /api/hooks/{name}
func (s *Server) executeHook(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	var args []any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, "hook arguments must be a JSON array")
		return
	}

	results, failed := s.manager.RunHook(r.Context(), name, args...)

	failures := make([]HookError, 0, len(failed))
	for _, hookErr := range failed {
		failures = append(failures, HookError{PluginID: hookErr.PluginID, Error: hookErr.Err.Error()})
	}

	resp := HookResponse{Hook: name, Results: results, Errors: failures}
	if resp.Results == nil {
		resp.Results = []plugins.HookResult{}
	}
	httputil.WriteSuccess(w, resp)
}

// busyRetryAfter is the Retry-After hint sent while a lifecycle operation runs
const busyRetryAfter = time.Second

// writeLifecycleError maps manager errors onto HTTP status codes
func writeLifecycleError(w http.ResponseWriter, err error) {
	var missing *plugins.MissingDependencyError
	var cycle *plugins.CircularDependencyError

	switch {
	case errors.Is(err, plugins.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, plugins.ErrLifecycleBusy):
		httputil.WriteServiceUnavailable(w, err.Error(), busyRetryAfter)
	case errors.As(err, &missing):
		httputil.WriteConflict(w, err, map[string]string{
			"plugin":     missing.PluginID,
			"dependency": missing.Dependency,
		})
	case errors.As(err, &cycle):
		httputil.WriteConflict(w, err, map[string]string{
			"cycle": strings.Join(cycle.Cycle, " -> "),
		})
	default:
		httputil.WriteInternalError(w, err)
	}
}
