package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/milanbella/storyboard/logger"
	"github.com/milanbella/storyboard/metrics"
	"github.com/milanbella/storyboard/query"
	"github.com/milanbella/storyboard/session"
)

const maxBodyBytes = 1 << 20

// Handler serves the REST resources.
type Handler struct {
	store    *Store
	maxLimit int
	metrics  *metrics.Metrics
}

func NewHandler(store *Store, maxLimit int, m *metrics.Metrics) *Handler {
	return &Handler{store: store, maxLimit: maxLimit, metrics: m}
}

// Routes mounts the resources on r. requireUser guards every write.
func (h *Handler) Routes(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", list(h, "projects", h.store.ListProjects))
		r.Get("/{id}", get(h.store.GetProject))
		r.With(requireUser).Post("/", create(h.store.CreateProject))
		r.With(requireUser).Put("/{id}", update(h.store.UpdateProject))
	})

	r.Route("/project_groups", func(r chi.Router) {
		r.Get("/", list(h, "project_groups", h.store.ListProjectGroups))
		r.Get("/{id}", get(h.store.GetProjectGroup))
		r.Get("/{id}/projects", h.listGroupProjects)
		r.With(requireUser).Post("/", create(h.store.CreateProjectGroup))
		r.With(requireUser).Put("/{id}", update(h.store.UpdateProjectGroup))
		r.With(requireUser).Put("/{id}/projects/{project_id}", h.addGroupProject)
		r.With(requireUser).Delete("/{id}/projects/{project_id}", h.removeGroupProject)
	})

	r.Route("/stories", func(r chi.Router) {
		r.Get("/", list(h, "stories", h.store.ListStories))
		r.Get("/{id}", get(h.store.GetStory))
		r.With(requireUser).Post("/", h.createStory)
		r.With(requireUser).Put("/{id}", update(h.store.UpdateStory))
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", list(h, "tasks", h.store.ListTasks))
		r.Get("/{id}", get(h.store.GetTask))
		r.With(requireUser).Post("/", create(h.store.CreateTask))
		r.With(requireUser).Put("/{id}", update(h.store.UpdateTask))
	})
}

func list[T any](h *Handler, resource string, fn func(context.Context, query.Filters, query.PageRequest) (*query.PageResult[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveList(w, r, resource, func(filters query.Filters, page query.PageRequest) (any, func(http.ResponseWriter), error) {
			res, err := fn(r.Context(), filters, page)
			if err != nil {
				return nil, nil, err
			}
			return res.Items, func(w http.ResponseWriter) { query.SetHeaders(w, res) }, nil
		})
	}
}

func (h *Handler) serveList(w http.ResponseWriter, r *http.Request, resource string,
	fn func(query.Filters, query.PageRequest) (any, func(http.ResponseWriter), error)) {
	page, filters, err := query.ParseRequest(r.URL.Query(), h.maxLimit)
	if err != nil {
		h.metrics.ListServed(resource, "client_error")
		handleError(w, err)
		return
	}

	items, setHeaders, err := fn(filters, page)
	if err != nil {
		if query.IsClientError(err) {
			h.metrics.ListServed(resource, "client_error")
		} else {
			h.metrics.ListServed(resource, "error")
		}
		handleError(w, err)
		return
	}

	h.metrics.ListServed(resource, "ok")
	setHeaders(w)
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) listGroupProjects(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.store.GetProjectGroup(r.Context(), groupID); err != nil {
		handleError(w, err)
		return
	}

	h.serveList(w, r, "project_groups", func(filters query.Filters, page query.PageRequest) (any, func(http.ResponseWriter), error) {
		filters["project_group_id"] = []string{strconv.FormatInt(groupID, 10)}
		res, err := h.store.ListProjects(r.Context(), filters, page)
		if err != nil {
			return nil, nil, err
		}
		return res.Items, func(w http.ResponseWriter) { query.SetHeaders(w, res) }, nil
	})
}

func (h *Handler) addGroupProject(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}
	if err := h.store.AddProjectToGroup(r.Context(), groupID, projectID); err != nil {
		handleError(w, err)
		return
	}
	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) removeGroupProject(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "project_id")
	if !ok {
		return
	}
	if err := h.store.RemoveProjectFromGroup(r.Context(), groupID, projectID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createStory(w http.ResponseWriter, r *http.Request) {
	var in StoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	user, _ := session.FromContext(r.Context())
	story, err := h.store.CreateStory(r.Context(), in, user.ID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, story)
}

func get[T any](fn func(context.Context, int64) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		item, err := fn(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func create[In, T any](fn func(context.Context, In) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if !decodeJSON(w, r, &in) {
			return
		}
		item, err := fn(r.Context(), in)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func update[In, T any](fn func(context.Context, int64, In) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var in In
		if !decodeJSON(w, r, &in) {
			return
		}
		item, err := fn(r.Context(), id, in)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeFault(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s [%s]", name, raw))
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		writeFault(w, http.StatusBadRequest, "invalid json payload")
		return false
	}
	return true
}

func handleError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case query.IsClientError(err):
		writeFault(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validationErr):
		writeFault(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, ErrNotFound):
		writeFault(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, ErrConflict):
		writeFault(w, http.StatusConflict, "Resource already exists")
	default:
		logger.Error(err)
		writeFault(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeFault(w http.ResponseWriter, status int, message string) {
	faultcode := "Client"
	if status >= http.StatusInternalServerError {
		faultcode = "Server"
	}
	writeJSON(w, status, map[string]string{
		"faultcode":   faultcode,
		"faultstring": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(err)
	}
}
