package restserver

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chrissnell/xrdquant/internal/controllers"
	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/storage"
	"github.com/chrissnell/xrdquant/internal/types"
	"github.com/chrissnell/xrdquant/pkg/responseformat"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

const maxBodyBytes = 64 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) services() *controllers.Services {
	return h.controller.services
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := controllers.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	h.formatter.WriteError(w, req, status, err)
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteStatus(w, req, status, data, nil); err != nil {
		h.controller.logger.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

// GetHealth reports whether the service and its storage backends are healthy
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Libraries: len(h.services().Libraries.Names()),
		Storage:   storage.GlobalHealthManager.GetAllHealth(),
	}
	status := http.StatusOK
	for _, s := range resp.Storage {
		if s.Status != storage.StatusHealthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	h.write(w, req, status, resp)
}

// GetLibraries lists the loaded reference libraries
func (h *Handlers) GetLibraries(w http.ResponseWriter, req *http.Request) {
	libs := h.services().Libraries
	out := make([]LibrarySummary, 0)
	for _, name := range libs.Names() {
		lib, err := libs.Get(name)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		out = append(out, summarize(lib, false))
	}
	h.write(w, req, http.StatusOK, out)
}

// GetLibrary describes one library including its reference phases
func (h *Handlers) GetLibrary(w http.ResponseWriter, req *http.Request) {
	lib, err := h.services().Libraries.Get(mux.Vars(req)["name"])
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, summarize(lib, true))
}

// PostFit runs a full pattern summation fit
func (h *Handlers) PostFit(w http.ResponseWriter, req *http.Request) {
	var body controllers.FitRequest
	sample, opts, err := h.decode(req, &body, func() *xrd.Diffractogram { return body.Sample })
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	body.Sample = sample
	if opts != nil {
		body.Options = &opts.Options
	}

	rec, err := h.services().Fit(req.Context(), mux.Vars(req)["name"], body, types.SourceREST)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, FitResponse{ID: rec.ID.String(), Result: rec.Result})
}

// PostAutoFit runs an automated fit
func (h *Handlers) PostAutoFit(w http.ResponseWriter, req *http.Request) {
	var body controllers.AutoFitRequest
	sample, opts, err := h.decode(req, &body, func() *xrd.Diffractogram { return body.Sample })
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	body.Sample = sample
	if opts != nil {
		body.Options = opts
	}

	rec, err := h.services().AutoFit(req.Context(), mux.Vars(req)["name"], body, types.SourceREST)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, FitResponse{ID: rec.ID.String(), Result: rec.Result})
}

// decode reads a fit request. A text/plain body is a two-column XY pattern
// named by the "name" query parameter, with fit options taken from the query
// string on top of the configured defaults. Anything else is a JSON or
// MessagePack request into body and the returned options are nil.
func (h *Handlers) decode(req *http.Request, body any, sample func() *xrd.Diffractogram) (*xrd.Diffractogram, *fps.AutoOptions, error) {
	req.Body = http.MaxBytesReader(nil, req.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		q := req.URL.Query()
		opts, err := queryOptions(q, h.services().Defaults)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", controllers.ErrBadRequest, err)
		}
		name := q.Get("name")
		if name == "" {
			name = "sample"
		}
		d, err := xrd.ReadXY(req.Body, name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", controllers.ErrBadRequest, err)
		}
		return d, &opts, nil
	}

	if err := h.formatter.DecodeRequest(req, body); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", controllers.ErrBadRequest, err)
	}
	return sample(), nil, nil
}

// GetFits lists stored fits. Query parameters: sample, library, since
// (RFC 3339) and limit.
func (h *Handlers) GetFits(w http.ResponseWriter, req *http.Request) {
	reader := h.services().Reader
	if reader == nil {
		h.formatter.WriteError(w, req, http.StatusNotImplemented, errNoStore)
		return
	}

	q := req.URL.Query()
	filter := types.FitFilter{
		Sample:  q.Get("sample"),
		Library: q.Get("library"),
		Limit:   100,
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		filter.Limit = limit
	}

	fits, err := reader.ListFits(req.Context(), filter)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if fits == nil {
		fits = []types.FitSummary{}
	}
	h.write(w, req, http.StatusOK, fits)
}

// GetFit returns one stored fit
func (h *Handlers) GetFit(w http.ResponseWriter, req *http.Request) {
	reader := h.services().Reader
	if reader == nil {
		h.formatter.WriteError(w, req, http.StatusNotImplemented, errNoStore)
		return
	}

	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Errorf("invalid fit id: %w", err))
		return
	}

	rec, err := reader.GetFit(req.Context(), id)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, rec)
}

var errNoStore = errors.New("no fit storage configured")
