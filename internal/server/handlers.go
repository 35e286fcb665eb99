// Package server exposes zone checks over a small JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jgoulah/gridheadroom/internal/checker"
	"github.com/jgoulah/gridheadroom/internal/geocode"
	"github.com/jgoulah/gridheadroom/internal/render"
	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// Handlers serves check requests using a shared checker. Query parameters
// override the default options per request.
type Handlers struct {
	checker  *checker.Checker
	defaults checker.Options
}

// NewHandlers creates handlers for c
func NewHandlers(c *checker.Checker, defaults checker.Options) *Handlers {
	return &Handlers{
		checker:  c,
		defaults: defaults,
	}
}

// Router returns the API routes with CORS enabled. Routes accept OPTIONS so
// that preflight requests reach the CORS middleware; mux only runs middleware
// on a matched route.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/check", h.Check).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/resolve", h.Resolve).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/map", h.Map).Methods(http.MethodGet, http.MethodOptions)
	router.Use(cors)
	return router
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HealthCheck reports that the server is up
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Check geocodes the address parameter and reports its zone.
// GET /check?address=&mode=&fallback=&transformer=
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	res, ok := h.check(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Map renders the HTML map page for the address parameter.
// GET /map?address=&mode=&fallback=&transformer=
func (h *Handlers) Map(w http.ResponseWriter, r *http.Request) {
	res, ok := h.check(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteMap(w, render.FromResult(res)); err != nil {
		log.Printf("Error rendering map: %v", err)
	}
}

func (h *Handlers) check(w http.ResponseWriter, r *http.Request) (*checker.Result, bool) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return nil, false
	}

	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	res, err := h.checker.Check(r.Context(), address, opts)
	if errors.Is(err, geocode.ErrAddressNotFound) {
		writeError(w, http.StatusNotFound, "address not found")
		return nil, false
	}
	if err != nil {
		log.Printf("Error checking %q: %v", address, err)
		writeError(w, http.StatusBadGateway, "geocoding failed")
		return nil, false
	}
	return res, true
}

// Resolve reports the zone for a coordinate pair without geocoding.
// GET /resolve?lat=&lon=&mode=&fallback=&transformer=
func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := coordinate(q.Get("lat"), 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat: "+err.Error())
		return
	}
	lon, err := coordinate(q.Get("lon"), 180)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon: "+err.Error())
		return
	}

	opts, err := h.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.checker.CheckLocation(r.Context(), models.Location{Lat: lat, Lon: lon}, opts)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) options(r *http.Request) (checker.Options, error) {
	opts := h.defaults
	q := r.URL.Query()

	if s := q.Get("mode"); s != "" {
		mode, err := zones.ParseMode(s)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	if s := q.Get("fallback"); s != "" {
		fallback, err := strconv.ParseBool(s)
		if err != nil {
			return opts, errors.New("fallback must be true or false")
		}
		opts.Fallback = fallback
	}
	if s := strings.TrimSpace(q.Get("transformer")); s != "" {
		opts.DemandID = s
	}
	return opts, nil
}

func coordinate(s string, limit float64) (float64, error) {
	if s == "" {
		return 0, errors.New("required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, errors.New("out of range")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
