package profiler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plus3/ecscore/ecs"
)

// StatsSource provides scheduler statistics. *ecs.Scheduler implements it.
type StatsSource interface {
	GetStats() *ecs.SchedulerStats
}

type storageResponse struct {
	TakenAt time.Time        `json:"taken_at"`
	Stats   ecs.StorageStats `json:"stats"`
}

// NewHandler serves /metrics from gatherer, /stats/scheduler from
// scheduler and /stats/storage from the profiler's last snapshot.
// /entities lists live entities, filtered by comma separated component
// type substrings, and /entities/{id} shows the fields of one entity; both
// are answered at the end of the next frame. Every route allows
// cross-origin GETs so browser dashboards can poll it.
func (p *Profiler) NewHandler(gatherer prometheus.Gatherer, scheduler StatsSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Get("/stats/scheduler", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, scheduler.GetStats())
	})

	r.Get("/stats/storage", func(w http.ResponseWriter, r *http.Request) {
		stats, taken := p.StorageSnapshot()
		if taken.IsZero() {
			writeError(w, http.StatusServiceUnavailable, "no frame observed yet")
			return
		}
		writeJSON(w, http.StatusOK, storageResponse{TakenAt: taken, Stats: stats})
	})

	r.Get("/entities", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := queryInt(q.Get("page"), 0)
		if err != nil || page < 0 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		limit, err := queryInt(q.Get("limit"), DefaultPageSize)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(limit, MaxPageSize)
		var terms []string
		for _, term := range strings.Split(q.Get("filter"), ",") {
			if term = strings.TrimSpace(term); term != "" {
				terms = append(terms, term)
			}
		}
		p.serveInspection(w, r, func(storage *ecs.Storage) (any, error) {
			return listEntities(storage, terms, page, limit), nil
		})
	})

	r.Get("/entities/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		p.serveInspection(w, r, func(storage *ecs.Storage) (any, error) {
			return inspectEntity(storage, p.fields, ecs.EntityId(id))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// serveInspection runs fn on the scheduler goroutine at the end of the next
// frame and writes its result.
func (p *Profiler) serveInspection(w http.ResponseWriter, r *http.Request, fn func(*ecs.Storage) (any, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), p.inspectTimeout)
	defer cancel()

	v, err := p.inspect(ctx, fn)
	switch {
	case errors.Is(err, errEntityNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "no frame ran in time")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves h on addr until ctx is done, then shuts down
// gracefully.
func (p *Profiler) ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		p.logger.Info().Str("addr", addr).Msg("profiler listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		p.logger.Error().Err(err).Msg("profiler shutdown")
		return err
	}
	return nil
}
