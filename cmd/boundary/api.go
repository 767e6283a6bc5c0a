package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/boundary/pkg/adminapi"
	"github.com/dmitrymomot/boundary/pkg/authclaims"
	"github.com/dmitrymomot/boundary/pkg/httpserver"
	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/pg"
	"github.com/dmitrymomot/boundary/pkg/requestid"
	"github.com/dmitrymomot/boundary/pkg/schema"
	"github.com/dmitrymomot/boundary/pkg/tenant"
	"github.com/dmitrymomot/boundary/pkg/tenantcache"
	"github.com/dmitrymomot/boundary/pkg/tenantjob"
)

const (
	statsKey     = "notes:stats"
	maxNoteBytes = 64 << 10
)

type routerDeps struct {
	admin    *adminapi.API
	resolver *tenant.Resolver
	verifier *authclaims.Verifier
	notes    *notesService
	sources  tenant.Sources
	ready    map[string]httpserver.Check
	log      *slog.Logger
}

// newRouter mounts the management API under /admin and the tenant-scoped
// API under /api. Every /api request is bound to an active tenant.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.RealIP, middleware.Recoverer)

	r.Get("/livez", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(d.log, 5*time.Second, d.ready))

	r.Mount("/admin", d.admin.Router())

	r.Route("/api", func(r chi.Router) {
		if d.verifier != nil {
			r.Use(authclaims.MiddlewareWithConfig(authclaims.MiddlewareConfig{
				Verifier: d.verifier,
				Optional: true,
			}))
		}
		r.Use(tenant.Middleware(d.resolver, d.sources, tenant.WithLogger(d.log)))
		r.Use(tenant.RequireActive(nil))

		r.Get("/tenant", currentTenant)
		r.Get("/notes", d.notes.list)
		r.Post("/notes", d.notes.create)
		r.Get("/notes/stats", d.notes.stats)
	})
	return r
}

func currentTenant(w http.ResponseWriter, r *http.Request) {
	tc := tenant.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     tc.TenantID,
		"slug":   tc.Slug,
		"status": tc.Status,
	})
}

type note struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// noteCreated is the job payload enqueued after every insert.
type noteCreated struct {
	NoteID uuid.UUID `json:"note_id"`
}

type noteStats struct {
	Count       int64     `json:"count"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// notesService is a minimal tenant-owned resource: rows live in the tenant
// namespace, stats in the tenant cache, refreshes run as tenant jobs.
type notesService struct {
	engine   *schema.Engine[*pg.Conn]
	cache    tenantcache.Store
	enqueuer tenantjob.Enqueuer
	log      *slog.Logger
}

func (n *notesService) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.MustFromContext(ctx)

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	created := note{ID: uuid.New(), Body: req.Body}
	err := schema.InTenant(ctx, n.engine, tc, func(c *pg.Conn) error {
		return c.QueryRow(ctx,
			`INSERT INTO notes (id, body) VALUES ($1, $2) RETURNING created_at`,
			created.ID, created.Body,
		).Scan(&created.CreatedAt)
	})
	if err != nil {
		n.fail(w, r, err)
		return
	}

	if err := tenantjob.Enqueue(ctx, n.enqueuer, tc, noteCreated{NoteID: created.ID}, requestid.Propagate(ctx)); err != nil {
		// Stats catch up with the next successful refresh.
		n.logger().ErrorContext(ctx, "enqueue stats refresh failed", logger.Error(err))
	}
	writeJSON(w, http.StatusCreated, created)
}

func (n *notesService) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notes, err := schemaQuery(ctx, n.engine, tenant.MustFromContext(ctx), func(c *pg.Conn) ([]note, error) {
		rows, err := c.Query(ctx, `SELECT id, body, created_at FROM notes ORDER BY created_at DESC LIMIT 100`)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, pgx.RowToStructByName[note])
	})
	if err != nil {
		n.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// stats serves the cached count, computing it on a miss.
func (n *notesService) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cache, err := tenantcache.FromContext(ctx, n.cache)
	if err != nil {
		n.fail(w, r, err)
		return
	}

	st, err := tenantcache.GetJSON[noteStats](ctx, cache, statsKey)
	if errors.Is(err, tenantcache.ErrCacheMiss) {
		st, err = schemaQuery(ctx, n.engine, tenant.MustFromContext(ctx), countNotes(ctx))
		if err == nil {
			err = tenantcache.SetJSON(ctx, cache, statsKey, st, 0)
		}
	}
	if err != nil {
		n.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// refreshStats runs as a tenant job: the session is already bound to the
// namespace of the tenant that enqueued it.
func (n *notesService) refreshStats(ctx context.Context, s *schema.Session[*pg.Conn], _ noteCreated) error {
	st, err := schema.Query(ctx, s, countNotes(ctx))
	if err != nil {
		return err
	}
	cache, err := tenantcache.FromContext(ctx, n.cache)
	if err != nil {
		return err
	}
	return tenantcache.SetJSON(ctx, cache, statsKey, st, 0)
}

func countNotes(ctx context.Context) func(*pg.Conn) (noteStats, error) {
	return func(c *pg.Conn) (noteStats, error) {
		st := noteStats{RefreshedAt: time.Now().UTC()}
		err := c.QueryRow(ctx, `SELECT count(*) FROM notes`).Scan(&st.Count)
		return st, err
	}
}

// schemaQuery runs fn in a unit of work bound to tc and returns its result.
func schemaQuery[T any](ctx context.Context, e *schema.Engine[*pg.Conn], tc tenant.Context, fn func(*pg.Conn) (T, error)) (T, error) {
	var out T
	err := e.WithTenant(ctx, tc, func(ctx context.Context, s *schema.Session[*pg.Conn]) error {
		var err error
		out, err = schema.Query(ctx, s, fn)
		return err
	})
	return out, err
}

func (n *notesService) fail(w http.ResponseWriter, r *http.Request, err error) {
	n.logger().ErrorContext(r.Context(), "notes request failed", logger.Error(err))
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (n *notesService) logger() *slog.Logger {
	if n.log != nil {
		return n.log
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
