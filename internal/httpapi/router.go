package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"caseflow/internal/api"
	"caseflow/internal/approval"
	"caseflow/internal/casefile"
	"caseflow/internal/eventbus"
	"caseflow/internal/stage"
	"caseflow/pkg/config"
)

type Dependencies struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client // optional
	Publisher eventbus.Publisher
	Logger    *zap.Logger
}

func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = eventbus.NewNoopPublisher(logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	stageRepo := stage.NewRepository(deps.DB)
	stageHandlers := stage.Handlers{
		Catalogs: stage.NewCachedSource(stageRepo, deps.Redis, deps.Cfg.StageCacheTTL, logger),
		Logger:   logger,
	}
	caseHandlers := casefile.Handlers{
		DB:        deps.DB,
		Cases:     casefile.NewRepository(deps.DB),
		Publisher: publisher,
		Logger:    logger,
		Location:  deps.Cfg.AgencyLocation,
	}
	approvalHandlers := casefile.ApprovalHandlers{
		DB:        deps.DB,
		Approvals: approval.NewRepository(deps.DB),
		Publisher: publisher,
		Logger:    logger,
	}

	// v1
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.CORSMiddleware(api.CORSOptions{
			AllowedOrigins: deps.Cfg.FrontendOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAgeSeconds:  600,
		}))

		r.Group(func(r chi.Router) {
			// Prod: staff JWT. Dev: falls back to X-Staff-Id / X-Staff-Role.
			r.Use(api.StaffAuth(deps.Cfg, logger, nil))

			r.Get("/pipelines/{pipeline}/stages", stageHandlers.List)

			r.Get("/cases", caseHandlers.List)
			r.Get("/cases/{id}", caseHandlers.Get)
			r.Get("/cases/{id}/stage-history", caseHandlers.History)
			r.Get("/cases/{id}/events", caseHandlers.Events)
			r.Post("/cases/{id}/stage", caseHandlers.ChangeStage)

			// Regression approvals
			r.Group(func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Get("/approvals", approvalHandlers.List)
				r.Post("/approvals/{id}/approve", approvalHandlers.Approve)
				r.Post("/approvals/{id}/reject", approvalHandlers.Reject)
			})
		})
	})

	return r
}
