package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the estimation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/estimates", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Description string `json:"description"`
				ProjectType string `json:"project_type"`
				Location    string `json:"location"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Description == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
				return
			}
			if env.Generator == nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "BOM generation is not configured"})
				return
			}

			projectType := body.ProjectType
			if projectType == "" {
				projectType = "general"
			}
			now := time.Now().UTC()
			project := &model.Project{
				ID:          uuid.NewString(),
				Status:      model.ProjectStatusDraft,
				ProjectType: projectType,
				Description: body.Description,
				Location:    body.Location,
				BOM:         []model.PriceDecision{},
				Progress:    &model.Progress{Step: "pending"},
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := env.Store.SaveProject(req.Context(), project); err != nil {
				zap.L().Error("save project failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not create estimate"})
				return
			}

			// Enrichment takes minutes with live scraping; run it out of
			// band against the server context so a closed request
			// connection does not cancel it.
			go processEstimate(ctx, env, project)

			writeJSON(w, http.StatusAccepted, map[string]string{
				"estimate_id": project.ID,
				"status":      string(project.Status),
			})
		})

		r.Get("/api/estimates/{id}", func(w http.ResponseWriter, req *http.Request) {
			project, err := env.Store.GetProject(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				zap.L().Error("get project failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
				return
			}
			if project == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "estimate not found"})
				return
			}
			writeJSON(w, http.StatusOK, project)
		})

		r.Get("/api/materials/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query().Get("q")
			if q == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
				return
			}
			records, err := env.Store.SearchMaterials(req.Context(), q, 20)
			if err != nil {
				zap.L().Error("material search failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
				return
			}
			writeJSON(w, http.StatusOK, records)
		})

		r.Get("/api/materials/price", func(w http.ResponseWriter, req *http.Request) {
			name := req.URL.Query().Get("name")
			if name == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
				return
			}
			m := model.MaterialRequest{Name: name, Quantity: 1, Unit: req.URL.Query().Get("unit")}
			if qty := req.URL.Query().Get("quantity"); qty != "" {
				if _, err := fmt.Sscanf(qty, "%f", &m.Quantity); err != nil || m.Quantity <= 0 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be a positive number"})
					return
				}
			}
			writeJSON(w, http.StatusOK, env.Resolver.Resolve(req.Context(), m))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// processEstimate runs BOM generation and price enrichment for one project,
// persisting progress so a polling client can render it.
func processEstimate(ctx context.Context, env *appEnv, project *model.Project) {
	fail := func(stage string, err error) {
		zap.L().Error("estimate processing failed",
			zap.String("estimate_id", project.ID),
			zap.String("stage", stage),
			zap.Error(err),
		)
		_ = env.Store.UpdateProjectStatus(ctx, project.ID, model.ProjectStatusFailed)
		_ = env.Store.UpdateProjectProgress(ctx, project.ID, model.Progress{Step: "failed"})
	}

	progress := func(p model.Progress) {
		if err := env.Store.UpdateProjectProgress(ctx, project.ID, p); err != nil {
			zap.L().Warn("progress update failed", zap.String("estimate_id", project.ID), zap.Error(err))
		}
	}

	progress(model.Progress{Step: "generating_bom", Percent: 10})
	materials, err := env.Generator.Generate(ctx, project.Description)
	if err != nil {
		fail("generate", err)
		return
	}

	progress(model.Progress{Step: "fetching_prices", Percent: 30, TotalItems: len(materials)})
	decisions, err := env.Enricher.EnrichAll(ctx, materials, func(current, total int, name, source string) {
		progress(model.Progress{
			Step:            "fetching_prices",
			Percent:         30 + current*50/total,
			CurrentItem:     current,
			TotalItems:      total,
			CurrentMaterial: truncate(name, 50),
			CurrentSource:   source,
		})
	})
	if err != nil {
		fail("enrich", err)
		return
	}

	progress(model.Progress{Step: "calculating_totals", Percent: 80})
	summary := env.Enricher.Summarize(decisions)

	project.Status = model.ProjectStatusEstimated
	project.BOM = decisions
	project.MaterialTotal = summary.MaterialTotal
	project.LaborTotal = summary.LaborTotal
	project.GrandTotal = summary.GrandTotal
	project.Progress = &model.Progress{Step: "completed", Percent: 100}
	project.UpdatedAt = time.Now().UTC()

	if err := env.Store.SaveProject(ctx, project); err != nil {
		fail("persist", err)
		return
	}

	zap.L().Info("estimate complete",
		zap.String("estimate_id", project.ID),
		zap.Int("materials", len(decisions)),
		zap.Int64("grand_total_idr", summary.GrandTotal),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
