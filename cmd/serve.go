package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

var serveDatasetPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the unified dataset over a read-only HTTP API",
	Long: `Loads the unified dataset and serves it read-only:

  GET /health           liveness probe
  GET /api/records      records as JSON, filterable by record_type,
                        indicator_code, pillar and gender
  GET /api/summary      row counts per record type and the column set
  GET /api/dataset.csv  the raw dataset file

The dataset is read once at startup; restart after a merge to pick up
new rows.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		path := serveDatasetPath
		if path == "" {
			path = cfg.Dataset.Path
		}

		tbl, err := dataset.Load(path)
		if err != nil {
			return err
		}
		zap.L().Info("serving dataset",
			zap.String("path", path),
			zap.Int("rows", tbl.Len()),
			zap.Int("port", cfg.Server.Port),
		)

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      newRouter(tbl, path, cfg.Server.AllowedOrigins),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(sigCtx)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "serve: listen")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDatasetPath, "dataset", "", "unified dataset path (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(tbl *dataset.Table, datasetPath string, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	records := tbl.Records()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/records", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		out := make([]model.Record, 0, len(records))
		for _, rec := range records {
			if v := q.Get("record_type"); v != "" && rec.RecordType != v {
				continue
			}
			if v := q.Get("indicator_code"); v != "" && rec.IndicatorCode != v {
				continue
			}
			if v := q.Get("pillar"); v != "" && rec.Pillar != v {
				continue
			}
			if v := q.Get("gender"); v != "" && rec.Gender != v {
				continue
			}
			out = append(out, rec)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(out),
			"records": out,
		})
	})

	r.Get("/api/summary", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"dataset_path": datasetPath,
			"rows":         tbl.Len(),
			"by_type":      tbl.CountByType(),
			"columns":      tbl.Header,
		})
	})

	r.Get("/api/dataset.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		cw := csv.NewWriter(w)
		if err := cw.Write(tbl.Header); err != nil {
			zap.L().Error("serve: write csv header", zap.Error(err))
			return
		}
		if err := cw.WriteAll(tbl.Rows); err != nil {
			zap.L().Error("serve: write csv rows", zap.Error(err))
			return
		}
		cw.Flush()
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
	}
}
