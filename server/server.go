// Package server wires configuration into a ready-to-serve echo instance
// and owns the long-lived handles behind it.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ragapi/config"
	"ragapi/database"
	colCtrlImp "ragapi/pkg/collection/controllerImp"
	colRepoImp "ragapi/pkg/collection/repositoryImp"
	colSvcImp "ragapi/pkg/collection/serviceImp"
	docCtrlImp "ragapi/pkg/document/controllerImp"
	docRepoImp "ragapi/pkg/document/repositoryImp"
	docSvcImp "ragapi/pkg/document/serviceImp"
	"ragapi/pkg/embedder"
	"ragapi/pkg/extractor"
	healthCtrlImp "ragapi/pkg/health/controllerImp"
	searchCtrlImp "ragapi/pkg/search/controllerImp"
	searchSvc "ragapi/pkg/search/service"
	searchSvcImp "ragapi/pkg/search/serviceImp"
	"ragapi/pkg/splitter"
	"ragapi/pkg/validation"
	"ragapi/pkg/vectorstore"
	"ragapi/router"
)

type Server struct {
	Echo *echo.Echo

	cfg  config.AppConfig
	log  *zap.Logger
	db   *gorm.DB
	pool *ants.Pool
	rdb  *redis.Client
}

// New opens every resource named by cfg and registers the HTTP routes.
// On error, whatever was already opened is released.
func New(cfg config.AppConfig, log *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log}
	if err := s.wire(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) wire() error {
	cfg, log := s.cfg, s.log

	var err error
	s.db, err = database.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	store, err := vectorstore.New(cfg.VectorDir, log)
	if err != nil {
		return err
	}
	s.pool, err = ants.NewPool(cfg.Embedding.Workers)
	if err != nil {
		return err
	}

	var cache redis.Cmdable
	if cfg.Embedding.RedisAddr != "" {
		s.rdb = redis.NewClient(&redis.Options{Addr: cfg.Embedding.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if perr := s.rdb.Ping(ctx).Err(); perr != nil {
			log.Warn("redis unreachable, embeddings will not be cached until it recovers",
				zap.String("addr", cfg.Embedding.RedisAddr), zap.Error(perr))
		}
		cancel()
		cache = s.rdb
	}

	v := validation.New()
	embedders := embedder.NewResolver(cfg.Embedding, cache, log)
	cols := colSvcImp.New(colRepoImp.New(s.db), store, v, log)
	docs := docSvcImp.New(docSvcImp.Deps{
		Collections: cols,
		Documents:   docRepoImp.New(s.db),
		Index:       store,
		Extractors:  extractor.NewRegistry(log),
		Splitter:    splitter.New(cfg.Chunking.Size, cfg.Chunking.Overlap),
		Embedders:   embedders,
		Batcher:     embedder.NewBatcher(s.pool, cfg.Embedding.BatchSize),
		Fetcher:     docSvcImp.NewFetcher(cfg.KB.AllowedDomains, cfg.KB.MaxBytesPerPage, &http.Client{Timeout: 30 * time.Second}),
		Validator:   v,
		Log:         log,
	})

	var search searchSvc.SearchService
	if cfg.Search.Mode == "remote" {
		search = searchSvcImp.NewRemote(cfg.Search.UpstreamURL, &http.Client{Timeout: 30 * time.Second}, v, log)
	} else {
		search = searchSvcImp.New(cols, store, embedders, v, log)
	}

	s.Echo = router.New(echo.New(),
		router.Options{
			DocsBaseURL:    cfg.DocsBaseURL,
			MaxUploadBytes: cfg.MaxUploadBytes,
			APITokens:      cfg.APITokens,
			Log:            log,
		},
		colCtrlImp.New(cols),
		docCtrlImp.New(docs),
		searchCtrlImp.New(search),
		healthCtrlImp.NewHealthCtrl(s.db, store.Dir()),
	)
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("port", s.cfg.Port), zap.String("search_mode", s.cfg.Search.Mode))
		errc <- s.Echo.Start(":" + s.cfg.Port)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Echo.Shutdown(shutdownCtx)
}

// Close releases the worker pool, the Redis client and the database.
func (s *Server) Close() error {
	var errs []error
	if s.pool != nil {
		s.pool.Release()
	}
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, database.Close(s.db))
	}
	return errors.Join(errs...)
}
