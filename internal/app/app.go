package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/internal/cluster"
	v1Http "github.com/RohanKP1/image-upload-service/internal/delivery/v1/http"
	"github.com/RohanKP1/image-upload-service/internal/infrastructure/kafka"
	minioInfra "github.com/RohanKP1/image-upload-service/internal/infrastructure/minio"
	ml_service "github.com/RohanKP1/image-upload-service/internal/infrastructure/ml-service"
	s3Repo "github.com/RohanKP1/image-upload-service/internal/repository/minio"
	"github.com/RohanKP1/image-upload-service/internal/repository/pgdb"
	qdrantRepo "github.com/RohanKP1/image-upload-service/internal/repository/qdrant"
	"github.com/RohanKP1/image-upload-service/internal/repository/redis"
	"github.com/RohanKP1/image-upload-service/internal/usecase"
	"github.com/RohanKP1/image-upload-service/pkg/clients"
	"github.com/RohanKP1/image-upload-service/pkg/closer"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/RohanKP1/image-upload-service/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

// App связывает конфигурацию, клиентов внешних систем, репозитории и
// usecase-слой в работающий HTTP-сервис.
type App struct {
	cfg           *config.Config
	logger        logger.Logger
	httpSrv       *v1Http.Server
	imagesInfra   *minioInfra.MinioInfrastructure
	cleanupCancel context.CancelFunc
	closer        *closer.Closer
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	const op = "app.NewApp"

	cl := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	cl.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		minioCancel()
		return nil, e.Wrap(op, err)
	}
	minioCancel()

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
		qdrantCancel()
		return nil, e.Wrap(op, err)
	}
	qdrantCancel()
	cl.Add(func(ctx context.Context) error {
		return qdrantClient.Client.Close()
	})

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		return nil, e.Wrap(op, err)
	}
	cl.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		return nil, e.Wrap(op, err)
	}
	cl.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	stateRepo := pgdb.NewClusterStateRepo(db.Pool)
	transactor := pgdb.NewTransactor(db.Pool)
	objectRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)
	vectorIndex := qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)
	cacheRepo := redis.NewCacheRepo(redisClient, cfg.Redis, log)

	ml := ml_service.NewMLService(cfg.Ml, log)

	// Контекст фоновых компенсаций в MinIO: отменяется в Run после истечения
	// времени, отведенного на graceful shutdown
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	imagesInfra := minioInfra.NewMinioInfrastructure(objectRepo, cfg.Minio, log, cleanupCtx)

	assignEngine := cluster.NewAssignmentEngine(cluster.AssignParams{
		Dimension:          cfg.Clustering.VectorSize,
		CohesionK:          cfg.Clustering.CohesionK,
		MarginThreshold:    cfg.Clustering.MarginThreshold,
		FallbackSimilarity: cfg.Clustering.FallbackSimilarity,
	}, log)
	partitioner := cluster.NewKMeansPartitioner(cfg.Clustering.KMeansMaxIter, cfg.Clustering.MaxAutoK)
	reclusterEngine := cluster.NewReclusterEngine(partitioner, cfg.Clustering.VectorSize, log)

	coordinator := usecase.NewCoordinator(transactor, stateRepo)

	imageUC := usecase.NewImageUC(
		coordinator,
		stateRepo,
		assignEngine,
		ml,
		imagesInfra,
		objectRepo,
		vectorIndex,
		cacheRepo,
		producer,
		cfg.Clustering,
		log,
	)
	clusterUC := usecase.NewClusterUC(
		coordinator,
		stateRepo,
		reclusterEngine,
		ml,
		cacheRepo,
		producer,
		cfg.Clustering,
		log,
	)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(imageUC, clusterUC)

	httpSrv := v1Http.NewServer(r, cfg.Http)

	return &App{
		cfg:           cfg,
		logger:        log,
		httpSrv:       httpSrv,
		imagesInfra:   imagesInfra,
		cleanupCancel: cleanupCancel,
		closer:        cl,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до сигнала завершения или
// фатальной ошибки сервера. Ресурсы закрываются в порядке LIFO.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	// Дожидаемся фоновых компенсаций в MinIO перед закрытием клиентов;
	// не уложившиеся в таймаут обрываются отменой их контекста.
	if err := a.imagesInfra.WaitForCleanup(shutdownCtx); err != nil {
		a.logger.Warnf("MinIO cleanup error: %v", err)
	} else {
		a.logger.Infof("MinIO cleanup completed")
	}
	a.cleanupCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("resource shutdown finished with errors: %v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
