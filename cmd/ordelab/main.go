package main

import (
	"context"
	"database/sql"

	config "github.com/davicafu/ordelab/internal/config"
	infraEvents "github.com/davicafu/ordelab/internal/infra/events"
	"github.com/davicafu/ordelab/internal/infra/relayer"
	"github.com/davicafu/ordelab/internal/ordering/application"
	orderingDomain "github.com/davicafu/ordelab/internal/ordering/domain"
	inboundEvents "github.com/davicafu/ordelab/internal/ordering/infra/inbound/events"
	orderingHttp "github.com/davicafu/ordelab/internal/ordering/infra/inbound/http"
	chAnalytics "github.com/davicafu/ordelab/internal/ordering/infra/outbound/analytics/clickhouse"
	orderingCache "github.com/davicafu/ordelab/internal/ordering/infra/outbound/cache"
	mongoRepo "github.com/davicafu/ordelab/internal/ordering/infra/outbound/db/mongodb"
	postgresRepo "github.com/davicafu/ordelab/internal/ordering/infra/outbound/db/postgre"
	sqliteRepo "github.com/davicafu/ordelab/internal/ordering/infra/outbound/db/sqlite"

	"github.com/davicafu/ordelab/pkg/logger"
	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	// _ "github.com/mattn/go-sqlite3" // requires gcc
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init()          // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx := context.Background()
	cfg := config.LoadConfig()

	registry := sharedEvents.NewOrderingRegistry()

	// ---------------- DB ----------------
	var (
		db           *sql.DB
		orderRepo    orderingDomain.OrderRepository
		buyerRepo    orderingDomain.BuyerRepository
		outboxStore  sharedDomain.OutboxStore
		outboxSource relayer.OutboxSource
		dedupStore   sharedDomain.ClientRequestStore
		err          error
	)

	if cfg.PostgresDSN != "" {
		log.Info("🐘 Usando Postgres como persistencia")
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		if err := postgresRepo.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}

		orderRepo = postgresRepo.NewOrderRepoPostgres(db)
		buyerRepo = postgresRepo.NewBuyerRepoPostgres(db)
		outboxRepo := postgresRepo.NewOutboxRepoPostgres(db, registry)
		outboxStore, outboxSource = outboxRepo, outboxRepo
		dedupStore = postgresRepo.NewClientRequestRepoPostgres(db)
	} else {
		log.Info("📦 Usando SQLite como persistencia", zap.String("path", cfg.SQLitePath))
		db, err = sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}

		orderRepo = sqliteRepo.NewOrderRepoSQLite(db)
		buyerRepo = sqliteRepo.NewBuyerRepoSQLite(db)
		outboxRepo := sqliteRepo.NewOutboxRepoSQLite(db, registry)
		outboxStore, outboxSource = outboxRepo, outboxRepo
		dedupStore = sqliteRepo.NewClientRequestRepoSQLite(db)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}

	// Con Mongo configurado el relayer lee de su outbox (despliegues donde
	// otros servicios escriben ahí); el local sigue siendo el de SQL.
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Warn("⚠️ Mongo no disponible, el relayer usa el outbox local", zap.Error(err))
		} else {
			defer mongoClient.Disconnect(ctx)
			outboxSource = mongoRepo.NewOutboxRepoMongoDB(mongoClient, "ordelab")
			log.Info("✅ Mongo conectado, relayer sobre su outbox")
		}
	}

	// ---------------- Cache ----------------
	var cacheInstance orderingDomain.OrderCache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		cacheInstance = orderingCache.NewInMemoryOrderCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	} else {
		cacheInstance = orderingCache.NewRedisOrderCache(rdb, cfg.CacheTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// ---------------- Events ---------------
	var publisher sharedBus.EventPublisher
	var subscriber sharedBus.Subscriber

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		kafkaBus := infraEvents.NewKafkaEventBus(cfg.KafkaBrokers, cfg.BusName, cfg.RetryCount, log)
		defer kafkaBus.Close()
		publisher = kafkaBus

		subscriber = infraEvents.NewKafkaSubscriber(cfg.KafkaBrokers, cfg.BusName, cfg.QueueName, registry, log)
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		inMemoryBus := infraEvents.NewInMemoryEventBus(registry, log)
		publisher = inMemoryBus
		subscriber = inMemoryBus.Queue(cfg.QueueName)
	}

	// --------------- Servicio --------------
	dispatcher := application.NewDomainDispatcher(log)
	uow := application.NewUnitOfWork(db, dispatcher, outboxStore, publisher, log)

	eventHandlers := application.NewOrderEventHandlers(orderRepo, buyerRepo, outboxStore, log)
	eventHandlers.Register(dispatcher)

	orderService := application.NewOrderService(uow, orderRepo, cacheInstance, log)
	commands := application.NewIdentifiedOrderCommands(log, dedupStore, orderService)

	// Consumidor de eventos entrantes (stock, pagos, periodo de gracia).
	orderConsumer := inboundEvents.NewOrderConsumer(commands, log)
	orderConsumer.Register(subscriber)
	subscriber.Start(ctx)
	defer subscriber.Close()

	// ------------- Watchdog ---------------
	watchdog := application.NewGracePeriodWatchdog(orderRepo, publisher, cfg.GracePeriod, cfg.CheckInterval, log)
	go watchdog.Start(ctx)

	// ------------ Outbox relayer -----------
	// Se podría ejecutar externamente
	var eventLog sharedDomain.PublishedEventLog
	if cfg.ClickHouse != "" {
		chRepo, err := chAnalytics.NewEventLogRepo(cfg.ClickHouse, "ordelab")
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, sin analítica de eventos", zap.Error(err))
		} else if err := chRepo.InitSchema(); err != nil {
			log.Warn("⚠️ No se pudo crear el esquema de ClickHouse", zap.Error(err))
		} else {
			eventLog = chRepo
			log.Info("✅ ClickHouse conectado, analítica de eventos habilitada")
		}
	}

	outboxWorker := relayer.NewOutboxWorker(outboxSource, publisher, eventLog,
		cfg.OutboxPeriod, cfg.OutboxMargin, cfg.OutboxLimit, log)
	go outboxWorker.Start(ctx)

	// ---------------- HTTP ----------------
	orderHandler := orderingHttp.NewOrderHandler(commands, orderService)
	router := gin.Default()
	orderingHttp.RegisterOrderRoutes(router, orderHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server: %v", zap.Error(err))
	}
}
