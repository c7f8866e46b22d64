package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beka-birhanu/vinom-swarm/api"
	api_i "github.com/beka-birhanu/vinom-swarm/api/i"
	roomapi "github.com/beka-birhanu/vinom-swarm/api/room"
	"github.com/beka-birhanu/vinom-swarm/config"
	"github.com/beka-birhanu/vinom-swarm/infrastruture/codestore"
	"github.com/beka-birhanu/vinom-swarm/infrastruture/pubsub"
	"github.com/beka-birhanu/vinom-swarm/infrastruture/repo"
	"github.com/beka-birhanu/vinom-swarm/logger"
	"github.com/beka-birhanu/vinom-swarm/service"
	"github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/beka-birhanu/vinom-swarm/socket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const shutdownTimeout = 10 * time.Second

// Global variables for dependencies
var (
	redisClient      *redis.Client
	mongoClient      *mongo.Client
	codeStore        *codestore.RedisCodeStore
	eventPublisher   *pubsub.RedisPublisher
	turnHistory      *repo.TurnHistoryRepo
	roomRegistry     *service.RoomRegistry
	socketManager    *socket.ServerSocketManager
	coordinator      *service.Coordinator
	dispatcher       *service.Dispatcher
	statusController api_i.Controller
	router           *api.Router
	appLogger        *logger.Logger
)

func newLogger(prefix, color string) *logger.Logger {
	l, err := logger.New(prefix, color, os.Stdout)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating %s logger: %v", prefix, err))
		os.Exit(1)
	}
	return l
}

func initRedis(ctx context.Context) {
	if config.Envs.RedisAddr == "" {
		appLogger.Warning("REDIS_ADDR not set, running without code reservation and event mirror")
		return
	}

	redisClient = redis.NewClient(&redis.Options{
		Addr:     config.Envs.RedisAddr,
		Password: config.Envs.RedisPassword,
		DB:       config.Envs.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Error(fmt.Sprintf("Redis ping failed: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Connected to Redis")
}

func initCodeStore() {
	if redisClient == nil {
		return
	}

	var err error
	codeStore, err = codestore.NewRedisCodeStore(redisClient, &codestore.Options{
		Prefix: config.Envs.RedisPrefix,
		TTL:    config.Envs.CodeReservationTTL,
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating room code store: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Room code store initialized")
}

func initEventPublisher() {
	if redisClient == nil {
		return
	}

	var err error
	eventPublisher, err = pubsub.NewRedisPublisher(redisClient, newLogger("PUBSUB", config.ColorBlue), &pubsub.Options{
		Prefix: config.Envs.RedisPrefix,
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating event publisher: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Event publisher initialized")
}

func initMongo(ctx context.Context) {
	if config.Envs.MongoURI == "" {
		appLogger.Warning("MONGO_URI not set, running without turn history")
		return
	}

	var err error
	mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(config.Envs.MongoURI))
	if err != nil {
		appLogger.Error(fmt.Sprintf("Failed to connect to MongoDB: %v", err))
		os.Exit(1)
	}
	if err = mongoClient.Ping(ctx, nil); err != nil {
		appLogger.Error(fmt.Sprintf("MongoDB ping failed: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Connected to MongoDB")
}

func initTurnHistory(ctx context.Context) {
	if mongoClient == nil {
		return
	}

	var err error
	turnHistory, err = repo.NewTurnHistoryRepo(mongoClient, config.Envs.MongoDB, "turns")
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating turn history: %v", err))
		os.Exit(1)
	}
	if err = turnHistory.EnsureIndexes(ctx); err != nil {
		appLogger.Error(fmt.Sprintf("Creating turn history indexes: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Turn history initialized")
}

func initRoomRegistry() {
	c := service.RegistryConfig{
		MaxPlayers: config.Envs.MaxPlayers,
		Logger:     newLogger("REGISTRY", config.ColorCyan),
	}
	if codeStore != nil {
		c.Reserver = codeStore
	}

	var err error
	roomRegistry, err = service.NewRoomRegistry(c)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating room registry: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Room registry initialized")
}

// initSocketManager creates the websocket manager. Its handlers reach the
// dispatcher, which is created afterwards because the coordinator broadcasts
// through this manager.
func initSocketManager() {
	var err error
	socketManager, err = socket.NewServerSocketManager(
		socket.ServerWithReadLimit(config.Envs.WSReadLimit),
		socket.ServerWithLogger(newLogger("SOCKET", config.ColorYellow)),
		socket.ServerWithClientRequestHandler(func(ctx context.Context, connID string, intent string, data json.RawMessage) any {
			return dispatcher.Dispatch(ctx, connID, service.Intent(intent), data)
		}),
		socket.ServerWithClientDisconnectHandler(func(connID string) {
			dispatcher.Disconnect(connID)
		}),
	)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating socket manager: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Socket manager initialized")
}

func initCoordinator() {
	c := service.CoordinatorConfig{
		Registry:    roomRegistry,
		Broadcaster: socketManager,
		Logger:      newLogger("COORDINATOR", config.ColorPurple),
	}
	if eventPublisher != nil {
		c.Publishers = []i.Publisher{eventPublisher}
	}
	if turnHistory != nil {
		c.Recorder = turnHistory
	}

	var err error
	coordinator, err = service.NewCoordinator(c)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating coordinator: %v", err))
		os.Exit(1)
	}

	dispatcher, err = service.NewDispatcher(coordinator, newLogger("DISPATCHER", config.ColorMagenta))
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating dispatcher: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Coordinator initialized")
}

func initStatusController() {
	var err error
	var opts []roomapi.StatusOption
	if turnHistory != nil {
		opts = append(opts, roomapi.StatusWithTurnHistory(turnHistory))
	}
	statusController, err = roomapi.NewStatusController(roomRegistry, opts...)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating status controller: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Status controller initialized")
}

func initRouter() {
	router = api.NewRouter(api.Config{
		Addr:        fmt.Sprintf("%s:%v", config.Envs.HostIP, config.Envs.RESTPort),
		BaseURL:     "/api",
		Controllers: []api_i.Controller{statusController},
		SocketPath:  "/ws",
		Socket:      socketManager,
		Mode:        config.Envs.GinMode,
		Logger:      newLogger("REST", config.ColorRed),
	})
	appLogger.Info("Router initialized")
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := router.Shutdown(ctx); err != nil {
		appLogger.Error(fmt.Sprintf("Stopping HTTP server: %v", err))
	}
	socketManager.Stop()

	if eventPublisher != nil {
		eventPublisher.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			appLogger.Error(fmt.Sprintf("Closing Redis client: %v", err))
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(ctx); err != nil {
			appLogger.Error(fmt.Sprintf("Disconnecting MongoDB: %v", err))
		}
	}
	appLogger.Info("Shutdown complete")
}

func main() {
	appLogger, _ = logger.New("APP", config.ColorGreen, os.Stdout)

	if err := config.Init(); err != nil {
		appLogger.Error(fmt.Sprintf("Loading configuration: %v", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	initRedis(connectCtx)
	initMongo(connectCtx)
	initTurnHistory(connectCtx)
	cancel()

	initCodeStore()
	initEventPublisher()
	initRoomRegistry()
	if codeStore != nil {
		go roomRegistry.KeepReservations(ctx, config.Envs.CodeReservationTTL/3)
	}
	initSocketManager()
	initCoordinator()
	initStatusController()
	initRouter()

	errs := make(chan error, 1)
	go func() {
		errs <- router.Run()
	}()

	select {
	case err := <-errs:
		if err != nil {
			appLogger.Error(fmt.Sprintf("Starting server: %v", err))
			shutdown()
			os.Exit(1)
		}
	case <-ctx.Done():
		appLogger.Info("Shutting down")
	}
	shutdown()
}
