package zenstore

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/dig"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Framework is the composition root: it owns the connection registry, the
// configuration, the logger, and a small HTTP server exposing /health for
// orchestrators. Applications register their repositories and services into
// the dig container and start it.
type Framework struct {
	ioc           *dig.Container
	configuration *viper.Viper
	server        *gin.Engine
	registry      *ConnectionRegistry
	telemetry     *Telemetry
	logger        *Logger
	healthCheck   []func() (string, bool)
	corsConfig    *cors.Config
}

type FrameworkOption interface {
	run(fw *Framework)
}

// Telemetry plugs in as a framework option: traces are wired into the gin
// server and into every mongo client the registry creates.
func (t *Telemetry) run(fw *Framework) {
	if err := t.Setup(context.Background()); err != nil {
		log.Panic(err)
	}
	fw.telemetry = t
}

func NewFramework(opts ...FrameworkOption) *Framework {
	location, err := time.LoadLocation("UTC")
	if err != nil {
		panic(err)
	}
	time.Local = location

	v, err := initializeViper()
	if err != nil {
		log.Panic(err)
	}

	logger := NewLogger(v.GetBool("debug"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "X-Requested-With"}

	fw := &Framework{
		ioc:           dig.New(),
		configuration: v,
		server:        gin.Default(),
		registry:      NewConnectionRegistry(),
		logger:        logger,
		healthCheck:   make([]func() (string, bool), 0),
		corsConfig:    &corsConfig,
	}
	fw.registry.SetLogger(logger)

	for _, opt := range opts {
		opt.run(fw)
	}

	if fw.telemetry != nil {
		fw.registry.SetMonitor(fw.telemetry.MongoMonitor())
		fw.server.Use(fw.telemetry.GinMiddleware())
	}

	fw.server.Use(cors.New(*fw.corsConfig), RateLimitMiddleware(100, 1))

	fw.provide(func() *viper.Viper { return fw.configuration })
	fw.provide(func() *Logger { return fw.logger })
	fw.provide(func() *ConnectionRegistry { return fw.registry })

	fw.server.GET("/health", func(ctx *gin.Context) {
		list := make(map[string]bool)
		httpCode := http.StatusOK
		for _, item := range fw.healthCheck {
			name, status := item()
			list[name] = status
			if !status {
				httpCode = http.StatusServiceUnavailable
			}
		}
		ctx.JSON(httpCode, list)
	})

	return fw
}

func (fw *Framework) provide(constructor interface{}) {
	if err := fw.ioc.Provide(constructor); err != nil {
		log.Panic(err)
	}
}

// StoreBinding points registered constructors at a cluster and database; the
// collection stays a per-repository choice.
type StoreBinding struct {
	Registry       *ConnectionRegistry
	ClusterAddress string
	Database       string
}

// RegisterDocumentStore binds the framework to one cluster and database and
// adds a connection health check.
func (fw *Framework) RegisterDocumentStore(clusterAddress string, database string) {
	fw.provide(func() *StoreBinding {
		return &StoreBinding{
			Registry:       fw.registry,
			ClusterAddress: clusterAddress,
			Database:       database,
		}
	})

	fw.healthCheck = append(fw.healthCheck, func() (string, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := fw.registry.Client(ctx, clusterAddress); err != nil {
			return "MDB", false
		}
		return "MDB", fw.registry.Ping(ctx) == nil
	})
}

// RegisterCache provides a Cache implementation to registered constructors.
func (fw *Framework) RegisterCache(constructor interface{}) {
	fw.provide(constructor)
}

// RegisterRedisCache wires a Redis-backed cache from settings and adds its
// health check.
func (fw *Framework) RegisterRedisCache(address string, password string, db int, ttl time.Duration) {
	cache := NewRedisCache(address, password, db, ttl)

	fw.provide(func() Cache { return cache })

	fw.healthCheck = append(fw.healthCheck, func() (string, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return "RDS", cache.Ping(ctx) == nil
	})
}

// RegisterNotifier wires the Pub/Sub change-event publisher and adds its
// health check.
func (fw *Framework) RegisterNotifier(projectID string, topicName string, opts ...option.ClientOption) {
	fw.provide(func() (ChangePublisher, error) {
		return NewChangeNotifier(context.Background(), projectID, topicName, opts...)
	})

	fw.healthCheck = append(fw.healthCheck, func() (string, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		notifier, err := NewChangeNotifier(ctx, projectID, topicName, opts...)
		if err != nil {
			return "PUBSUB", false
		}
		defer notifier.Close()
		return "PUBSUB", true
	})
}

func (fw *Framework) RegisterRepository(constructor interface{}) {
	fw.provide(constructor)
}

func (fw *Framework) RegisterApplication(application interface{}) {
	fw.provide(application)
}

func (fw *Framework) Invoke(function interface{}) {
	if err := fw.ioc.Invoke(function); err != nil {
		log.Panic(err)
	}
}

func (fw *Framework) GetConfig(key string) string {
	return fw.configuration.GetString(key)
}

func (fw *Framework) ConfigureCORS(allowOrigins []string, allowCredentials bool) {
	if len(allowOrigins) > 0 {
		fw.corsConfig.AllowAllOrigins = false
		fw.corsConfig.AllowOrigins = allowOrigins
	}
	fw.corsConfig.AllowCredentials = allowCredentials
}

func (fw *Framework) AddHealthCheck(check func() (string, bool)) {
	fw.healthCheck = append(fw.healthCheck, check)
}

func (fw *Framework) Registry() *ConnectionRegistry {
	return fw.registry
}

func (fw *Framework) Start() error {
	port := os.Getenv("port")
	if port == "" {
		port = "8081"
	}
	return fw.server.Run(":" + port)
}

func RateLimitMiddleware(requests int, perSeconds int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Duration(perSeconds)*time.Second/time.Duration(requests)), requests)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
