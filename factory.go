package zenstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ClientConnector performs the connection handshake. The default one dials
// and pings; tests inject their own to keep connection lifecycles isolated.
type ClientConnector func(ctx context.Context, clientOpts *options.ClientOptions) (*mongo.Client, error)

// ConnectionRegistry caches one connected client per cluster address so a
// process never opens redundant connections to the same cluster. It is an
// explicit dependency, not package state: whoever composes the application
// decides how many registries exist and how long they live. Cached clients
// have no eviction; they live until Close.
type ConnectionRegistry struct {
	mu      sync.Mutex
	clients map[string]*mongo.Client
	connect ClientConnector
	monitor *event.CommandMonitor
	logger  *Logger
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		clients: make(map[string]*mongo.Client),
		connect: defaultConnector,
		logger:  NewNopLogger(),
	}
}

// SetConnector replaces the handshake function. Call before the first Client
// lookup.
func (cr *ConnectionRegistry) SetConnector(connect ClientConnector) {
	if connect != nil {
		cr.connect = connect
	}
}

// SetMonitor attaches a command monitor (e.g. the otelmongo one) to every
// client the registry creates from then on.
func (cr *ConnectionRegistry) SetMonitor(monitor *event.CommandMonitor) {
	cr.monitor = monitor
}

func (cr *ConnectionRegistry) SetLogger(logger *Logger) {
	if logger != nil {
		cr.logger = logger
	}
}

// Client returns the cached client for clusterAddress, performing the
// handshake on first use. A failed handshake leaves the cache untouched so
// the next call retries. The lock is held across the handshake: two
// concurrent first lookups must not both dial.
func (cr *ConnectionRegistry) Client(ctx context.Context, clusterAddress string) (*mongo.Client, error) {
	if clusterAddress == "" {
		return nil, fmt.Errorf("zenstore: cluster address is required")
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if client, ok := cr.clients[clusterAddress]; ok {
		return client, nil
	}

	clientOpts := options.Client().ApplyURI(clusterAddress).SetRegistry(MongoRegistry)
	if cr.monitor != nil {
		clientOpts.SetMonitor(cr.monitor)
	}

	client, err := cr.connect(ctx, clientOpts)
	if err != nil {
		return nil, &ConnectionError{Address: clusterAddress, Err: err}
	}

	cr.clients[clusterAddress] = client
	cr.logger.Info("cluster connection established", "address", clusterAddress)

	return client, nil
}

func defaultConnector(ctx context.Context, clientOpts *options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// Ping checks every cached connection.
func (cr *ConnectionRegistry) Ping(ctx context.Context) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	for address, client := range cr.clients {
		if err := client.Ping(ctx, readpref.Nearest()); err != nil {
			return fmt.Errorf("zenstore: ping %q: %w", address, err)
		}
	}

	return nil
}

func (cr *ConnectionRegistry) Close(ctx context.Context) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	var firstErr error
	for address, client := range cr.clients {
		if err := client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("zenstore: disconnect %q: %w", address, err)
		}
		delete(cr.clients, address)
	}

	return firstErr
}

type RepositoryConfig struct {
	ClusterAddress string
	Database       string
	Collection     string
	Debug          bool
}

// NewRepository resolves (or establishes) the cluster connection through the
// registry and binds a repository to the database and collection.
func NewRepository[T any](ctx context.Context, registry *ConnectionRegistry, cfg RepositoryConfig) (*MongoRepository[T], error) {
	if registry == nil {
		return nil, fmt.Errorf("zenstore: connection registry is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("zenstore: database name is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("zenstore: collection name is required")
	}

	client, err := registry.Client(ctx, cfg.ClusterAddress)
	if err != nil {
		return nil, err
	}

	repo := NewMongoRepository[T](client, cfg.Database, cfg.Collection).WithLogger(registry.logger)
	if cfg.Debug {
		repo = repo.WithDebug(true)
	}

	return repo, nil
}
