package zenstore

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type RedisSettings struct {
	Address  string
	Password string
	DB       int
}

type TelemetrySettings struct {
	Project  string
	Endpoint string
	APIKey   string
}

type PubSubSettings struct {
	ProjectID    string
	Topic        string
	Subscription string
}

// Settings is the typed view over the viper configuration the framework and
// factory consume.
type Settings struct {
	ClusterAddress string
	Database       string
	Debug          bool
	CacheTTL       time.Duration
	Redis          RedisSettings
	Telemetry      TelemetrySettings
	PubSub         PubSubSettings
}

// initializeViper reads ./configs/<env>.json, with environment variables
// (dots become underscores) overriding file values. A missing file is fine
// when everything arrives through the environment.
func initializeViper() (*viper.Viper, error) {
	v := viper.New()
	v.AddConfigPath("./configs")
	v.SetConfigType("json")

	env := os.Getenv("env")
	if env == "" {
		env = "default"
	}
	v.SetConfigName(env)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return v, nil
}

func LoadSettings(v *viper.Viper) (*Settings, error) {
	v.SetDefault("cache.ttl", 5*time.Minute)

	s := &Settings{
		ClusterAddress: v.GetString("mongo.uri"),
		Database:       v.GetString("mongo.database"),
		Debug:          v.GetBool("debug"),
		CacheTTL:       v.GetDuration("cache.ttl"),
		Redis: RedisSettings{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Telemetry: TelemetrySettings{
			Project:  v.GetString("telemetry.project"),
			Endpoint: v.GetString("telemetry.endpoint"),
			APIKey:   v.GetString("telemetry.apikey"),
		},
		PubSub: PubSubSettings{
			ProjectID:    v.GetString("pubsub.projectid"),
			Topic:        v.GetString("pubsub.topic"),
			Subscription: v.GetString("pubsub.subscription"),
		},
	}

	if s.ClusterAddress == "" {
		return nil, fmt.Errorf("zenstore: mongo.uri is required")
	}
	if s.Database == "" {
		return nil, fmt.Errorf("zenstore: mongo.database is required")
	}

	return s, nil
}
