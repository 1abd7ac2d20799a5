package main

import (
	// Go Internal Packages
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Local Packages
	config "station-stream/config"
	connect "station-stream/connect"
	errors "station-stream/errors"
	helpers "station-stream/helpers"
	kafka "station-stream/kafka"
	mongodb "station-stream/repositories/mongodb"
	redis "station-stream/repositories/redis"
	processors "station-stream/services/processors"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	"github.com/cenkalti/backoff/v5"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const startupRetries = 5

type flags struct {
	command    string
	configPath string
	dryRun     bool
}

func parseFlags() flags {
	configPathMsg := "Path to the application config file"
	configPath := kingpin.Flag("config", configPathMsg).Short('c').Default("config.yml").String()

	kingpin.Command("consume", "Consume station records into MongoDB").Default()
	provision := kingpin.Command("provision", "Create the stations JDBC source connector if it does not exist")
	dryRun := provision.Flag("dry-run", "Print the connector document instead of sending it").Bool()

	command := kingpin.Parse()
	return flags{command: command, configPath: *configPath, dryRun: *dryRun}
}

// LoadConfig loads the default configuration and overrides it with the config file
// specified by the path defined in the config flag
func LoadConfig(configPath string) *koanf.Koanf {
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if configPath != "" {
		_ = k.Load(file.Provider(configPath), yaml.Parser())
	}
	return k
}

// LoadSecrets Loads the secret variables and overrides the config
func LoadSecrets(k config.Config) config.Config {
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		k.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if registry := os.Getenv("SCHEMA_REGISTRY_URL"); registry != "" {
		k.Kafka.SchemaRegistry = registry
	}
	if mongoURI := os.Getenv("MONGO_URI"); mongoURI != "" {
		k.Mongo.URI = mongoURI
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		k.Redis.Password = redisPassword
	}
	if jdbcPassword := os.Getenv("CONNECT_JDBC_PASSWORD"); jdbcPassword != "" {
		k.Connect.JDBCPassword = jdbcPassword
	}
	if isProdMode := os.Getenv("IS_PROD_MODE"); isProdMode != "" {
		k.IsProdMode = isProdMode == "true"
	}
	return k
}

func buildLogger(appKonf config.Config) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(appKonf.Logger.Level))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = appKonf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	return logger
}

func main() {
	f := parseFlags()
	k := LoadConfig(f.configPath)
	appKonf := config.Config{}

	// Unmarshalling config into struct
	err := k.Unmarshal("", &appKonf)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Update and Validate config before starting
	appKonf = LoadSecrets(appKonf)
	if err = appKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !appKonf.IsProdMode {
		k.Print()
	}

	logger := buildLogger(appKonf)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch f.command {
	case "provision":
		err = provision(ctx, appKonf, f.dryRun, logger)
	default:
		err = consume(ctx, appKonf, logger)
	}
	if err != nil {
		logger.Fatal("station-stream failed", zap.String("command", f.command), zap.Error(err))
	}
}

func provision(ctx context.Context, appKonf config.Config, dryRun bool, logger *zap.Logger) error {
	connector := connect.StationsConnector(appKonf.Connect)
	if dryRun {
		return helpers.PrintJSON(os.Stdout, connector)
	}

	client := connect.NewClient(appKonf.Connect.URL, appKonf.Connect.Timeout, logger)
	_, err := client.EnsureConnector(ctx, connector)
	return err
}

func consume(ctx context.Context, appKonf config.Config, logger *zap.Logger) error {
	// Mongo Connection
	mongoClient, err := retryStartup(ctx, logger, "mongo", func() (*mongo.Client, error) {
		return mongodb.Connect(ctx, appKonf.Mongo.URI)
	})
	if err != nil {
		return errors.UnavailableErr("mongo", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	// Redis Connection
	redisClient, err := retryStartup(ctx, logger, "redis", func() (*goredis.Client, error) {
		return redis.Connect(ctx, appKonf.Redis.URI, appKonf.Redis.Password)
	})
	if err != nil {
		return errors.UnavailableErr("redis", err)
	}
	defer func() {
		_ = redisClient.Close()
	}()

	stationRepo := mongodb.NewStationRepository(mongoClient, appKonf.Mongo.Database)
	dlQueue := redis.NewDeadLetterQueue(redisClient, logger, appKonf.Redis.DeadLetterList)
	handler := &processors.DeadLetterHandler{
		Next:   processors.NewStationProcessor(logger, stationRepo),
		DLQ:    dlQueue,
		Logger: logger,
	}

	metrics := kprom.NewMetrics("station_stream")
	conf := appKonf.Kafka.ConsumerConfig()
	pattern := appKonf.Kafka.TopicPattern

	manager, err := kafka.NewSubscriptionManager(&conf, pattern, logger, kafka.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer manager.Close()

	if pinger, ok := manager.Client.(interface{ Ping(context.Context) error }); ok {
		if _, err := retryStartup(ctx, logger, "kafka", func() (struct{}, error) {
			return struct{}{}, pinger.Ping(ctx)
		}); err != nil {
			return errors.UnavailableErr("kafka", err)
		}
	}

	if appKonf.Metrics.Addr != "" {
		go serveMetrics(ctx, appKonf.Metrics.Addr, metrics, logger)
	}

	loop := kafka.NewPollLoop(pattern, manager, handler, &conf, logger)
	return loop.Run(ctx)
}

func serveMetrics(ctx context.Context, addr string, metrics *kprom.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/metrics/kafka", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

// retryStartup retries a dependency connection with exponential backoff.
func retryStartup[T any](ctx context.Context, logger *zap.Logger, dependency string, op func() (T, error)) (T, error) {
	return backoff.Retry[T](ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(startupRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("dependency not ready, retrying",
				zap.String("dependency", dependency),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)
}
