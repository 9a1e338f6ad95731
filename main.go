package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	apimod "github.com/example/task-tracker-api/modules/api"
	cachemod "github.com/example/task-tracker-api/modules/cache"
	storemod "github.com/example/task-tracker-api/modules/store"
	trackermod "github.com/example/task-tracker-api/modules/tracker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	storeDriver := getEnv("STORE_DRIVER", storemod.DriverMongo)
	mongoURI := getEnv("MONGODB_URI", "mongodb://localhost:27017")
	mongoDB := getEnv("MONGODB_DB", "tracker")
	httpPort := getEnvInt("HTTP_PORT", 3000)
	cacheEnabled := getEnvBool("CACHE_ENABLED", true)
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	cacheTTL := getEnvDuration("CACHE_TTL", 5*time.Minute)
	cachePrefix := getEnv("CACHE_PREFIX", "tracker:")

	log.Println("=== Task Tracker API ===")
	log.Printf("Store: %s", storeDriver)
	if storeDriver == storemod.DriverMongo {
		log.Printf("MongoDB: %s (database: %s)", mongoURI, mongoDB)
	}
	log.Printf("HTTP Port: %d", httpPort)
	if cacheEnabled {
		log.Printf("Redis: %s (prefix: %s, TTL: %s)", redisAddr, cachePrefix, cacheTTL)
	} else {
		log.Println("Cache: disabled")
	}

	// Create modules
	storeModule := storemod.NewModule(storemod.Config{
		Driver:   storeDriver,
		MongoURI: mongoURI,
		Database: mongoDB,
	})
	trackerModule := trackermod.NewModule()
	apiModule := apimod.NewModule(httpPort)

	var cacheModule *cachemod.Module
	if cacheEnabled {
		cacheModule = cachemod.NewModule(cachemod.Config{
			RedisAddr: redisAddr,
			Prefix:    cachePrefix,
			TTL:       cacheTTL,
		})
		trackerModule.SetCache(cacheModule)
		apiModule.SetCache(cacheModule)
	}
	trackerModule.SetStore(storeModule)
	apiModule.SetTracker(trackerModule)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Register modules in dependency order
	app.Register(storeModule)
	if cacheModule != nil {
		app.Register(cacheModule)
	}
	app.Register(trackerModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	log.Println("=== Application Started ===")
	log.Printf("API available at http://localhost:%d", httpPort)
	log.Println("Endpoints:")
	log.Println("  GET    /health           - Health check")
	log.Println("  GET    /users            - List users (where/select/sort/skip/limit/count)")
	log.Println("  POST   /users            - Create user")
	log.Println("  GET    /users/:id        - Get user")
	log.Println("  PUT    /users/:id        - Replace user (cascades pendingTasks diff)")
	log.Println("  DELETE /users/:id        - Delete user (unassigns its tasks)")
	log.Println("  GET    /tasks            - List tasks (default limit 100)")
	log.Println("  POST   /tasks            - Create task")
	log.Println("  GET    /tasks/:id        - Get task")
	log.Println("  PUT    /tasks/:id        - Replace task (cascades reassignment)")
	log.Println("  DELETE /tasks/:id        - Delete task (removed from owner)")
	if cacheEnabled {
		log.Println("  GET    /cache/stats      - Cache statistics")
		log.Println("  POST   /cache/stats/reset - Reset cache statistics")
	}
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown using gelmium/graceful-shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
