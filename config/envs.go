package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	HostIP             string        // Host IP for the server
	RESTPort           int           // Port for the REST API and the websocket endpoint
	GinMode            string        // Mode for the Gin framework (e.g., release, debug, test)
	MaxPlayers         int           // Capacity of a room for non-spectators
	RedisAddr          string        // Redis address; empty disables the event mirror and code reservation
	RedisPassword      string        // Password for Redis
	RedisDB            int           // Redis logical database
	RedisPrefix        string        // Prefix of every Redis key and channel
	CodeReservationTTL time.Duration // Lifetime of a room code reserved in Redis
	MongoURI           string        // MongoDB URI; empty disables the turn history
	MongoDB            string        // Name of the database holding the turn history
	WSReadLimit        int64         // Maximum inbound websocket frame size in bytes
}

// Envs holds the application's configuration once Init has run.
var Envs Config

// Init loads the .env file, if any, and fills Envs from the environment.
func Init() error {
	// Load .env file if available
	if err := godotenv.Load(); err != nil {
		log.Printf("[APP] [INFO] .env file not found or could not be loaded: %v", err)
	}

	c, err := Load()
	if err != nil {
		return err
	}
	Envs = c
	return nil
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	var err error

	if c.HostIP, err = getEnv("HOST_IP"); err != nil {
		return Config{}, err
	}
	if c.RESTPort, err = getEnvAsInt("REST_PORT"); err != nil {
		return Config{}, err
	}
	if c.MaxPlayers, err = getEnvAsIntWithDefault("MAX_PLAYERS", 30); err != nil {
		return Config{}, err
	}
	if c.RedisDB, err = getEnvAsIntWithDefault("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	ttl, err := getEnvAsIntWithDefault("CODE_RESERVATION_TTL", 86400)
	if err != nil {
		return Config{}, err
	}
	readLimit, err := getEnvAsIntWithDefault("WS_READ_LIMIT", 4096)
	if err != nil {
		return Config{}, err
	}

	c.GinMode = getEnvWithDefault("GIN_MODE", "release")
	c.RedisAddr = getEnvWithDefault("REDIS_ADDR", "")
	c.RedisPassword = getEnvWithDefault("REDIS_PASSWORD", "")
	c.RedisPrefix = getEnvWithDefault("REDIS_PREFIX", "swarm")
	c.CodeReservationTTL = time.Duration(ttl) * time.Second
	c.MongoURI = getEnvWithDefault("MONGO_URI", "")
	c.MongoDB = getEnvWithDefault("MONGO_DB", "swarm")
	c.WSReadLimit = int64(readLimit)
	return c, nil
}

// getEnv retrieves the value of an environment variable or an error if not set.
func getEnv(key string) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return "", fmt.Errorf("environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsInt retrieves the value of an environment variable as an integer.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return value, nil
}

// getEnvAsIntWithDefault is getEnvAsInt with a fallback for unset variables.
func getEnvAsIntWithDefault(key string, defaultValue int) (int, error) {
	if _, exists := os.LookupEnv(key); !exists {
		return defaultValue, nil
	}
	return getEnvAsInt(key)
}

// getEnvWithDefault retrieves the value of an environment variable or returns a default value if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
