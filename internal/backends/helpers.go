package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"faucetdrops/internal/backends/ddb"
	"faucetdrops/internal/ports"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	redisbackend "faucetdrops/internal/backends/redis"
	sqlitebackend "faucetdrops/internal/backends/sqlite"
)

const (
	CacheBackendEnvKey = "CACHE_BACKEND"
	JobBackendEnvKey   = "JOB_BACKEND"
	BackendDDB         = "ddb"
	BackendRedis       = "redis"
	BackendSQLite      = "sqlite"

	DDBEndpointKey  = "DDB_ENDPOINT"
	DDBTableKey     = "DDB_TABLE"
	DefaultDDBTable = "faucetdrops_cache"

	SQLitePathKey     = "SQLITE_PATH"
	DefaultSQLitePath = "./faucetdrops.db"

	RedisHost   = "REDIS_HOST"
	RedisPort   = "REDIS_PORT"
	RedisUser   = "REDIS_USER"
	RedisPass   = "REDIS_PASS"
	RedisTLS    = "REDIS_SSL"
	RedisDBNum  = "REDIS_DB_NUM"
	RedisCAFile = "REDIS_CA_FILE"
)

// CacheBackendFromEnv constructs the remote CacheStore based on environment variables.
// Supported backends are "ddb" (DynamoDB), "redis" (Redis) and "sqlite" (SQLite file).
// It first checks the "CACHE_BACKEND" env var to determine which backend to use. Depending on the backend,
// it reads additional env vars.
// Default to BackendDDB if unspecified or unrecognized.
func CacheBackendFromEnv() (cacheStore ports.CacheStore, err error) {
	backend := os.Getenv(CacheBackendEnvKey)
	switch backend {
	case BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redisClientFromEnv()
		if err != nil {
			return nil, err
		}
		cacheStore = redisbackend.NewCacheStore(redisClient)

	case BackendSQLite:
		cacheStore, err = sqliteStoreFromEnv()
		if err != nil {
			return nil, err
		}

	case BackendDDB:
		fallthrough
	case "":
		fallthrough
	default:
		var ddbClient *dynamodb.Client
		ddbClient, err = ddbClientFromEnv()
		if err != nil {
			return nil, err
		}
		table := getenv(DDBTableKey, DefaultDDBTable)
		cacheStore = ddb.NewCacheStore(table, ddbClient)
	}
	return
}

// JobBackendFromEnv constructs the JobStore based on environment variables.
// It reads "JOB_BACKEND" and falls back to the cache backend choice when unset, so a single-backend
// deployment needs one setting only.
// Default to BackendDDB if unspecified or unrecognized.
func JobBackendFromEnv() (jobStore ports.JobStore, err error) {
	backend := getenv(JobBackendEnvKey, os.Getenv(CacheBackendEnvKey))
	switch backend {
	case BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redisClientFromEnv()
		if err != nil {
			return nil, err
		}
		jobStore = redisbackend.NewJobStore(redisClient)

	case BackendSQLite:
		jobStore, err = sqliteStoreFromEnv()
		if err != nil {
			return nil, err
		}

	case BackendDDB:
		fallthrough
	case "":
		fallthrough
	default:
		var ddbClient *dynamodb.Client
		ddbClient, err = ddbClientFromEnv()
		if err != nil {
			return nil, err
		}
		table := getenv(DDBTableKey, DefaultDDBTable)
		jobStore = ddb.NewJobStore(table, ddbClient)
	}
	return
}

var (
	sqliteOnce  sync.Once
	sqliteStore *sqlitebackend.Store
	sqliteErr   error

	redisOnce   sync.Once
	redisShared *redis.Client
	redisErr    error
)

// sqliteStoreFromEnv opens the SQLite file once; the cache and the job store share the handle.
func sqliteStoreFromEnv() (*sqlitebackend.Store, error) {
	sqliteOnce.Do(func() {
		sqliteStore, sqliteErr = sqlitebackend.Open(getenv(SQLitePathKey, DefaultSQLitePath))
	})
	return sqliteStore, sqliteErr
}

// ddbClientFromEnv creates a DynamoDB client from environment variables, if any.
func ddbClientFromEnv() (*dynamodb.Client, error) {
	var ddbEndpoint *string
	de := os.Getenv(DDBEndpointKey)
	if de != "" {
		ddbEndpoint = aws.String(de)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background())

	if err != nil {
		return nil, err
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ddbEndpoint != nil {
			// This is used for testing only locally
			o.BaseEndpoint = ddbEndpoint
			o.Region = getenv("AWS_REGION", "us-east-1")
			credProvider := credentials.NewStaticCredentialsProvider(
				getenv("AWS_ACCESS_KEY_ID", "x"),
				getenv("AWS_SECRET_ACCESS_KEY", "x"),
				"",
			)
			o.Credentials = credProvider
		}
	})
	return ddbClient, nil
}

// redisClientFromEnv returns the process-wide Redis client, creating it on first use.
func redisClientFromEnv() (*redis.Client, error) {
	redisOnce.Do(func() {
		redisShared, redisErr = newRedisClientFromEnv()
	})
	return redisShared, redisErr
}

// newRedisClientFromEnv creates a Redis client from environment variables, if any.
func newRedisClientFromEnv() (*redis.Client, error) {
	host := getenv(RedisHost, "localhost")
	port := getenv(RedisPort, "6379")
	user := os.Getenv(RedisUser)
	pass := os.Getenv(RedisPass)
	tlsEnabled := parseBoolean(getenv(RedisTLS, "false"))
	dbNumStr := getenv(RedisDBNum, "0")
	dbNum, err := strconv.Atoi(dbNumStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis DB number: %w", err)
	}

	var tlsConfig *tls.Config
	if tlsEnabled {
		tlsConfig, err = redisTLSConfig(os.Getenv(RedisCAFile))
		if err != nil {
			return nil, err
		}
	}

	redisConfig := redis.Options{
		Addr:      fmt.Sprintf("%s:%s", host, port),
		Username:  user,
		Password:  pass,
		DB:        dbNum,
		TLSConfig: tlsConfig,
	}
	redisClient := redis.NewClient(&redisConfig)
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

// redisTLSConfig trusts the system roots plus the PEM bundle at caFile, if given.
func redisTLSConfig(caFile string) (*tls.Config, error) {
	caCerts, err := x509.SystemCertPool()
	if err != nil || caCerts == nil {
		caCerts = x509.NewCertPool()
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read Redis CA file: %w", err)
		}
		if !caCerts.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    caCerts,
	}, nil
}
