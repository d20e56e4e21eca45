package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env          string          `yaml:"env" env-default:"local"`
	PostgresCfg  PostgresConfig  `yaml:"postgres"`
	RedisCfg     RedisConfig     `yaml:"redis"`
	NatsCfg      NatsConfig      `yaml:"nats"`
	BusCfg       BusConfig       `yaml:"bus"`
	BinanceCfg   BinanceConfig   `yaml:"binance"`
	IntakeCfg    IntakeConfig    `yaml:"intake"`
	ExecutorCfg  ExecutorConfig  `yaml:"executor"`
	BroadcastCfg BroadcastConfig `yaml:"broadcast"`
	AuthCfg      AuthConfig      `yaml:"auth"`
	VaultCfg     VaultConfig     `yaml:"vault"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	Username string `yaml:"username"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database"`
}

// DSN builds a pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		p.Username, p.Password, p.Host, p.Port, p.Database)
}

type RedisConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"6379"`
	Db       int    `yaml:"db"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

type NatsConfig struct {
	URL string `yaml:"url" env-default:"nats://localhost:4222"`
}

type BusConfig struct {
	// Backend selects the pub/sub transport: "redis" or "nats".
	Backend string `yaml:"backend" env-default:"redis"`
}

type BinanceConfig struct {
	BaseURL        string `yaml:"base_url" env-default:"https://testnet.binance.vision"`
	RecvWindowMs   int64  `yaml:"recv_window_ms" env-default:"5000"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env-default:"10"`
}

type IntakeConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type ExecutorConfig struct {
	Address string `yaml:"address" env-default:":8082"`
}

type BroadcastConfig struct {
	Address string `yaml:"address" env-default:":8081"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type VaultConfig struct {
	// EncryptionKey is the hex-encoded AES-256 key. Empty means the stored
	// credentials are plain base64.
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config file is empty")
	}

	return MustLoadByPath(path)
}

func MustLoadByPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found " + path)
	}

	var config Config

	if err := cleanenv.ReadConfig(path, &config); err != nil {
		panic("failed to read config " + err.Error())
	}

	return &config
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
