package config

import (
	"strings"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/env"
)

// Config is the process configuration handed to every component at construction.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Cappta   CapptaConfig
	Asaas    AsaasConfig
	GS1      GS1Config
	Auth     AuthConfig
	Storage  StorageConfig
	Pipeline PipelineConfig

	// EncryptionSecret protects credentials at rest (account api keys, vault values).
	EncryptionSecret string
	// InternalServiceKey authenticates service-level triggers such as batch lookups.
	InternalServiceKey string
}

type AppConfig struct {
	Host string
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
}

type CapptaConfig struct {
	BaseURL          string
	ResellerDocument string
}

type AsaasConfig struct {
	BaseURL string
}

type GS1Config struct {
	BaseURL string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type StorageConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
	PublicBaseURL   string
}

type PipelineConfig struct {
	Workers int
	FanOut  int
}

// Load reads the configuration from the environment (.env or process).
func Load() *Config {
	return &Config{
		App: AppConfig{
			Host: env.GetEnv("APP_HOST", "0.0.0.0"),
			Port: env.GetEnv("APP_PORT", "4000"),
			Env:  env.GetEnv("APP_ENV", "prod"),
		},
		Database: DatabaseConfig{
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		Cappta: CapptaConfig{
			BaseURL:          strings.TrimRight(env.GetEnv("CAPPTA_API_URL", "https://api.cappta.com.br"), "/"),
			ResellerDocument: env.GetEnv("CAPPTA_RESELLER_DOCUMENT", ""),
		},
		Asaas: AsaasConfig{
			BaseURL: strings.TrimRight(env.GetEnv("ASAAS_API_URL", "https://api.asaas.com/v3"), "/"),
		},
		GS1: GS1Config{
			BaseURL: strings.TrimRight(env.GetEnv("GS1_API_URL", "https://api.gs1br.org"), "/"),
		},
		Auth: AuthConfig{
			JWTSecret: env.GetEnv("AUTH_JWT_SECRET", ""),
			Issuer:    env.GetEnv("AUTH_JWT_ISSUER", ""),
		},
		Storage: StorageConfig{
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "us-east-1"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", "product-images"),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
			PublicBaseURL:   strings.TrimRight(env.GetEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		},
		Pipeline: PipelineConfig{
			Workers: env.GetEnvInt("PIPELINE_WORKERS", 3),
			FanOut:  env.GetEnvInt("PIPELINE_FANOUT", 8),
		},
		EncryptionSecret:   env.GetEnv("ENCRYPTION_SECRET", ""),
		InternalServiceKey: env.GetEnv("INTERNAL_SERVICE_KEY", ""),
	}
}

// Validate fails with a configuration error naming every missing key.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"DB_USER", c.Database.User},
		{"DB_NAME", c.Database.Name},
		{"CAPPTA_RESELLER_DOCUMENT", c.Cappta.ResellerDocument},
		{"ENCRYPTION_SECRET", c.EncryptionSecret},
		{"AUTH_JWT_SECRET", c.Auth.JWTSecret},
		{"INTERNAL_SERVICE_KEY", c.InternalServiceKey},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return apperror.Configuration(missing...)
	}
	return nil
}

// StorageEnabled reports whether object storage credentials are configured.
func (c *Config) StorageEnabled() bool {
	return c.Storage.AccessKeyID != "" && c.Storage.SecretAccessKey != "" && c.Storage.BucketName != ""
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}
