package config

// Environment variables read by parseEnv.
const (
	EnvSecretKey      = "ACCESS_SECRET_TOKEN"
	EnvDatabaseDSN    = "GOPHAUTH_DATABASE_DSN"
	EnvStorageBackend = "GOPHAUTH_STORAGE_BACKEND"
	EnvS3RootPassword = "GOPHAUTH_S3_ROOT_PASSWORD"
)

// parseEnv overlays secrets and deployment-specific values from the
// environment. Empty variables are ignored.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	bind := map[string]*string{
		EnvSecretKey:      &config.SecretKey,
		EnvDatabaseDSN:    &config.DatabaseDSN,
		EnvStorageBackend: &config.StorageBackend,
		EnvS3RootPassword: &config.S3RootPassword,
	}
	for name, dst := range bind {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
}
