package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// serverFlags lists the short flags parseFlags understands; everything
// else in args is ignored.
var serverFlags = []string{
	"-a", "-m", "-v",
	"-k", "-f", "-d", "-q",
	"-s", "-t", "-i",
	"-x", "-w",
	"-n", "-o", "-T",
	"-u", "-p", "-b", "-K", "-g", "-e",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string    gRPC bind address (e.g. ":50051")
//	-m string    metrics/health bind address; empty disables it
//	-v string    log level (debug, info, warn, error)
//	-k string    storage backend: memory, file, postgres, sqlite, s3
//	-f string    users JSON file for the file backend
//	-d string    PostgreSQL DSN
//	-q string    SQLite database path
//	-s string    access token HMAC secret
//	-t duration  access token validity (e.g. 15m)
//	-i string    token issuer claim
//	-x string    password hasher: bcrypt or argon2id
//	-w int       bcrypt cost
//	-n int       failed attempts that trigger the lockout signal
//	-o duration  idle period after which the failure counter restarts; 0 disables
//	-T duration  per-request operation timeout; 0 disables
//	-u string    S3 access key
//	-p string    S3 secret key
//	-b string    S3 bucket
//	-K string    S3 object key holding the users collection
//	-g string    S3 region
//	-e string    S3 base endpoint (e.g. "http://127.0.0.1:9000/")
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC bind address")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics bind address")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend")
	fs.StringVar(&config.UsersFile, "f", config.UsersFile, "users file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SQLitePath, "q", config.SQLitePath, "sqlite path")

	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "access token secret")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.StringVar(&config.TokenIssuer, "i", config.TokenIssuer, "token issuer")

	fs.StringVar(&config.PasswordHasher, "x", config.PasswordHasher, "password hasher")
	fs.IntVar(&config.PasswordCost, "w", config.PasswordCost, "bcrypt cost")

	fs.IntVar(&config.LockoutThreshold, "n", config.LockoutThreshold, "lockout threshold")
	fs.DurationVar(&config.LockoutCooldown, "o", config.LockoutCooldown, "lockout cooldown")
	fs.DurationVar(&config.OperationTimeout, "T", config.OperationTimeout, "operation timeout")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Key, "K", config.S3Key, "S3 object key")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	return fs.Parse(flagx.FilterArgs(args, serverFlags))
}
