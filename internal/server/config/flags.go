package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/filingapi/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8888")
//	-grpc string gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-fs string  storage protocol, "file" or "s3"
//	-root string storage root (directory or bucket)
//	-u string   S3 root user
//	-p string   S3 root password
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-x duration expiration check (e.g., "2m")
//	-w int      max concurrent validations
//	-fi string  institution API URL prefix
//	-m string   mail API URL
//	-l string   log level
//	-sign, -reopen, -create string  comma separated action validators
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-d", "-s", "-fs", "-root", "-u", "-p", "-g", "-e", "-x", "-w", "-fi", "-m", "-sign", "-reopen", "-create", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.FSProtocol, "fs", config.FSProtocol, "storage protocol (file|s3)")
	fs.StringVar(&config.FSRoot, "root", config.FSRoot, "storage root directory or bucket")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&config.ExpiredSubmissionCheck, "x", config.ExpiredSubmissionCheck, "expired submission check")
	fs.IntVar(&config.MaxConcurrentValidations, "w", config.MaxConcurrentValidations, "max concurrent validations")
	fs.StringVar(&config.UserFiAPIURL, "fi", config.UserFiAPIURL, "institution API URL prefix")
	fs.StringVar(&config.MailAPIURL, "m", config.MailAPIURL, "mail API URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")
	fs.Var((*flagx.List)(&config.SignValidations), "sign", "sign validators, comma separated")
	fs.Var((*flagx.List)(&config.ReopenValidations), "reopen", "reopen validators, comma separated")
	fs.Var((*flagx.List)(&config.CreateValidations), "create", "create validators, comma separated")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
