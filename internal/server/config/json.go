package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filingapi/internal/flagx"
	"github.com/dmitrijs2005/filingapi/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "120s" and integer nanoseconds are accepted.
//
// Every field is optional: absent keys leave the current value untouched,
// which lets a file override a handful of settings on top of the defaults.
type JsonConfig struct {
	EndpointAddrHTTP         *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC         *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN              *string         `json:"database_dsn"`
	SecretKey                *string         `json:"secret_key"`
	S3RootUser               *string         `json:"s3_root_user"`
	S3RootPassword           *string         `json:"s3_root_password"`
	S3Region                 *string         `json:"s3_region"`
	S3BaseEndpoint           *string         `json:"s3_base_endpoint"`
	FSProtocol               *string         `json:"fs_protocol"`
	FSRoot                   *string         `json:"fs_root"`
	SubmissionFileType       *string         `json:"submission_file_type"`
	SubmissionFileExtension  *string         `json:"submission_file_extension"`
	SubmissionFileSize       *int64          `json:"submission_file_size"`
	ExpiredSubmissionCheck   *timex.Duration `json:"expired_submission_check"`
	MaxConcurrentValidations *int            `json:"max_concurrent_validations"`
	MaxJSONGroupSize         *int            `json:"max_json_group_size"`
	MaxValidationErrors      *int            `json:"max_validation_errors"`
	ValidationBatchSize      *int            `json:"validation_batch_size"`
	ValidationBatchCount     *int            `json:"validation_batch_count"`
	UserFiAPIURL             *string         `json:"user_fi_api_url"`
	MailAPIURL               *string         `json:"mail_api_url"`
	SignValidations          []string        `json:"sign_validations"`
	ReopenValidations        []string        `json:"reopen_validations"`
	CreateValidations        []string        `json:"create_validations"`
	LogLevel                 *string         `json:"log_level"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flags. Without either flag nothing is loaded.
// An unreadable file or invalid JSON panics, as a misconfigured server must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.S3RootUser, c.S3RootUser)
	setIf(&config.S3RootPassword, c.S3RootPassword)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.FSProtocol, c.FSProtocol)
	setIf(&config.FSRoot, c.FSRoot)
	setIf(&config.SubmissionFileType, c.SubmissionFileType)
	setIf(&config.SubmissionFileExtension, c.SubmissionFileExtension)
	setIf(&config.SubmissionFileSize, c.SubmissionFileSize)
	if c.ExpiredSubmissionCheck != nil {
		config.ExpiredSubmissionCheck = c.ExpiredSubmissionCheck.Duration
	}
	setIf(&config.MaxConcurrentValidations, c.MaxConcurrentValidations)
	setIf(&config.MaxJSONGroupSize, c.MaxJSONGroupSize)
	setIf(&config.MaxValidationErrors, c.MaxValidationErrors)
	setIf(&config.ValidationBatchSize, c.ValidationBatchSize)
	setIf(&config.ValidationBatchCount, c.ValidationBatchCount)
	setIf(&config.UserFiAPIURL, c.UserFiAPIURL)
	setIf(&config.MailAPIURL, c.MailAPIURL)
	if c.SignValidations != nil {
		config.SignValidations = c.SignValidations
	}
	if c.ReopenValidations != nil {
		config.ReopenValidations = c.ReopenValidations
	}
	if c.CreateValidations != nil {
		config.CreateValidations = c.CreateValidations
	}
	setIf(&config.LogLevel, c.LogLevel)
}
