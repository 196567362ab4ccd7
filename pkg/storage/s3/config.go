package s3

import "strings"

// Config holds S3 configuration
type Config struct {
	Endpoint        string `json:"endpoint"` // Optional: MinIO, LocalStack
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"` // Object key prefix, defaults to base_dir
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl"` // Scheme for endpoints given without one. Default: true
	ForcePathStyle  bool   `json:"force_path_style"`
}

// endpointURL adds a scheme to bare host:port endpoints
func (c *Config) endpointURL() string {
	if strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}
	if c.UseSSL {
		return "https://" + c.Endpoint
	}
	return "http://" + c.Endpoint
}
