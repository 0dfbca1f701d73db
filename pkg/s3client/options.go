package s3client

import "time"

type Option func(c *S3Client)

// ConnAttempts -.
func ConnAttempts(attempts int) Option {
	return func(c *S3Client) {
		c.connAttempts = attempts
	}
}

// ConnTimeout -.
func ConnTimeout(timeout time.Duration) Option {
	return func(c *S3Client) {
		c.connTimeout = timeout
	}
}

// Region -.
func Region(region string) Option {
	return func(c *S3Client) {
		c.region = region
	}
}

// UsePathStyle -.
func UsePathStyle(use bool) Option {
	return func(c *S3Client) {
		c.usePathStyle = use
	}
}
