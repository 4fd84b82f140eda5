package backup

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type S3Config struct {
	BucketName    string        `mapstructure:"bucket_name"`
	Region        string        `mapstructure:"region"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	UseAccelerate bool          `mapstructure:"use_accelerate"`
	Prefix        string        `mapstructure:"prefix"`
	Interval      time.Duration `mapstructure:"interval"`
}

// Enabled reports whether a bucket is configured at all
func (c *S3Config) Enabled() bool {
	return c.BucketName != ""
}

func (c *S3Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Region == "" {
		return fmt.Errorf("backup `region` required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("backup `access_key` required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("backup `secret_key` required")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backup: invalid endpoint URL %q", c.Endpoint)
		}
	}
	if c.Interval < 0 {
		return fmt.Errorf("backup `interval` must not be negative")
	}
	return nil
}

// keyPrefix is the object key prefix, empty or ending with "/"
func (c *S3Config) keyPrefix() string {
	p := strings.Trim(c.Prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
