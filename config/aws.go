package config

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws/endpoints"
)

// validateAWSBatch enforces the extra constraints of the awsbatch
// profile: results must land on S3, the trace dir must stay local, and
// a queue plus a real region are required.
func (c *Config) validateAWSBatch() error {
	if !strings.HasPrefix(c.OutDir, "s3://") {
		return Configf("awsbatch profile requires an S3 --outdir, got %q", c.OutDir)
	}
	if strings.HasPrefix(c.TraceDir, "s3://") {
		return Configf("awsbatch profile requires a local --tracedir, got %q", c.TraceDir)
	}
	if c.AWSQueue == "" {
		return Configf("awsbatch profile requires --awsqueue")
	}
	if c.AWSRegion == "" {
		return Configf("awsbatch profile requires --awsregion")
	}
	if _, ok := endpoints.AwsPartition().Regions()[c.AWSRegion]; !ok {
		return Configf("unknown AWS region %q", c.AWSRegion)
	}
	return nil
}
