package backend

import (
	"context"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	config "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// AWSCredentials holds static credentials for S3-compatible services
// that are not resolved through the SDK credential chain.
type AWSCredentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// LoadAWSConfig resolves an AWS SDK configuration through the default
// chain (environment, shared config, SSO). Region and profile override
// the chain when non-empty, and static credentials take precedence over
// the chain when provided. Pass the result to WithAWSConfig.
func LoadAWSConfig(ctx context.Context, region, profile string, creds *AWSCredentials) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if creds != nil {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		))
	}

	// Return the resolved configuration
	return config.LoadDefaultConfig(ctx, opts...)
}
