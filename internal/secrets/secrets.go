// Package secrets resolves credentials by name at process start.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

const (
	BackendEnv = "env"
	BackendSSM = "ssm"

	// GeminiAPIKey names the hosted model credential.
	GeminiAPIKey = "GEMINI_API_KEY"
)

var ErrSecretNotFound = errors.New("secret not found")

// Resolver returns the value of a named secret.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

type Config struct {
	Backend   string `envconfig:"SECRETS_BACKEND" default:"env"`
	SSMPrefix string `envconfig:"SECRETS_SSM_PREFIX" default:"/inventory-assistant/"`
}

// New builds the resolver for cfg.Backend.
func New(ctx context.Context, cfg Config) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendEnv:
		return EnvResolver{Lookup: os.LookupEnv}, nil
	case BackendSSM:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: load aws config: %w", err)
		}
		return NewSSMResolver(ssm.NewFromConfig(awsCfg), cfg.SSMPrefix)
	default:
		return nil, fmt.Errorf("secrets: unknown backend %q", cfg.Backend)
	}
}

// EnvResolver reads secrets from the process environment.
type EnvResolver struct {
	Lookup func(string) (string, bool)
}

func (r EnvResolver) Resolve(_ context.Context, name string) (string, error) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("secrets: %w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}

// ssmAPI is the part of *ssm.Client the resolver needs.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMResolver reads decrypted parameters from AWS Systems Manager. The
// parameter path is prefix + name.
type SSMResolver struct {
	api    ssmAPI
	prefix string
}

func NewSSMResolver(api ssmAPI, prefix string) (*SSMResolver, error) {
	if api == nil {
		return nil, errors.New("secrets: ssm api must not be nil")
	}
	return &SSMResolver{api: api, prefix: prefix}, nil
}

func (r *SSMResolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: name is required")
	}
	path := r.prefix + name

	withDecryption := true
	out, err := r.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &path,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("secrets: get parameter %q: %w", path, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", fmt.Errorf("secrets: %w: %s", ErrSecretNotFound, path)
	}
	return *out.Parameter.Value, nil
}
