// Package registry builds a bound provider client from validated settings.
// Construction is pure: no network call happens until the first request.
package registry

import (
	"errors"
	"fmt"

	"chatlab/internal/providers"
	"chatlab/internal/providers/azure_openai"
	"chatlab/internal/providers/openai_compat"
)

var (
	ErrInvalidConfig   = errors.New("invalid provider config")
	ErrMissingAPIKey   = fmt.Errorf("%w: api key is empty", ErrInvalidConfig)
	ErrMissingEndpoint = fmt.Errorf("%w: endpoint is required for azure_openai", ErrInvalidConfig)
)

func Build(s providers.Settings) (providers.Provider, error) {
	if s.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch s.Kind {
	case providers.KindAzureOpenAI:
		if s.Endpoint == "" {
			return nil, ErrMissingEndpoint
		}
		return azure_openai.New(azure_openai.Config{
			Endpoint:   s.Endpoint,
			APIKey:     s.APIKey,
			Deployment: s.Model,
			APIVersion: s.APIVersion,
			HTTPClient: s.HTTPClient,
		}), nil

	case providers.KindOpenAICompat:
		return openai_compat.New(openai_compat.Config{
			BaseURL:    s.Endpoint,
			APIKey:     s.APIKey,
			Model:      s.Model,
			HTTPClient: s.HTTPClient,
		}), nil

	default:
		return nil, fmt.Errorf("%w: unsupported provider kind %q", ErrInvalidConfig, s.Kind)
	}
}
