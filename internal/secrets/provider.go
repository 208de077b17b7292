package secrets

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// SecretSource selects where the provider reads secrets from.
type SecretSource string

const (
	// SourceEnvironment reads secrets from environment variables.
	SourceEnvironment SecretSource = "environment"
	// SourceVault reads secrets from Azure Key Vault. The ledger
	// credentials (LEDGER-URL, LEDGER-USERNAME, LEDGER-PASSWORD) only
	// ever come from this source.
	SourceVault SecretSource = "vault"
	// SourceAuto picks environment for development and vault otherwise.
	SourceAuto SecretSource = "auto"
)

// Provider resolves named secrets from the configured source. Callers ask
// for logical names (POSTGRES-MAIN-PASSWORD, jwt-signing-secret) and the
// provider maps them onto the vault or the process environment.
type Provider struct {
	source      SecretSource
	vaultClient *VaultClient
	logger      *zap.Logger
	environment string
}

// ProviderConfig configures the provider.
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string // "development", "staging", "production"
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewProvider builds a provider, resolving SourceAuto against the
// environment and connecting to Key Vault when the vault source is chosen.
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := cfg.Source

	if source == SourceAuto {
		switch cfg.Environment {
		case "development", "local", "":
			source = SourceEnvironment
		default:
			source = SourceVault
		}
		logger.Info("resolved secret source",
			zap.String("source", string(source)),
			zap.String("environment", cfg.Environment),
		)
	}

	provider := &Provider{
		source:      source,
		logger:      logger,
		environment: cfg.Environment,
	}

	if source == SourceVault {
		if cfg.VaultName == "" {
			return nil, fmt.Errorf("vault name required when using vault secret source")
		}

		vaultClient, err := NewVaultClient(&VaultConfig{
			VaultName:    cfg.VaultName,
			CacheEnabled: cfg.CacheEnabled,
			CacheTTL:     cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		provider.vaultClient = vaultClient
	}

	logger.Info("secrets provider ready",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
	)

	return provider, nil
}

// GetSecret resolves a secret by name: the Key Vault secret name for the
// vault source, the environment variable name otherwise.
func (p *Provider) GetSecret(ctx context.Context, secretName string) (string, error) {
	switch p.source {
	case SourceEnvironment:
		value := os.Getenv(secretName)
		if value == "" {
			return "", fmt.Errorf("environment variable '%s' not set", secretName)
		}
		return value, nil

	case SourceVault:
		if p.vaultClient == nil {
			return "", fmt.Errorf("vault client not initialized")
		}
		return p.vaultClient.GetSecret(ctx, secretName)

	default:
		return "", fmt.Errorf("unknown secret source: %s", p.source)
	}
}

// GetSecretWithDefault resolves a secret, falling back to defaultValue when
// the source has no value.
func (p *Provider) GetSecretWithDefault(ctx context.Context, secretName, defaultValue string) string {
	value, err := p.GetSecret(ctx, secretName)
	if err != nil {
		p.logger.Debug("using default value for secret",
			zap.String("secret_name", secretName),
			zap.String("source", string(p.source)),
		)
		return defaultValue
	}
	return value
}

// GetSecretOrEnv checks the named environment variable first and only then
// the configured source. Lets an operator override a vault secret locally;
// never used for the ledger credentials.
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		p.logger.Debug("using environment variable override",
			zap.String("env_name", envName),
		)
		return envValue, nil
	}

	return p.GetSecret(ctx, secretName)
}

// GetSecretOrEnvWithDefault is GetSecretOrEnv with a final default fallback.
func (p *Provider) GetSecretOrEnvWithDefault(ctx context.Context, secretName, envName, defaultValue string) string {
	value, err := p.GetSecretOrEnv(ctx, secretName, envName)
	if err != nil {
		p.logger.Debug("using default value",
			zap.String("secret_name", secretName),
			zap.String("env_name", envName),
		)
		return defaultValue
	}
	return value
}

// Source returns the active secret source.
func (p *Provider) Source() SecretSource {
	return p.source
}

// IsVaultEnabled reports whether secrets come from Key Vault.
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}
