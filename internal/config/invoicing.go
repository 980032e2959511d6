package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// InvoicingConfig is the operator-tunable electronic invoicing policy.
type InvoicingConfig struct {
	Retry     RetryPolicy      `mapstructure:"retry"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// RetryPolicy bounds re-emission of failed invoices.
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	BaseBackoff time.Duration `mapstructure:"baseBackoff"`
	MaxBackoff  time.Duration `mapstructure:"maxBackoff"`
}

// ProviderConfig selects an e-invoicing provider for a tenant or a single
// property. Property entries shadow tenant entries.
type ProviderConfig struct {
	Name       string `mapstructure:"name"`
	TenantID   string `mapstructure:"tenantId"`
	PropertyID string `mapstructure:"propertyId"`
	Endpoint   string `mapstructure:"endpoint"`
	Token      string `mapstructure:"token"`
}

// ResolvedBillingConfig is the read-only view an emission attempt runs with.
// It is computed once per attempt, never re-derived mid-flight.
type ResolvedBillingConfig struct {
	ProviderName     string
	ProviderEndpoint string
	ProviderToken    string
	Retry            RetryPolicy
}

// Backoff returns the delay before retry attempt n (1-based), capped.
func (c ResolvedBillingConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.Retry.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.Retry.MaxBackoff {
			return c.Retry.MaxBackoff
		}
	}
	if delay > c.Retry.MaxBackoff {
		return c.Retry.MaxBackoff
	}
	return delay
}

// Exhausted reports whether retryCount is past the configured attempt cap.
func (c ResolvedBillingConfig) Exhausted(retryCount int) bool {
	return c.Retry.MaxAttempts > 0 && retryCount >= c.Retry.MaxAttempts
}

func DefaultInvoicingConfig() InvoicingConfig {
	return InvoicingConfig{
		Retry: RetryPolicy{
			MaxAttempts: 8,
			BaseBackoff: 30 * time.Second,
			MaxBackoff:  30 * time.Minute,
		},
	}
}

// InvoicingConfigHolder exposes the latest valid invoicing config.
type InvoicingConfigHolder struct {
	current  atomic.Value // holds InvoicingConfig
	fallback Config
}

// NewInvoicingConfigHolder loads invoicing.yml and keeps it hot-reloaded.
// Missing file falls back to defaults plus the env-provided provider.
func NewInvoicingConfigHolder(appCfg Config) (*InvoicingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("invoicing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/posada/config")
	v.AddConfigPath("/etc/posada")
	v.AddConfigPath(".")

	v.SetEnvPrefix("POSADA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &InvoicingConfigHolder{fallback: appCfg}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultInvoicingConfig())
		return holder, nil
	}

	var cfg InvoicingConfig
	if err := v.UnmarshalKey("invoicing", &cfg); err != nil {
		return nil, err
	}
	if err := validateInvoicingConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(normalizeInvoicingConfig(cfg))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvoicingConfig
		if err := v.UnmarshalKey("invoicing", &updated); err != nil {
			log.Printf("[invoicing-config] reload failed: %v", err)
			return
		}
		if err := validateInvoicingConfig(updated); err != nil {
			log.Printf("[invoicing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(normalizeInvoicingConfig(updated))
	})

	return holder, nil
}

// Current returns the latest valid invoicing config.
func (h *InvoicingConfigHolder) Current() InvoicingConfig {
	cfg, _ := h.current.Load().(InvoicingConfig)
	return cfg
}

// Resolve computes the billing configuration for one emission attempt.
// Property-scoped provider entries win over tenant-scoped ones; when no
// entry matches, the env-configured provider applies.
func (h *InvoicingConfigHolder) Resolve(tenantID, propertyID string) ResolvedBillingConfig {
	cfg := h.Current()

	resolved := ResolvedBillingConfig{
		ProviderName:     "default",
		ProviderEndpoint: h.fallback.InvoicingProviderEndpoint,
		ProviderToken:    h.fallback.InvoicingProviderToken,
		Retry:            cfg.Retry,
	}
	if resolved.Retry.MaxAttempts == 0 {
		resolved.Retry = DefaultInvoicingConfig().Retry
	}

	for _, p := range cfg.Providers {
		if p.TenantID != tenantID {
			continue
		}
		if p.PropertyID != "" && p.PropertyID != propertyID {
			continue
		}
		resolved.ProviderName = p.Name
		resolved.ProviderEndpoint = p.Endpoint
		resolved.ProviderToken = p.Token
		break
	}

	return resolved
}

func validateInvoicingConfig(cfg InvoicingConfig) error {
	if cfg.Retry.MaxAttempts < 0 {
		return errors.New("invoicing.retry.maxAttempts must not be negative")
	}
	if cfg.Retry.BaseBackoff < 0 || cfg.Retry.MaxBackoff < 0 {
		return errors.New("invoicing.retry backoff must not be negative")
	}
	for _, p := range cfg.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("invoicing.providers entries require a name")
		}
		if strings.TrimSpace(p.TenantID) == "" {
			return errors.New("invoicing.providers entries require a tenantId")
		}
	}
	return nil
}

func normalizeInvoicingConfig(cfg InvoicingConfig) InvoicingConfig {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultInvoicingConfig().Retry
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = cfg.Retry.BaseBackoff
	}
	// property-scoped entries first so Resolve can stop at the most specific
	ordered := make([]ProviderConfig, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.PropertyID != "" {
			ordered = append(ordered, p)
		}
	}
	for _, p := range cfg.Providers {
		if p.PropertyID == "" {
			ordered = append(ordered, p)
		}
	}
	cfg.Providers = ordered
	return cfg
}
