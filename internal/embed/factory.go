package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/amanread/internal/config"
)

// ProviderType names an embedding backend.
type ProviderType string

const (
	// ProviderAuto uses Ollama when reachable and static otherwise.
	ProviderAuto ProviderType = ""
	// ProviderOllama requires a reachable Ollama server.
	ProviderOllama ProviderType = "ollama"
	// ProviderStatic uses hash-based embeddings.
	ProviderStatic ProviderType = "static"
)

// ParseProvider validates a configured provider name.
func ParseProvider(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderAuto, ProviderOllama, ProviderStatic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown embeddings provider %q (valid: ollama, static)", s)
	}
}

// NewEmbedder builds the configured embedder wrapped in a CachedEmbedder.
//
// An explicit "ollama" provider fails when Ollama is unreachable, so a
// misconfigured host is reported instead of silently indexing with hashes.
// The empty provider falls back to static.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	provider, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	var inner Embedder
	switch provider {
	case ProviderStatic:
		inner = NewStaticEmbedder(cfg.Dimensions)

	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, ollamaConfigFrom(cfg))
		if err != nil {
			return nil, fmt.Errorf("ollama embeddings unavailable: %w", err)
		}

	default:
		ollama, err := NewOllamaEmbedder(ctx, ollamaConfigFrom(cfg))
		if err != nil {
			slog.Info("embedder_fallback_static",
				slog.String("reason", err.Error()),
				slog.Int("dimensions", cfg.Dimensions))
			inner = NewStaticEmbedder(cfg.Dimensions)
		} else {
			inner = ollama
		}
	}

	if cfg.CacheSize < 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func ollamaConfigFrom(cfg config.EmbeddingsConfig) OllamaConfig {
	oc := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		oc.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		oc.Model = cfg.Model
	}
	if cfg.Timeout > 0 {
		oc.Timeout = cfg.Timeout
	}
	return oc
}
