package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/amanread/internal/config"
)

// probeTimeout bounds each Ollama health request.
const probeTimeout = 2 * time.Second

// OllamaProbe inspects the local Ollama installation for `amanread status`.
type OllamaProbe struct {
	host   string
	client *http.Client

	// Overridden in tests.
	lookPath   func(file string) (string, error)
	fileExists func(path string) bool
}

// OllamaStatus is the state of Ollama relative to the models amanread uses.
type OllamaStatus struct {
	Host          string   `json:"host"`
	Installed     bool     `json:"installed"`
	InstalledPath string   `json:"installed_path,omitempty"`
	Running       bool     `json:"running"`
	Models        []string `json:"models,omitempty"`
	// Missing are requested models that are not pulled yet.
	Missing []string `json:"missing,omitempty"`
}

// Ready reports whether Ollama runs and has every requested model.
func (s *OllamaStatus) Ready() bool {
	return s.Running && len(s.Missing) == 0
}

// NewOllamaProbe creates a probe for host. Empty means the default host.
func NewOllamaProbe(host string) *OllamaProbe {
	if host == "" {
		host = config.DefaultOllamaHost
	}
	return &OllamaProbe{
		host:       strings.TrimRight(host, "/"),
		client:     &http.Client{Timeout: 5 * time.Second},
		lookPath:   exec.LookPath,
		fileExists: fileExists,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Host returns the probed Ollama host.
func (p *OllamaProbe) Host() string {
	return p.host
}

// IsInstalled looks for the ollama binary or app bundle.
func (p *OllamaProbe) IsInstalled() (bool, string) {
	if path, err := p.lookPath("ollama"); err == nil {
		return true, path
	}

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Ollama.app",
			filepath.Join(os.Getenv("HOME"), "Applications", "Ollama.app"),
		}
	case "linux":
		candidates = []string{
			"/usr/local/bin/ollama",
			"/usr/bin/ollama",
			filepath.Join(os.Getenv("HOME"), ".local", "bin", "ollama"),
		}
	}
	for _, c := range candidates {
		if p.fileExists(c) {
			return true, c
		}
	}
	return false, ""
}

// ListModels returns the installed model names.
func (p *OllamaProbe) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	sort.Strings(models)
	return models, nil
}

// Status reports installation, reachability and which of models are
// missing. An unreachable server is a status, not an error.
func (p *OllamaProbe) Status(ctx context.Context, models ...string) *OllamaStatus {
	status := &OllamaStatus{Host: p.host}
	status.Installed, status.InstalledPath = p.IsInstalled()

	installed, err := p.ListModels(ctx)
	if err != nil {
		status.Missing = append(status.Missing, models...)
		return status
	}
	status.Running = true
	status.Models = installed
	for _, want := range models {
		if want != "" && !HasModel(installed, want) {
			status.Missing = append(status.Missing, want)
		}
	}
	return status
}

// HasModel matches model against installed names, ignoring the tag when
// the installed name differs only by it.
func HasModel(installed []string, model string) bool {
	want := strings.ToLower(model)
	wantBase := strings.Split(want, ":")[0]
	for _, name := range installed {
		lower := strings.ToLower(name)
		if lower == want || strings.Split(lower, ":")[0] == wantBase {
			return true
		}
	}
	return false
}

// IsRemoteHost reports whether the host is not on this machine.
func (p *OllamaProbe) IsRemoteHost() bool {
	return !strings.Contains(p.host, "localhost") && !strings.Contains(p.host, "127.0.0.1")
}

// InstallInstructions returns platform-specific install instructions.
func InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return `Ollama enables summaries and semantic search.

Install options:
  1. Download from: https://ollama.com/download
  2. Or via Homebrew: brew install ollama`
	case "linux":
		return `Ollama enables summaries and semantic search.

Install:
  curl -fsSL https://ollama.com/install.sh | sh`
	default:
		return `Ollama enables summaries and semantic search.

Download from: https://ollama.com/download`
	}
}
