// Package healthcheck verifies that a gmalt installation is usable: which
// configuration is in effect, whether the cache snapshot loads, and whether a
// probe function survives parse, rewrite and interpretation unchanged.
package healthcheck

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-malt/internal/config"
	"github.com/l3aro/go-malt/pkg/cache"
	"github.com/l3aro/go-malt/pkg/converters"
	"github.com/l3aro/go-malt/pkg/interp"
	"github.com/l3aro/go-malt/pkg/operators"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/printer"
)

// Status values of a component check.
const (
	StatusReady    = "ready"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// ComponentStatus represents the health status of one component.
type ComponentStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string            `json:"saved_path,omitempty"`
	SavedScope     string            `json:"saved_scope,omitempty"` // "global" or "project"
	EffectivePath  string            `json:"effective_path,omitempty"`
	EffectiveScope string            `json:"effective_scope,omitempty"`
	Components     []ComponentStatus `json:"components"`
}

// Healthy reports whether no component failed.
func (r *HealthCheckResult) Healthy() bool {
	for _, c := range r.Components {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// probeSource exercises loops, branches and augmented assignment.
const probeSource = `def probe(n):
    total = 0
    for i in range(n):
        if i % 2 == 0:
            total += i
    return total
`

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(ctx context.Context, cfg *config.Config, savedPath, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}
	result.Components = []ComponentStatus{
		checkConfig(cfg),
		checkCache(cfg),
		checkPipeline(ctx, cfg),
	}
	return result, nil
}

// EffectiveConfigPath returns the config file with the highest priority that
// exists, or "" when only defaults apply.
func EffectiveConfigPath() string {
	for _, p := range []string{config.ProjectConfigFilePath(), config.GlobalConfigFilePath()} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, config.Dir)
		abs, _ := filepath.Abs(path)
		if strings.HasPrefix(abs, globalDir+string(filepath.Separator)) {
			return "global"
		}
	}

	return "project"
}

func checkConfig(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{Name: "config"}
	if err := cfg.Validate(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	features := "none"
	if len(cfg.Features) > 0 {
		features = strings.Join(cfg.Features, ",")
	}
	status.Detail = fmt.Sprintf("recursive=%t user_requested=%t features=%s", cfg.Recursive, cfg.UserRequested, features)
	return status
}

// checkCache loads the snapshot without writing anything.
func checkCache(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{Name: "cache"}
	if cfg.CachePath == "" {
		status.Status = StatusDisabled
		return status
	}
	store, err := cache.Open(cfg.CachePath, cache.Options{MaxEntries: cfg.CacheMaxEntries})
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%s (%d entries)", store.Path(), store.Len())
	return status
}

// checkPipeline rewrites the probe function and verifies the rewritten code
// computes what the original does.
func checkPipeline(ctx context.Context, cfg *config.Config) ComponentStatus {
	status := ComponentStatus{Name: "pipeline", Status: StatusError}

	opts, err := cfg.ConverterOptions()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	fn, err := parser.ParseFunction(ctx, []byte(probeSource), "probe")
	if err != nil {
		status.Error = fmt.Sprintf("parser: %v", err)
		return status
	}
	want, err := runProbe(ctx, probeSource)
	if err != nil {
		status.Error = fmt.Sprintf("interpreter: %v", err)
		return status
	}

	opts.UserRequested = true
	if err := converters.Convert(converters.NewContext(fn, opts, nil), fn); err != nil {
		status.Error = fmt.Sprintf("converter: %v", err)
		return status
	}
	got, err := runProbe(ctx, printer.Source(fn))
	if err != nil {
		status.Error = fmt.Sprintf("rewritten code: %v", err)
		return status
	}
	if got != want {
		status.Error = fmt.Sprintf("rewritten probe returned %s, want %s", got, want)
		return status
	}
	status.Status = StatusReady
	status.Detail = "parse, rewrite and run agree"
	return status
}

func runProbe(ctx context.Context, src string) (string, error) {
	mod, err := parser.ParseModule(ctx, []byte(src))
	if err != nil {
		return "", err
	}
	ip := interp.New(interp.Options{Stdout: &bytes.Buffer{}})
	if err := ip.Exec(ctx, mod); err != nil {
		return "", err
	}
	v, err := ip.Call(ctx, "probe", int64(5))
	if err != nil {
		return "", err
	}
	return operators.Repr(v), nil
}
