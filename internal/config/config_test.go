package config

import (
	"errors"
	"strings"
	"testing"
)

// mockKeychain is an in-memory secret store.
type mockKeychain struct {
	values map[string]string
	getErr error
}

func newMockKeychain() *mockKeychain {
	return &mockKeychain{values: make(map[string]string)}
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[service+"/"+account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	m.values[service+"/"+account] = value
	return nil
}

// memBackend is an in-memory ConfigBackend.
type memBackend struct {
	strs map[string]string
	ints map[string]int
}

func newMemBackend() *memBackend {
	return &memBackend{strs: make(map[string]string), ints: make(map[string]int)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.strs[key]
	return v, ok, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.ints[key]
	return v, ok, nil
}

func (b *memBackend) SetString(key, val string) error {
	b.strs[key] = val
	return nil
}

func (b *memBackend) SetInt(key string, val int) error {
	b.ints[key] = val
	return nil
}

func (b *memBackend) Delete(key string) error {
	delete(b.strs, key)
	delete(b.ints, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMemBackend(), newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if !cfg.Server.MCPStdio {
		t.Error("Server.MCPStdio = false, want true")
	}
	if cfg.Vision.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Vision.BaseURL = %q", cfg.Vision.BaseURL)
	}
	if cfg.Vision.Model != "gpt-4o" {
		t.Errorf("Vision.Model = %q, want %q", cfg.Vision.Model, "gpt-4o")
	}
	if cfg.Vision.ReportModel != "gpt-4" {
		t.Errorf("Vision.ReportModel = %q, want %q", cfg.Vision.ReportModel, "gpt-4")
	}
	if cfg.Vision.MaxTokens != 1000 {
		t.Errorf("Vision.MaxTokens = %d, want 1000", cfg.Vision.MaxTokens)
	}
	if cfg.Vision.ReportMaxTokens != 2000 {
		t.Errorf("Vision.ReportMaxTokens = %d, want 2000", cfg.Vision.ReportMaxTokens)
	}
	if cfg.Vision.Temperature != 0.3 {
		t.Errorf("Vision.Temperature = %v, want 0.3", cfg.Vision.Temperature)
	}
	if cfg.Imaging.MaxDimension != 1024 {
		t.Errorf("Imaging.MaxDimension = %d, want 1024", cfg.Imaging.MaxDimension)
	}
	if cfg.Imaging.JPEGQuality != 80 {
		t.Errorf("Imaging.JPEGQuality = %d, want 80", cfg.Imaging.JPEGQuality)
	}
	if cfg.Imaging.MaxPixels != 40_000_000 {
		t.Errorf("Imaging.MaxPixels = %d, want 40000000", cfg.Imaging.MaxPixels)
	}
	if cfg.Hail.MinHits != 8 {
		t.Errorf("Hail.MinHits = %d, want 8", cfg.Hail.MinHits)
	}
	if cfg.Analysis.Async {
		t.Error("Analysis.Async = true, want false")
	}
}

func TestMissingAPIKeyIsNotAnError(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMemBackend(), &mockKeychain{getErr: errors.New("no keychain")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HasAPIKey() {
		t.Errorf("HasAPIKey() = true, want false")
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := newMemBackend()
	b.ints["server.port"] = 5100
	b.ints["hail.min_hits"] = 10
	b.strs["vision.model"] = "gpt-4o-mini"
	b.strs["vision.temperature"] = "0.7"
	b.strs["analysis.async"] = "true"
	b.strs["server.mcp_stdio"] = "false"

	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5100 {
		t.Errorf("Server.Port = %d, want 5100", cfg.Server.Port)
	}
	if cfg.Hail.MinHits != 10 {
		t.Errorf("Hail.MinHits = %d, want 10", cfg.Hail.MinHits)
	}
	if cfg.Vision.Model != "gpt-4o-mini" {
		t.Errorf("Vision.Model = %q, want %q", cfg.Vision.Model, "gpt-4o-mini")
	}
	if cfg.Vision.Temperature != 0.7 {
		t.Errorf("Vision.Temperature = %v, want 0.7", cfg.Vision.Temperature)
	}
	if !cfg.Analysis.Async {
		t.Error("Analysis.Async = false, want true")
	}
	if cfg.Server.MCPStdio {
		t.Error("Server.MCPStdio = true, want false")
	}
}

func TestBackendBadValueKeepsDefault(t *testing.T) {
	clearEnv(t)

	b := newMemBackend()
	b.strs["vision.temperature"] = "warm"

	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vision.Temperature != 0.3 {
		t.Errorf("Vision.Temperature = %v, want default 0.3", cfg.Vision.Temperature)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)

	b := newMemBackend()
	b.ints["server.port"] = 5100
	t.Setenv("ROOFCHECK_SERVER_PORT", "6100")
	t.Setenv("ROOFCHECK_VISION_API_KEY", "env-key")
	t.Setenv("ROOFCHECK_ANALYSIS_ASYNC", "1")

	kc := newMockKeychain()
	kc.values["roofcheck/vision_api_key"] = "keychain-key"

	cfg, err := loadWith(b, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6100 {
		t.Errorf("Server.Port = %d, want 6100", cfg.Server.Port)
	}
	if cfg.Vision.APIKey != "env-key" {
		t.Errorf("Vision.APIKey = %q, want %q", cfg.Vision.APIKey, "env-key")
	}
	if !cfg.Analysis.Async {
		t.Error("Analysis.Async = false, want true")
	}
}

func TestKeychainFallback(t *testing.T) {
	clearEnv(t)

	kc := newMockKeychain()
	kc.values["roofcheck/vision_api_key"] = "keychain-secret"

	cfg, err := loadWith(newMemBackend(), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vision.APIKey != "keychain-secret" {
		t.Errorf("Vision.APIKey = %q, want %q", cfg.Vision.APIKey, "keychain-secret")
	}
}

func TestSecretNeverReadFromBackend(t *testing.T) {
	clearEnv(t)

	b := newMemBackend()
	b.strs["vision.api_key"] = "plaintext"

	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vision.APIKey != "" {
		t.Errorf("Vision.APIKey = %q, want empty", cfg.Vision.APIKey)
	}
}

func TestShowAllExcludesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Vision.APIKey = "sk-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "vision.api_key" {
			t.Fatal("ShowAll included vision.api_key")
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Fatalf("ShowAll leaked secret in %s", k.Key)
		}
	}
	for _, k := range ValidKeys() {
		if k == "vision.api_key" {
			t.Fatal("ValidKeys included vision.api_key")
		}
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()

	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKeyWith(server.port): %v", err)
	}
	if b.ints["server.port"] != 4200 {
		t.Errorf("server.port = %d, want 4200", b.ints["server.port"])
	}

	if err := setKeyWith(b, "vision.temperature", "0.5"); err != nil {
		t.Fatalf("setKeyWith(vision.temperature): %v", err)
	}
	if b.strs["vision.temperature"] != "0.5" {
		t.Errorf("vision.temperature = %q, want %q", b.strs["vision.temperature"], "0.5")
	}

	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "analysis.async", "maybe"); err == nil {
		t.Error("expected error for non-bool async")
	}
	if err := setKeyWith(b, "vision.api_key", "sk"); err == nil {
		t.Error("expected error when setting a secret")
	}
	if err := setKeyWith(b, "nope", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetAPIKey(t *testing.T) {
	kc := newMockKeychain()

	if err := SetAPIKey(kc, "  "); err == nil {
		t.Fatal("expected error for blank key")
	}
	if err := SetAPIKey(kc, " sk-123 "); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if got := kc.values["roofcheck/vision_api_key"]; got != "sk-123" {
		t.Errorf("stored key = %q, want %q", got, "sk-123")
	}
}

func TestGetAPIToken(t *testing.T) {
	kc := newMockKeychain()

	tok, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("token length = %d, want 64", len(tok))
	}

	again, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("GetAPIToken (second): %v", err)
	}
	if again != tok {
		t.Errorf("second token = %q, want stored %q", again, tok)
	}
}

func TestTimeoutDuration(t *testing.T) {
	v := VisionConfig{Timeout: "15s"}
	if got := v.TimeoutDuration().String(); got != "15s" {
		t.Errorf("TimeoutDuration() = %s, want 15s", got)
	}
	v.Timeout = "soon"
	if got := v.TimeoutDuration().String(); got != "1m0s" {
		t.Errorf("TimeoutDuration() = %s, want 1m0s", got)
	}
}
