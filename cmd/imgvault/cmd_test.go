package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgvault/internal/api"
	"imgvault/internal/config"
	"imgvault/internal/envelope"
	"imgvault/internal/models"
)

const testAdminSecret = "cli admin secret"

func isolateCLI(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"IMGVAULT_CONFIG", "IMGVAULT_ENV_FILE", logLevelEnvKey, apiURLEnvKey,
		"ENCRYPTION_KEY", "ADMIN_SECRET", "BACKEND", "BIND_ADDRESS",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	isolateCLI(t)
	out, err := runCLI(t, "keygen")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if _, err := envelope.DecodeKey(strings.TrimSpace(out)); err != nil {
		t.Fatalf("keygen printed an unusable key %q: %v", out, err)
	}

	out, err = runCLI(t, "keygen", "--json")
	if err != nil {
		t.Fatalf("keygen --json: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if _, err := envelope.DecodeKey(payload["encryption_key"]); err != nil {
		t.Fatalf("json key unusable: %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	dir := isolateCLI(t)
	path := filepath.Join(dir, "imgvault.toml")
	if err := os.WriteFile(path, []byte("admin_secret = \"supersecretvalue\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, "config", "get", "admin_secret")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.Contains(out, "supersecretvalue") || !strings.HasPrefix(out, "supe") {
		t.Fatalf("expected masked secret, got %q", out)
	}

	out, err = runCLI(t, "config", "get", "admin_secret", "--show-secrets")
	if err != nil {
		t.Fatalf("config get --show-secrets: %v", err)
	}
	if strings.TrimSpace(out) != "supersecretvalue" {
		t.Fatalf("unexpected value %q", out)
	}

	if _, err := runCLI(t, "config", "set", "max_file_size", "2048"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.MaxFileSize != 2048 || cfg.AdminSecret != "supersecretvalue" {
		t.Fatalf("unexpected config after set: %+v", cfg)
	}

	if _, err := runCLI(t, "config", "get", "nope"); err == nil {
		t.Fatal("expected unknown key error")
	}

	out, err = runCLI(t, "config", "keys")
	if err != nil {
		t.Fatalf("config keys: %v", err)
	}
	if !strings.Contains(out, "backend.telegram.chat_id") {
		t.Fatalf("keys output missing entries: %q", out)
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	isolateCLI(t)
	_, err := runCLI(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewBackendKinds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	cfg := config.Default()
	for _, kind := range []string{config.BackendMemory, config.BackendLocal, config.BackendTelegram} {
		cfg.Backend.Kind = kind
		cfg.Backend.Local.Root = t.TempDir()
		cfg.Backend.Telegram.BotToken = "123:abc"
		cfg.Backend.Telegram.ChatID = -100
		b, err := newBackend(ctx, &cfg, logger)
		if err != nil || b == nil {
			t.Fatalf("%s backend: %v", kind, err)
		}
	}

	cfg.Backend.Kind = "carrier-pigeon"
	if _, err := newBackend(ctx, &cfg, logger); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func writeTestPNG(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 0x10, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return buf.Bytes()
}

func TestClientCommandsAgainstServer(t *testing.T) {
	dir := isolateCLI(t)
	key, err := envelope.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	cfg := config.Default()
	cfg.EncryptionKey = key
	cfg.AdminSecret = testAdminSecret
	cfg.Backend.Kind = config.BackendMemory
	cfg.Worker.UploadDelayMS = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := buildApp(ctx, &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	go a.worker.Run(ctx)
	ts := httptest.NewServer(a.server.Handler())
	defer ts.Close()

	src := filepath.Join(dir, "cat.png")
	data := writeTestPNG(t, src)

	out, err := runCLI(t, "--api-url", ts.URL, "upload", src, "--wait", "--json")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var status api.JobStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode upload output %q: %v", out, err)
	}
	if status.Status != models.JobCompleted || status.Response == nil {
		t.Fatalf("unexpected status: %+v", status)
	}
	token := status.Response.ID

	dst := filepath.Join(dir, "out.png")
	if _, err := runCLI(t, "--api-url", ts.URL, "fetch", token, "-o", dst); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read fetched: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("fetched image differs from upload")
	}

	out, err = runCLI(t, "--api-url", ts.URL, "info", token)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(out, "mime_type: image/png") {
		t.Fatalf("unexpected info output %q", out)
	}

	out, err = runCLI(t, "--api-url", ts.URL, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "status: healthy") {
		t.Fatalf("unexpected health output %q", out)
	}

	if _, err := runCLI(t, "--api-url", ts.URL, "delete", token); err == nil {
		t.Fatal("delete without ADMIN_SECRET should fail")
	}
	t.Setenv("ADMIN_SECRET", testAdminSecret)
	out, err = runCLI(t, "--api-url", ts.URL, "delete", token)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "deleted: true") {
		t.Fatalf("unexpected delete output %q", out)
	}

	if _, err := runCLI(t, "--api-url", ts.URL, "fetch", token, "-o", filepath.Join(dir, "gone.png")); err == nil {
		t.Fatal("fetching a deleted image should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.png")); !os.IsNotExist(err) {
		t.Fatal("failed fetch should not leave a file behind")
	}
}
