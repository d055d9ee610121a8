package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	if cfg.Server.Address != "localhost:3000" {
		t.Errorf("expected default address 'localhost:3000', got %s", cfg.Server.Address)
	}

	if cfg.Server.APIPrefix != "/v1" {
		t.Errorf("expected default API prefix '/v1', got %s", cfg.Server.APIPrefix)
	}

	if cfg.Auth.TokenTTL != "1h" {
		t.Errorf("expected default token TTL '1h', got %s", cfg.Auth.TokenTTL)
	}

	if cfg.Schema.Source != "file" {
		t.Errorf("expected default schema source 'file', got %s", cfg.Schema.Source)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `
project_name: test-project
server:
  address: 0.0.0.0:8080
  api_prefix: /v2
auth:
  jwt_secret: test-secret
database:
  url: postgresql://localhost/testdb
redis:
  url: redis://localhost:6379
schema:
  source: postgres
`
	os.WriteFile("sieve.yml", []byte(configContent), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.ProjectName != "test-project" {
		t.Errorf("expected project name 'test-project', got %s", cfg.ProjectName)
	}

	if cfg.Server.Address != "0.0.0.0:8080" {
		t.Errorf("expected address '0.0.0.0:8080', got %s", cfg.Server.Address)
	}

	if cfg.Server.APIPrefix != "/v2" {
		t.Errorf("expected API prefix '/v2', got %s", cfg.Server.APIPrefix)
	}

	if cfg.Database.URL != "postgresql://localhost/testdb" {
		t.Errorf("expected database URL, got %s", cfg.Database.URL)
	}

	if cfg.Redis.URL != "redis://localhost:6379" {
		t.Errorf("expected redis URL, got %s", cfg.Redis.URL)
	}

	if cfg.Schema.Source != "postgres" {
		t.Errorf("expected schema source 'postgres', got %s", cfg.Schema.Source)
	}
}

func TestLoadRejectsInvalidSchemaSource(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	os.WriteFile("sieve.yml", []byte("schema:\n  source: mysql\n"), 0644)

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid schema.source, got nil")
	}
}

func TestGetDatabaseURL(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgresql://env/testdb")
	defer os.Unsetenv("DATABASE_URL")

	url := GetDatabaseURL()
	if url != "postgresql://env/testdb" {
		t.Errorf("expected DATABASE_URL from environment, got %s", url)
	}
}

func TestGetDatabaseURLFromConfig(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	os.Unsetenv("DATABASE_URL")

	configContent := `
database:
  url: postgresql://config/testdb
`
	os.WriteFile("sieve.yml", []byte(configContent), 0644)

	url := GetDatabaseURL()
	if url != "postgresql://config/testdb" {
		t.Errorf("expected DATABASE_URL from config, got %s", url)
	}
}

func TestInProject(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if InProject() {
		t.Error("expected InProject to return false in non-project directory")
	}

	os.Mkdir("app", 0755)
	os.WriteFile("sieve.yml", []byte(""), 0644)

	if !InProject() {
		t.Error("expected InProject to return true in project directory")
	}
}

func TestGetProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	os.WriteFile(filepath.Join(tmpDir, "sieve.yml"), []byte(""), 0644)

	subDir := filepath.Join(tmpDir, "src", "deep", "nested")
	os.MkdirAll(subDir, 0755)
	os.Chdir(subDir)

	root, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("expected to find project root, got error: %v", err)
	}

	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedTmpDir, _ := filepath.EvalSymlinks(tmpDir)

	if resolvedRoot != resolvedTmpDir {
		t.Errorf("expected project root to be %s, got %s", resolvedTmpDir, resolvedRoot)
	}
}

func TestGetProjectRootNotInProject(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	_, err := GetProjectRoot()
	if err == nil {
		t.Error("expected error when not in a project, got nil")
	}
}
