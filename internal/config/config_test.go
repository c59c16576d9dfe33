package config

import (
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestLoad_Defaults(t *testing.T) {
	// Unparseable numeric values fall back to defaults.
	for _, key := range []string{
		"MAX_IMAGE_SIZE", "MAX_VIDEO_SIZE", "MAX_MEDIA_PER_REQUEST",
		"QUEUE_MAX_ATTEMPTS", "QUEUE_INITIAL_BACKOFF",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("UPLOAD_ROOT", "./public/uploads")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Upload.MaxImageSize != 10*1024*1024 {
		t.Errorf("expected 10 MiB image ceiling, got %d", cfg.Upload.MaxImageSize)
	}
	if cfg.Upload.MaxVideoSize != 100*1024*1024 {
		t.Errorf("expected 100 MiB video ceiling, got %d", cfg.Upload.MaxVideoSize)
	}
	if cfg.Upload.MaxFilesPerRequest != 15 {
		t.Errorf("expected 15 files per request, got %d", cfg.Upload.MaxFilesPerRequest)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.InitialBackoff != 2*time.Second {
		t.Errorf("expected 2s initial backoff, got %s", cfg.Queue.InitialBackoff)
	}
}

func TestLoad_RejectsAttemptsOutOfRange(t *testing.T) {
	t.Setenv("QUEUE_MAX_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero attempts")
	}
}

func TestLoad_RejectsImageCeilingAboveVideo(t *testing.T) {
	t.Setenv("MAX_IMAGE_SIZE", "2000")
	t.Setenv("MAX_VIDEO_SIZE", "1000")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when image ceiling exceeds video ceiling")
	}
	if !strings.Contains(err.Error(), "MAX_IMAGE_SIZE") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDSN_BuildsFromFieldsWithFoundRows(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss", Name: "catalog"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(db:3306)") {
		t.Errorf("expected default port appended, got %s", dsn)
	}
	if !strings.Contains(dsn, "clientFoundRows=true") {
		t.Errorf("expected clientFoundRows in DSN, got %s", dsn)
	}
}

func TestDSN_OverrideKeepsAddressAndForcesFoundRows(t *testing.T) {
	t.Setenv("DATABASE_URL", "user:pw@tcp(other:3307)/x?parseTime=false&sql_mode=TRADITIONAL")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	parsed, err := mysql.ParseDSN(cfg.Database.DSN())
	if err != nil {
		t.Fatalf("DSN does not parse: %v", err)
	}
	if parsed.Addr != "other:3307" || parsed.DBName != "x" || parsed.User != "user" {
		t.Errorf("override fields lost: %+v", parsed)
	}
	if !parsed.ClientFoundRows {
		t.Error("expected clientFoundRows forced on for DATABASE_URL")
	}
	if !parsed.ParseTime {
		t.Error("expected parseTime forced on for DATABASE_URL")
	}
	if parsed.Params["sql_mode"] != "TRADITIONAL" {
		t.Errorf("expected extra params kept, got %v", parsed.Params)
	}
}

func TestLoad_RejectsUnparseableDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not a dsn")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for malformed DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("unexpected error: %v", err)
	}
}
