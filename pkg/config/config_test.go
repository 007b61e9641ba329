package config

import (
	"testing"
	"time"
)

func validBaseConfig() Config {
	return Config{
		App: AppConfig{Name: "test-service"},
		HTTP: HTTPConfig{Port: 8080},
		Log:  LogConfig{Level: "info"},
		Probes: []ProbeConfig{
			{Name: "probe-1", Host: "probe1.local", Port: 9390},
		},
		Scan: ScanConfig{
			PollInterval:        5 * time.Second,
			MaxDuration:         4 * time.Hour,
			DefaultPortListName: "All IANA assigned TCP",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing app name",
			mutate:  func(c *Config) { c.App.Name = "" },
			wantErr: true,
		},
		{
			name:    "invalid port - zero",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port - too high",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "invalid" },
			wantErr: true,
		},
		{
			name:    "valid debug level",
			mutate:  func(c *Config) { c.Log.Level = "debug" },
			wantErr: false,
		},
		{
			name:    "no probes configured",
			mutate:  func(c *Config) { c.Probes = nil },
			wantErr: false,
		},
		{
			name: "duplicate probe names",
			mutate: func(c *Config) {
				c.Probes = append(c.Probes, ProbeConfig{Name: "probe-1", Host: "other", Port: 9390})
			},
			wantErr: true,
		},
		{
			name:    "missing default port list name",
			mutate:  func(c *Config) { c.Scan.DefaultPortListName = "" },
			wantErr: true,
		},
		{
			name:    "invalid report page size",
			mutate:  func(c *Config) { c.Report.PDF.PageSize = "Tabloid" },
			wantErr: true,
		},
		{
			name:    "invalid report orientation",
			mutate:  func(c *Config) { c.Report.PDF.Orientation = "sideways" },
			wantErr: true,
		},
		{
			name: "valid report config",
			mutate: func(c *Config) {
				c.Report.PDF = PDFConfig{PageSize: "A4", Orientation: "landscape"}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_AuthEnabled(t *testing.T) {
	cfg := &Config{}
	if cfg.AuthEnabled() {
		t.Error("expected auth disabled when secret is empty")
	}
	cfg.Auth.Secret = "s3cret"
	if !cfg.AuthEnabled() {
		t.Error("expected auth enabled when secret is set")
	}
}

func TestProbeConfig_Address(t *testing.T) {
	p := ProbeConfig{Host: "probe1.local", Port: 9390}
	if addr := p.Address(); addr != "probe1.local:9390" {
		t.Errorf("expected 'probe1.local:9390', got %s", addr)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Path: "/data/scanhub.db"}
	dsn := cfg.DSN()
	if dsn == "" {
		t.Error("expected non-empty DSN")
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"http://localhost:3000", "https://example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	if !cfg.Enabled {
		t.Error("expected CORS to be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %d", len(cfg.AllowedOrigins))
	}
}

func TestPDFConfig_Defaults(t *testing.T) {
	cfg := PDFConfig{
		PageSize:          "A4",
		Orientation:       "portrait",
		MarginTop:         15.0,
		MarginBottom:      15.0,
		MarginLeft:        15.0,
		MarginRight:       15.0,
		FontFamily:        "Arial",
		FontSize:          10.0,
		HeaderFontSize:    14.0,
		EnablePageNumbers: true,
	}

	if cfg.PageSize != "A4" {
		t.Errorf("expected page size A4, got %s", cfg.PageSize)
	}
	if cfg.MarginTop != 15.0 {
		t.Errorf("expected margin 15.0, got %f", cfg.MarginTop)
	}
}
