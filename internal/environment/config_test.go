package environment

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Cwd != "/" {
		t.Errorf("expected default cwd /, got %q", cfg.Cwd)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Timeout)
	}
	if cfg.Executable != "docker" {
		t.Errorf("expected default executable docker, got %q", cfg.Executable)
	}
	if len(cfg.RunArgs) != 1 || cfg.RunArgs[0] != "--rm" {
		t.Errorf("expected default run args [--rm], got %v", cfg.RunArgs)
	}
	if cfg.ContainerLifetime != "2h" {
		t.Errorf("expected default container lifetime 2h, got %q", cfg.ContainerLifetime)
	}
	if cfg.PullTimeout != 2*time.Minute {
		t.Errorf("expected default pull timeout 2m, got %s", cfg.PullTimeout)
	}
}

func TestConfigExecutableEnvOverride(t *testing.T) {
	t.Setenv(ExecutableEnvVar, "podman")

	cfg := Config{}.withDefaults()
	if cfg.Executable != "podman" {
		t.Errorf("expected executable podman, got %q", cfg.Executable)
	}

	// An explicit executable wins over the environment override.
	cfg = Config{Executable: "/usr/local/bin/docker"}.withDefaults()
	if cfg.Executable != "/usr/local/bin/docker" {
		t.Errorf("expected explicit executable to win, got %q", cfg.Executable)
	}
}

func TestConfigEmptyRunArgsMeansNone(t *testing.T) {
	cfg := Config{RunArgs: []string{}}.withDefaults()
	if len(cfg.RunArgs) != 0 {
		t.Errorf("expected empty run args to stay empty, got %v", cfg.RunArgs)
	}
}

func TestResolvedRunArgs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		wantErr bool
	}{
		{
			name: "defaults only",
			cfg:  Config{},
			want: []string{"--rm"},
		},
		{
			name: "memory and cpus",
			cfg:  Config{Memory: "1g", CPUs: "2"},
			want: []string{"--rm", "--memory", "1g", "--cpus", "2"},
		},
		{
			name:    "invalid memory",
			cfg:     Config{Memory: "lots"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.withDefaults().resolvedRunArgs()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
