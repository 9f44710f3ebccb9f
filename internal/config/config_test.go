package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.Planning.KMin != 2 || cfg.Planning.KMax != 10 || cfg.Planning.TargetMinPerCluster != 25 {
		t.Errorf("unexpected k defaults: %+v", cfg.Planning)
	}
	if cfg.Planning.SequenceStrategy != "horseshoe" || cfg.Planning.CenterStrategy != "kde" {
		t.Errorf("unexpected strategies: %+v", cfg.Planning)
	}
	if cfg.RouteCacheTTL != 30*24*time.Hour {
		t.Errorf("cache ttl: got %v", cfg.RouteCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/plans")
	t.Setenv("PLAN_K_MIN", "3")
	t.Setenv("PLAN_K_MAX", "8")
	t.Setenv("PLAN_SEQUENCE_STRATEGY", "nearest_neighbor")
	t.Setenv("PLAN_MERGE_SMALL_CLUSTERS", "false")
	t.Setenv("ROUTE_CACHE_TTL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Planning.KMin != 3 || cfg.Planning.KMax != 8 {
		t.Errorf("k range: got [%d, %d]", cfg.Planning.KMin, cfg.Planning.KMax)
	}
	if cfg.Planning.MergeSmallClusters {
		t.Error("merge should be disabled")
	}
	if cfg.RouteCacheTTL != 2*time.Hour {
		t.Errorf("cache ttl: got %v", cfg.RouteCacheTTL)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"no database":   {},
		"bad k range":   {"SQLITE_PATH": "x.db", "PLAN_K_MIN": "5", "PLAN_K_MAX": "2"},
		"bad sequence":  {"SQLITE_PATH": "x.db", "PLAN_SEQUENCE_STRATEGY": "tsp"},
		"bad center":    {"SQLITE_PATH": "x.db", "PLAN_CENTER_STRATEGY": "mean"},
		"zero max time": {"SQLITE_PATH": "x.db", "PLAN_MAX_ROUTE_TIME_MIN": "0"},
		"bad int":       {"SQLITE_PATH": "x.db", "PLAN_K_MAX": "ten"},
		"bad float":     {"SQLITE_PATH": "x.db", "PLAN_MAX_ROUTE_TIME_MIN": "not-a-number"},
		"bad bool":      {"SQLITE_PATH": "x.db", "ROUTING_MOCK": "maybe"},
		"bad duration":  {"SQLITE_PATH": "x.db", "ROUTE_CACHE_TTL": "30 days"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("SQLITE_PATH", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadNamesEveryMalformedValue(t *testing.T) {
	t.Setenv("SQLITE_PATH", "x.db")
	t.Setenv("PLAN_K_MAX", "ten")
	t.Setenv("PLAN_RANDOM_SEED", "4.2")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{`PLAN_K_MAX="ten"`, `PLAN_RANDOM_SEED="4.2"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
