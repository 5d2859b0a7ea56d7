package secrets

import (
	"context"
	"testing"
)

func TestEnvResolver(t *testing.T) {
	t.Setenv("CHINOOK_DB", `{"engine":"postgres","host":"db","port":5432,"dbname":"chinook","username":"u","password":"p"}`)

	cfg, err := EnvResolver{}.Resolve(context.Background(), "CHINOOK_DB")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Engine != "postgres" || cfg.Host != "db" || cfg.Port != 5432 || cfg.DBName != "chinook" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvResolverMissing(t *testing.T) {
	if _, err := (EnvResolver{}).Resolve(context.Background(), "NO_SUCH_SECRET"); err == nil {
		t.Error("expected an error for an unset secret")
	}
}

func TestEnvResolverMalformed(t *testing.T) {
	t.Setenv("BAD_SECRET", "not json")
	if _, err := (EnvResolver{}).Resolve(context.Background(), "BAD_SECRET"); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping(`{"chinook":"CHINOOK_DB","billing":"BILLING_DB"}`)
	if err != nil {
		t.Fatalf("ParseMapping: %v", err)
	}
	if m["chinook"] != "CHINOOK_DB" || m["billing"] != "BILLING_DB" {
		t.Errorf("mapping = %v", m)
	}

	empty, err := ParseMapping("")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty mapping = %v, %v", empty, err)
	}

	if _, err := ParseMapping("{"); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}
