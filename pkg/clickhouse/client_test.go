package clickhouse

import (
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "fxpulse",
		User:        "default",
		Password:    "secret",
		DialTimeout: 5 * time.Second,
		AsyncInsert: true,
	})
	want := "clickhouse://default:secret@ch:9000/fxpulse?async_insert=1&dial_timeout=5s"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}

	dsn = BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "fxpulse", User: "u", UseHTTP: true})
	want = "http://u:@ch:8123/fxpulse"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}
}
