package models

import (
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips query",
			raw:  "http://example.test/imovel/casa-1?utm_source=email&pagina=2",
			want: "http://example.test/imovel/casa-1",
		},
		{
			name: "strips fragment",
			raw:  "http://example.test/imovel/casa-1#fotos",
			want: "http://example.test/imovel/casa-1",
		},
		{
			name: "strips trailing slash",
			raw:  "http://example.test/imovel/casa-1/",
			want: "http://example.test/imovel/casa-1",
		},
		{
			name: "lowercases host",
			raw:  "http://Example.TEST/imovel/casa-1",
			want: "http://example.test/imovel/casa-1",
		},
		{
			name: "trims whitespace",
			raw:  "  http://example.test/imovel/casa-1 ",
			want: "http://example.test/imovel/casa-1",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.raw); got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestListingRecordIdentity(t *testing.T) {
	withCode := &ListingRecord{Code: "12345", URL: "http://example.test/imovel/casa-1"}
	if got := withCode.Identity(); got != "12345" {
		t.Fatalf("identity = %q, want the site code", got)
	}

	withoutCode := &ListingRecord{URL: "http://example.test/imovel/casa-1?ref=busca"}
	if got := withoutCode.Identity(); got != "http://example.test/imovel/casa-1" {
		t.Fatalf("identity = %q, want the normalized URL", got)
	}

	empty := &ListingRecord{}
	if got := empty.Identity(); got != "" {
		t.Fatalf("identity = %q, want empty", got)
	}
}

func TestRunResultSkipRatio(t *testing.T) {
	result := &RunResult{Attempted: 20, Skipped: 5}
	if got := result.SkipRatio(); got != 0.25 {
		t.Fatalf("skip ratio = %v, want 0.25", got)
	}

	idle := &RunResult{}
	if got := idle.SkipRatio(); got != 0 {
		t.Fatalf("skip ratio with no attempts = %v, want 0", got)
	}
}

func TestRunResultDuration(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	result := &RunResult{StartTime: start, EndTime: start.Add(90 * time.Second)}
	if got := result.Duration(); got != 90*time.Second {
		t.Fatalf("duration = %v, want 90s", got)
	}
}
