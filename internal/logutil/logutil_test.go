package logutil

import (
	"net/http"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func testRedactHeaderValue_SensitiveKeys(t *rapid.T) {
	key := rapid.SampledFrom([]string{
		"Authorization", "X-Amz-Security-Token", "X-Api-Key", "Cookie",
		"aws_secret_access_key", "AWS-Access-Key-Id", "X-Credential",
	}).Draw(t, "key")
	value := rapid.StringMatching(`[A-Za-z0-9]{1,40}`).Draw(t, "value")

	if got := RedactHeaderValue(key, value); got != "[REDACTED]" {
		t.Fatalf("RedactHeaderValue(%q) leaked %q", key, got)
	}
}

func TestRedactHeaderValue_SensitiveKeys(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRedactHeaderValue_SensitiveKeys)
}

func TestRedactHeaderValue_PlainKeysPassThrough(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"Content-Type", "X-Request-Id", "Accept"} {
		if got := RedactHeaderValue(key, "v"); got != "v" {
			t.Errorf("RedactHeaderValue(%q) = %q, want v", key, got)
		}
	}
}

func TestFormatHeadersForLog_SortedAndRedacted(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set("X-Request-Id", "req-1")
	h.Set("Authorization", "Bearer abc")
	h.Set("Accept", "application/json")

	got := FormatHeadersForLog(h)
	want := `accept="application/json"; authorization="[REDACTED]"; x-request-id="req-1"`
	if got != want {
		t.Fatalf("FormatHeadersForLog = %q, want %q", got, want)
	}
	if FormatHeadersForLog(nil) != "{}" {
		t.Fatal("empty headers should format as {}")
	}
}

func testTruncateForLog_Bounded(t *rapid.T) {
	value := rapid.StringMatching(`[a-z\n ]{0,200}`).Draw(t, "value")
	maxChars := rapid.IntRange(1, 100).Draw(t, "max")

	got := TruncateForLog(value, maxChars)
	if strings.Contains(got, "\n") {
		t.Fatalf("output should be single-line: %q", got)
	}
	limit := maxChars + len("... [truncated]")
	if len(got) > limit {
		t.Fatalf("output longer than %d: %d", limit, len(got))
	}
}

func TestTruncateForLog_Bounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTruncateForLog_Bounded)
}
