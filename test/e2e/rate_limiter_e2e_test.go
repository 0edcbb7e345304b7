//go:build e2e

package e2e_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invalid bodies are rejected after admission, so they spend tokens without
// running the pipeline.
func TestE2E_SearchAdmission(t *testing.T) {
	limit, _ := strconv.Atoi(getenv("SEARCH_RATE_PER_MIN", "10"))
	user := uniqueUser("burst")
	var limited *http.Response
	for i := 0; i <= limit+1 && limited == nil; i++ {
		resp, _ := doJSON(t, http.MethodPost, "/v1/search", user, map[string]string{"query": ""})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
		}
	}
	if limited == nil {
		t.Skip("admission limiter not configured (REDIS_URL unset)")
	}
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))
}
