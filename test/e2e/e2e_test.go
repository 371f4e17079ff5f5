//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E_CrawlSearchLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	deployURL := env.Site.URL + "/guides/deployments"
	dbURL := env.Site.URL + "/guides/databases"

	t.Run("health reports an empty collection", func(t *testing.T) {
		resp, err := env.Get("/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", resp.Body["status"])
		assert.Equal(t, testCollection, resp.Body["collection"])
		assert.Equal(t, float64(0), resp.Body["collection_count"])
	})

	t.Run("crawl requires the api key", func(t *testing.T) {
		resp, err := env.Post("/crawl", map[string]any{"url": deployURL}, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, err = env.Post("/crawl", map[string]any{"url": deployURL}, "wrong")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("crawl indexes pages", func(t *testing.T) {
		resp, err := env.Post("/crawl", map[string]any{"url": deployURL, "chunk_size": 120}, testAPIKey)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
		assert.Equal(t, true, resp.Body["success"])
		assert.Greater(t, resp.Body["chunks_added"].(float64), float64(1))

		resp, err = env.Post("/crawl", map[string]any{"url": dbURL}, testAPIKey)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), resp.Body["chunks_added"])
	})

	t.Run("empty page is reported without error", func(t *testing.T) {
		resp, err := env.Post("/crawl", map[string]any{"url": env.Site.URL + "/empty"}, testAPIKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, resp.Body["success"])
		assert.Equal(t, float64(0), resp.Body["chunks_added"])
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		resp, err := env.Post("/crawl", map[string]any{"url": deployURL, "chunk_size": 0}, testAPIKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, err = env.Post("/search", map[string]any{"query": ""}, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("search returns nearest chunks first", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]any{"query": "provision a postgres database", "n_results": 3}, "")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		results := resp.Body["results"].([]any)
		require.NotEmpty(t, results)
		assert.LessOrEqual(t, len(results), 3)

		top := results[0].(map[string]any)
		assert.Contains(t, top["content"], "postgres database")
		metadata := top["metadata"].(map[string]any)
		assert.Equal(t, dbURL, metadata["source_url"])

		prev := -1.0
		for _, r := range results {
			d := r.(map[string]any)["distance"].(float64)
			assert.GreaterOrEqual(t, d, prev)
			prev = d
		}
	})

	t.Run("re-crawl overwrites instead of duplicating", func(t *testing.T) {
		before, err := env.Get("/stats")
		require.NoError(t, err)

		resp, err := env.Post("/crawl", map[string]any{"url": deployURL, "chunk_size": 120}, testAPIKey)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		after, err := env.Get("/stats")
		require.NoError(t, err)
		assert.Equal(t, before.Body["total_documents"], after.Body["total_documents"])
	})

	t.Run("sources lists crawled pages", func(t *testing.T) {
		resp, err := env.Get("/sources")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		sources := resp.Body["sources"].([]any)
		require.Len(t, sources, 2)
		first := sources[0].(map[string]any)
		assert.Equal(t, dbURL, first["url"])
		assert.Equal(t, "Databases", first["title"])
	})

	t.Run("page text is archived to S3", func(t *testing.T) {
		content, err := env.S3Client.GetSnapshot(env.Ctx, deployURL)
		require.NoError(t, err)
		assert.Contains(t, content, "Rollbacks")
	})

	t.Run("metrics expose crawl counters", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.ServerURL+"/metrics", nil)
		require.NoError(t, err)
		resp, err := env.HTTPClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(resp.Body)
		assert.Contains(t, body.String(), `crawlvec_crawls_total{outcome="indexed"}`)
	})

	t.Run("delete drops the collection", func(t *testing.T) {
		resp, err := env.Delete("/collection", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, err = env.Delete("/collection", testAPIKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Collection "+testCollection+" deleted successfully", resp.Body["message"])

		resp, err = env.Delete("/collection", testAPIKey)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		stats, err := env.Get("/stats")
		require.NoError(t, err)
		assert.Equal(t, float64(0), stats.Body["total_documents"])
	})
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir := t.TempDir()
	deployURL := env.Site.URL + "/guides/deployments"

	t.Run("crawlvec health", func(t *testing.T) {
		output, err := env.RunCLI(workDir, nil, "health")
		require.NoError(t, err, "health failed: %s", output)
		assert.Contains(t, output, "healthy")
	})

	t.Run("crawlvec crawl", func(t *testing.T) {
		output, err := env.RunCLI(workDir, nil, "crawl", deployURL, "--chunk-size", "200")
		require.NoError(t, err, "crawl failed: %s", output)
		assert.Contains(t, output, "Successfully indexed")
	})

	t.Run("crawlvec search", func(t *testing.T) {
		output, err := env.RunCLI(workDir, nil, "search", "rollback a deployment", "--output")
		require.NoError(t, err, "search failed: %s", output)

		var resp struct {
			Results []map[string]any `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(output), &resp))
		assert.NotEmpty(t, resp.Results)
	})

	t.Run("crawlvec sources", func(t *testing.T) {
		output, err := env.RunCLI(workDir, nil, "sources")
		require.NoError(t, err, "sources failed: %s", output)
		assert.Contains(t, output, deployURL)
	})

	t.Run("crawlvec smoke", func(t *testing.T) {
		graph := &fakeGraph{}
		graphSrv := httptest.NewServer(graph)
		defer graphSrv.Close()

		output, err := env.RunCLI(workDir, []string{"CRAWLVEC_GRAPH_URL=" + graphSrv.URL},
			"smoke", "--url", deployURL, "--query", "How to deploy applications")
		require.NoError(t, err, "smoke failed: %s", output)
		assert.Greater(t, graph.messages, 0)

		data, err := os.ReadFile(filepath.Join(workDir, "test_results.json"))
		require.NoError(t, err)
		var results struct {
			TestsPassed int `json:"tests_passed"`
			TestsFailed int `json:"tests_failed"`
		}
		require.NoError(t, json.Unmarshal(data, &results))
		assert.Equal(t, 5, results.TestsPassed)
		assert.Zero(t, results.TestsFailed)
	})

	t.Run("crawlvec drop", func(t *testing.T) {
		output, err := env.RunCLI(workDir, nil, "drop")
		assert.Error(t, err)
		assert.Contains(t, output, "--yes")

		output, err = env.RunCLI(workDir, nil, "drop", "--yes")
		require.NoError(t, err, "drop failed: %s", output)
		assert.Contains(t, output, "deleted successfully")
	})
}
