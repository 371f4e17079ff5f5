//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/crawlvec/internal/cli/admin"
	"github.com/cloo-solutions/crawlvec/internal/config"
	"github.com/cloo-solutions/crawlvec/internal/storage"
	"github.com/cloo-solutions/crawlvec/internal/testutil"
)

const (
	testAPIKey     = "e2e-secret"
	testCollection = "e2e_docs"
	snapshotBucket = "e2e-snapshots"
	embeddingDims  = 64
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	App          *admin.App
	ServerURL    string
	ServerCloser func()
	Site         *httptest.Server
	S3Client     *storage.S3Client
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts postgres and S3 containers, a local site to crawl and the
// API server wired the same way crawlvecd wires it.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool, err := pgxpool.New(ctx, pgC.ConnectionString())
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	cfg := &config.Config{
		StoreURL:       pgC.ConnectionString(),
		CollectionName: testCollection,
		FetchTimeout:   10 * time.Second,
		FetchUserAgent: "crawlvec-e2e",
		FetchMaxBytes:  1 << 20,
		S3Endpoint:     s3C.Endpoint(),
		S3AccessKey:    "rustfsadmin",
		S3SecretKey:    "rustfsadmin",
		S3Bucket:       snapshotBucket,
		S3Region:       "us-east-1",
		APIKey:         testAPIKey,
	}

	app, err := admin.NewApp(ctx, cfg, admin.AppOptions{
		Migrate:       true,
		MigrationsDir: "../../migrations",
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Embedder:      wordHashEmbedder{},
	})
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          snapshotBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	serverURL, serverCloser := startServer(t, app.Handler, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		App:          app,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Site:         httptest.NewServer(sitePages()),
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Site != nil {
		e.Site.Close()
	}
	if e.App != nil {
		e.App.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the crawlvec CLI
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "crawlvec-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "crawlvec"), "./cmd/crawlvec")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build crawlvec: %v\n%s", err, out)
	}
}

// RunCLI runs the crawlvec CLI against the test server.
func (e *E2ETestEnv) RunCLI(workDir string, extraEnv []string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "crawlvec"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"CRAWLVEC_API_KEY="+testAPIKey,
		"CRAWLVEC_API_URL="+e.ServerURL,
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse is a decoded response body with its status.
type APIResponse struct {
	StatusCode int
	Body       map[string]any
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, "")
}

func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &APIResponse{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) > 0 && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &out.Body); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return out, nil
}

const deployPage = `<!doctype html>
<html><head><title>Deploying applications</title></head>
<body>
<nav>Home | Docs | Pricing</nav>
<main>
<h1>Deploying applications</h1>
<p>To deploy applications, connect a repository and push. Every push to the main branch
triggers a new deployment that is built and rolled out automatically.</p>
<h2>Rollbacks</h2>
<p>Any previous deployment can be restored from the dashboard. Rollbacks keep the
environment variables of the deployment they restore.</p>
<pre><code class="language-bash">railway up --detach</code></pre>
</main>
<footer>Copyright</footer>
</body></html>`

const databasePage = `<!doctype html>
<html><head><title>Databases</title></head>
<body><main>
<h1>Databases</h1>
<p>Provision a postgres database with one click. Connection strings are injected as
environment variables into every service of the project.</p>
</main></body></html>`

func sitePages() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/guides/deployments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, deployPage)
	})
	mux.HandleFunc("/guides/databases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, databasePage)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><script>var x = 1;</script></head><body></body></html>`)
	})
	return mux
}

// wordHashEmbedder is a deterministic stand-in for a real model: texts sharing
// words end up close in cosine distance.
type wordHashEmbedder struct{}

func (wordHashEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, embeddingDims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,:;!?()[]{}\"'`#*")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%embeddingDims]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm == 0 {
			vec[0] = 1
			norm = 1
		}
		scale := float32(1 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= scale
		}
		out[i] = vec
	}
	return out, nil
}

// fakeGraph records messages sent by the smoke command.
type fakeGraph struct {
	messages int
}

func (g *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthcheck":
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	case "/messages":
		var req struct {
			Messages []json.RawMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		g.messages += len(req.Messages)
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"success":true}`)
	case "/search":
		_, _ = io.WriteString(w, `{"nodes":[],"edges":[]}`)
	default:
		http.NotFound(w, r)
	}
}

func startServer(t *testing.T, handler http.Handler, port int) (string, func()) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
