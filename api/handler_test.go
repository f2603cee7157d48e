package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"clipforge/config"
	"clipforge/facerec"
	"clipforge/jobstore"
	"clipforge/pipeline"
	"clipforge/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway is a map-backed store.Gateway for handler tests.
type stubGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubGateway() *stubGateway {
	return &stubGateway{objects: map[string][]byte{}}
}

func (g *stubGateway) Download(ctx context.Context, ref, localPath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[ref]
	if !ok {
		return store.ErrNotFound
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (g *stubGateway) Upload(ctx context.Context, localPath, ref string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[ref] = data
	return nil
}

func (g *stubGateway) List(ctx context.Context, prefix string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	refs := []string{}
	for ref := range g.objects {
		if strings.HasPrefix(ref, prefix) {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (g *stubGateway) Delete(ctx context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[ref]; !ok {
		return store.ErrNotFound
	}
	delete(g.objects, ref)
	return nil
}

func (g *stubGateway) DeleteBatch(ctx context.Context, refs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ref := range refs {
		delete(g.objects, ref)
	}
	return nil
}

func (g *stubGateway) SignedURL(ctx context.Context, ref, method string) (string, error) {
	return "https://store.example/" + ref, nil
}

type stubTranscoder struct{}

func (stubTranscoder) Probe(ctx context.Context, source string) (float64, error) { return 60, nil }
func (stubTranscoder) Cut(ctx context.Context, source string, startSec, durSec float64, outPath string) error {
	return os.WriteFile(outPath, []byte("cut"), 0o644)
}
func (stubTranscoder) Concat(ctx context.Context, paths []string, outPath string) error {
	return os.WriteFile(outPath, []byte("joined"), 0o644)
}

type stubDescriber struct{}

func (stubDescriber) GenerateWithRetry(ctx context.Context, prompt, mediaRef, model string) (string, error) {
	return "[]", nil
}

type stubFaceFinder struct{}

func (stubFaceFinder) FindScenes(ctx context.Context, videoRef string, castPhotoRefs []string) ([]facerec.Scene, error) {
	return nil, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *config.Config, jobstore.Store, *stubGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		MaxConcurrency: 1,
		SegmentSeconds: 600,
		AuthEnable:     false,
		TempDir:        t.TempDir(),
	}
	jobs := jobstore.NewMemoryStore()
	gw := newStubGateway()
	exec, err := pipeline.NewExecutor(cfg, jobs, gw, stubTranscoder{}, stubDescriber{}, stubFaceFinder{})
	require.NoError(t, err)

	// The executor is deliberately not started: submitted jobs stay queued,
	// so records keep their pending status for the duration of a test.
	router := SetupRouter(exec, jobs, gw, cfg)
	return router, cfg, jobs, gw
}

func doJSON(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, target, nil)
	} else {
		req, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHandleSplit(t *testing.T) {
	router, _, jobs, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/split",
		`{"source": "ws/ep1.mp4", "segmentSeconds": 60, "outputPrefix": "ws/segments"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["jobId"])
	assert.Equal(t, "pending", resp["status"])

	job, err := jobs.Read(context.Background(), resp["jobId"])
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusPending, job.Status)
}

func TestHandleSplitDefaultsSegmentLength(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	// Omitting segmentSeconds falls back to the configured default rather
	// than failing validation.
	w := doJSON(router, "POST", "/api/v1/split",
		`{"source": "ws/ep1.mp4", "outputPrefix": "ws/segments"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleSplitRejectsBadRequests(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/split", `{"segmentSeconds": 60}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/api/v1/split", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMetadataAndClipsAndJoin(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/metadata",
		`{"videos": ["ws/a.mp4"], "promptTemplate": "describe {{source_filename}}", "outputPrefix": "ws/meta"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, "POST", "/api/v1/clips",
		`{"metadataRefs": ["ws/meta/a_metadata.json"], "outputPrefix": "ws/clips"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, "POST", "/api/v1/face-clips",
		`{"video": "ws/ep1.mp4", "castPhotos": ["ws/cast/a.jpg"], "outputPrefix": "ws/clips"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, "POST", "/api/v1/face-clips",
		`{"video": "ws/ep1.mp4", "castPhotos": [], "outputPrefix": "ws/clips"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/api/v1/join",
		`{"clips": ["ws/clips/a_clip_1.mp4"], "outputPrefix": "ws/final"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, "POST", "/api/v1/join", `{"clips": [], "outputPrefix": "ws/final"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetJob(t *testing.T) {
	router, _, jobs, _ := setupTestRouter(t)
	ctx := context.Background()

	require.NoError(t, jobs.Create(ctx, "job1"))
	require.NoError(t, jobs.Write(ctx, "job1", jobstore.StatusCompleted, "Successfully split video into 3 segments.",
		jobstore.WithGeneratedFiles([]string{"ws/segments/ep1_part_001.mp4"})))

	w := doJSON(router, "GET", "/api/v1/jobs/job1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var job jobstore.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, jobstore.StatusCompleted, job.Status)
	assert.Equal(t, []string{"ws/segments/ep1_part_001.mp4"}, job.GeneratedFiles)

	w = doJSON(router, "GET", "/api/v1/jobs/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleStopJob(t *testing.T) {
	router, _, jobs, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/split",
		`{"source": "ws/ep1.mp4", "segmentSeconds": 60, "outputPrefix": "out"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(router, "POST", "/api/v1/jobs/"+resp["jobId"]+"/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "POST", "/api/v1/jobs/nonexistent/stop", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	ctx := context.Background()
	require.NoError(t, jobs.Create(ctx, "done1"))
	require.NoError(t, jobs.Write(ctx, "done1", jobstore.StatusCompleted, "done"))
	w = doJSON(router, "POST", "/api/v1/jobs/done1/stop", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleFiles(t *testing.T) {
	router, _, _, gw := setupTestRouter(t)
	gw.objects["ws/segments/ep1_part_001.mp4"] = []byte("a")
	gw.objects["ws/segments/ep1_part_002.mp4"] = []byte("b")
	gw.objects["other/file.mp4"] = []byte("c")

	t.Run("list by prefix", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/files?prefix=ws/segments/", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string][]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp["files"], 2)
	})

	t.Run("signed url", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/files/signed-url?ref=ws/segments/ep1_part_001.mp4", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "https://store.example/")

		w = doJSON(router, "GET", "/api/v1/files/signed-url?ref=../../etc/passwd", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(router, "GET", "/api/v1/files/signed-url?ref=a.mp4&method=DELETE", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := doJSON(router, "DELETE", "/api/v1/files?ref=other/file.mp4", "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "DELETE", "/api/v1/files?ref=other/file.mp4", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete batch", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/files/delete-batch",
			`{"refs": ["ws/segments/ep1_part_001.mp4", "ws/segments/ep1_part_002.mp4"]}`)
		assert.Equal(t, http.StatusOK, w.Code)

		left, _ := gw.List(context.Background(), "ws/segments/")
		assert.Empty(t, left)
	})
}

func TestAuthMiddleware(t *testing.T) {
	router, cfg, _, _ := setupTestRouter(t)

	t.Run("Auth disabled", func(t *testing.T) {
		cfg.AuthEnable = false
		w := doJSON(router, "GET", "/api/v1/files", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Auth enabled, no token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := doJSON(router, "GET", "/api/v1/files", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, wrong token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files", nil)
		req.Header.Set("Authorization", "Bearer wrong-key")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, correct token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/files", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
