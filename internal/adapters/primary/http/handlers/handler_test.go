package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/services"
	"asset-lifecycle-service/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const apiPrefix = "/api/v1/asset-lifecycle"

type testEnv struct {
	assets   *testutil.FakeAssetStore
	feedback *testutil.FakeFeedbackStore
	versions *testutil.FakeVersionRepo
	store    *testutil.FakeObjectStore
	history  *testutil.FakeStatusHistory
	review   *testutil.MockReviewEngine
	trigger  *services.AutoTrigger
	router   *gin.Engine
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		assets:   testutil.NewFakeAssetStore(),
		feedback: testutil.NewFakeFeedbackStore(),
		versions: testutil.NewFakeVersionRepo(),
		store:    testutil.NewFakeObjectStore(),
		history:  &testutil.FakeStatusHistory{},
		review:   new(testutil.MockReviewEngine),
	}

	versionSvc := services.NewVersionStore(env.store, env.versions, env.assets, nil)
	verifier := services.NewConsistencyVerifier(env.assets, services.ConsistencyConfig{
		BaseDelay:   time.Millisecond,
		Factor:      1,
		MaxDelay:    time.Millisecond,
		MaxAttempts: 3,
		MarkerTTL:   time.Minute,
	}, nil)
	revisionSvc := services.NewRevisionTracker(env.assets, env.feedback)
	gateSvc := services.NewQAGate(env.assets, env.review, env.history, nil, nil, nil)
	// settle delay long enough that no review fires during a test
	env.trigger = services.NewAutoTrigger(env.assets, env.store, gateSvc, nil, nil, services.AutoTriggerConfig{
		SettleDelay: time.Hour,
		LockTTL:     time.Minute,
	})
	t.Cleanup(env.trigger.Close)
	uploadSvc := services.NewUploadOrchestrator(env.assets, env.store, versionSvc, verifier, revisionSvc, gateSvc, env.trigger, nil, services.DefaultUploadLimits())
	assetSvc := services.NewAssetService(env.assets, env.history)

	h := New(assetSvc, uploadSvc, versionSvc, gateSvc, revisionSvc, env.trigger)
	env.router = gin.New()
	h.RegisterRoutes(env.router.Group(apiPrefix))
	return env
}

// seedAsset stores an asset for article "abc123" with live model and source
// files when withFiles is set.
func (e *testEnv) seedAsset(status domain.AssetStatus, withFiles bool) uuid.UUID {
	id := uuid.New()
	a := domain.Asset{ID: id, ArticleID: "abc123", Status: status}
	if withFiles {
		a.ModelArtifactRef = e.store.SeedObject("assets/"+id.String()+"/model/1/abc123.glb", []byte("glTF-original-model"))
		a.SourceArtifactRef = e.store.SeedObject("assets/"+id.String()+"/source/1/abc123.blend", []byte("BLENDER-original-source"))
	}
	return e.assets.Seed(a)
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, apiPrefix+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type filePart struct {
	field, name string
	data        []byte
}

func (e *testEnv) upload(t *testing.T, id uuid.UUID, parts ...filePart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", apiPrefix+"/assets/"+id.String()+"/artifacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
