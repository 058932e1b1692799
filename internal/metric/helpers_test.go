package metric

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/config"
	"github.com/citadel-ai/langcheckchat/internal/repository"
	"github.com/citadel-ai/langcheckchat/internal/scoring"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newSidecar serves every metric with value 0.3, except the failing ones which return 500.
func newSidecar(t *testing.T, failing ...string) *scoring.SidecarClient {
	t.Helper()
	fail := map[string]bool{}
	for _, f := range failing {
		fail[f] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		if fail[path.Base(r.URL.Path)] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"value": 0.3}`))
	}))
	t.Cleanup(srv.Close)
	return scoring.NewSidecarClient(srv.URL, 5*time.Second)
}

type fakeJudge struct {
	mu     sync.Mutex
	calls  int
	reply  string
	onCall func(n int)
}

func (j *fakeJudge) Complete(ctx context.Context, prompt string) (string, error) {
	j.mu.Lock()
	j.calls++
	n := j.calls
	j.mu.Unlock()
	if j.onCall != nil {
		j.onCall(n)
	}
	return j.reply, nil
}

func newJudge() *fakeJudge {
	return &fakeJudge{reply: "Looks fine.\nScore: 5"}
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func testConfig(local, remote bool) *config.Config {
	cfg := &config.Config{}
	cfg.Local.Enabled = local
	cfg.Local.ScoringServiceURL = "http://sidecar.invalid"
	cfg.Remote.Enabled = remote
	cfg.Remote.APIKey = "test-key"
	cfg.ApplyDefaults()
	return cfg
}

type testStores struct {
	db       *sqlx.DB
	chatLogs repository.ChatLogRepository
	metrics  repository.MetricRepository
}

func newStores(t *testing.T) testStores {
	t.Helper()
	db, err := repository.NewDB(repository.DriverSQLite, filepath.Join(t.TempDir(), "metrics.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))
	t.Cleanup(func() { db.Close() })
	return testStores{
		db:       db,
		chatLogs: repository.NewChatLogRepository(db, zap.NewNop()),
		metrics:  repository.NewMetricRepository(db, zap.NewNop()),
	}
}
