package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memorylib/integrator/internal/app"
	"github.com/memorylib/integrator/internal/config"
	"github.com/memorylib/integrator/internal/testutil"
)

// databaseTestContext holds all dependencies for integration tests that run
// the full stack against a real database.
type databaseTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	dbDriver  string
}

// setupDatabaseTest initializes the DI container against the test database
// and exposes the full router through a test server.
func setupDatabaseTest(t *testing.T, dbDriver string) *databaseTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	cfg := &config.Config{
		ServerHost:           "localhost",
		ServerPort:           8080,
		DBDriver:             dbDriver,
		DBConnectionString:   dsn,
		DBMaxOpenConnections: 10,
		DBMaxIdleConnections: 5,
		DBConnMaxLifetime:    time.Hour,
		LogLevel:             "error",
		StagingCollection:    "staging_articles",
		ArchiveCollection:    "articles",
		RetryMaxAttempts:     3,
		RetryInitialBackoff:  5 * time.Millisecond,
		RetryMaxBackoff:      50 * time.Millisecond,
		MetricsEnabled:       false,
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	handler := httpSrv.GetHandler()
	require.NotNil(t, handler, "handler should not be nil after SetupRouter")

	testServer := httptest.NewServer(handler)

	return &databaseTestContext{
		container: container,
		db:        db,
		server:    testServer,
		dbDriver:  dbDriver,
	}
}

// teardownDatabaseTest cleans up all resources.
func teardownDatabaseTest(t *testing.T, ctx *databaseTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}

	if ctx.container != nil {
		if err := ctx.container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}

	if ctx.db != nil {
		testutil.TeardownDB(t, ctx.db)
	}
}

// skipUnlessDatabase skips the test when the requested database is not available.
func skipUnlessDatabase(t *testing.T, dbDriver string) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if dbDriver == "postgres" {
		testutil.SkipIfNoPostgres(t)
	} else {
		testutil.SkipIfNoMySQL(t)
	}
}

// TestIntegration_Database_PushFlow runs the complete push delivery flow
// against both PostgreSQL and MySQL.
func TestIntegration_Database_PushFlow(t *testing.T) {
	testCases := []struct {
		name     string
		dbDriver string
	}{
		{"PostgreSQL", "postgres"},
		{"MySQL", "mysql"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			skipUnlessDatabase(t, tc.dbDriver)

			ctx := setupDatabaseTest(t, tc.dbDriver)
			defer teardownDatabaseTest(t, ctx)

			// Readiness reflects the live database connection.
			resp, body := doRequest(t, http.MethodGet, ctx.server.URL+"/ready", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), `"status":"ready"`)

			testutil.SeedDocument(t, ctx.db, tc.dbDriver, "staging_articles", "alpha-100", map[string]any{
				"status":              "processed",
				"title":               "Database Flow",
				"queuedAt":            "2026-05-01T10:00:00Z",
				"processingStartedAt": "2026-05-01T10:00:05Z",
				"processedAt":         "2026-05-01T10:00:09Z",
				"batchId":             "batch-7",
			})

			// First delivery moves the article.
			resp, _ = pushDocument(t, ctx.server.URL, "alpha-100")
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)

			archived, exists := testutil.GetDocumentFields(t, ctx.db, tc.dbDriver, "articles", "alpha-100")
			require.True(t, exists, "article should be archived")
			assert.Equal(t, "Database Flow", archived["title"])
			assert.NotContains(t, archived, "status")
			assert.NotContains(t, archived, "batchId")
			assert.Contains(t, archived, "integratedAt")
			assert.Contains(t, archived, "updatedAt")

			_, exists = testutil.GetDocumentFields(t, ctx.db, tc.dbDriver, "staging_articles", "alpha-100")
			assert.False(t, exists, "staged article should be deleted")

			// Redelivery converges without rewriting the archive.
			resp, _ = pushDocument(t, ctx.server.URL, "alpha-100")
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)

			after, exists := testutil.GetDocumentFields(t, ctx.db, tc.dbDriver, "articles", "alpha-100")
			require.True(t, exists)
			assert.Equal(t, archived["integratedAt"], after["integratedAt"])

			// Unknown documents are rejected and acknowledged.
			resp, body = pushDocument(t, ctx.server.URL, "never-staged")
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &response))
			assert.Equal(t, "rejected", response["outcome"])

			// Status reports occupancy of both tables.
			resp, body = doRequest(t, http.MethodGet, ctx.server.URL+"/status", nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var status map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &status))
			assert.Equal(t, float64(0), status["staged"])
			assert.Equal(t, float64(1), status["archived"])
		})
	}
}
