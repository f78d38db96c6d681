package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	"github.com/memorylib/integrator/internal/article/http/dto"
	articleUseCase "github.com/memorylib/integrator/internal/article/usecase"
	apperrors "github.com/memorylib/integrator/internal/errors"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// mockIntegrationUseCase is a mock implementation of usecase.IntegrationUseCase for testing.
type mockIntegrationUseCase struct {
	mock.Mock
}

func (m *mockIntegrationUseCase) Integrate(ctx context.Context, rawID string) *articleDomain.IntegrationResult {
	args := m.Called(ctx, rawID)
	return args.Get(0).(*articleDomain.IntegrationResult)
}

var _ articleUseCase.IntegrationUseCase = (*mockIntegrationUseCase)(nil)

// setupPushHandler creates a push handler with a mocked use case.
func setupPushHandler(t *testing.T) (*PushHandler, *mockIntegrationUseCase) {
	t.Helper()

	mockUseCase := &mockIntegrationUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewPushHandler(mockUseCase, logger), mockUseCase
}

// createTestContext creates a gin test context with an optional JSON body.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

// pushEnvelope builds a push request whose message data encodes rawID.
func pushEnvelope(rawID string) dto.PushRequest {
	return dto.PushRequest{
		Message: dto.PushMessage{
			Data:      base64.StdEncoding.EncodeToString([]byte(rawID)),
			MessageID: "m-1",
		},
		Subscription: "projects/memorylib/subscriptions/staging-processed",
	}
}

func TestPushHandler_HandlePush(t *testing.T) {
	t.Run("Moved_Returns204", func(t *testing.T) {
		handler, mockUseCase := setupPushHandler(t)

		mockUseCase.On("Integrate", mock.Anything, "alpha-001").
			Return(&articleDomain.IntegrationResult{
				DocumentID: "alpha-001",
				Outcome:    articleDomain.OutcomeMoved,
				Attempts:   1,
			}).
			Once()

		c, w := createTestContext(http.MethodPost, "/", pushEnvelope("alpha-001"))
		handler.HandlePush(c)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
		mockUseCase.AssertExpectations(t)
	})

	t.Run("AlreadyMoved_Returns204", func(t *testing.T) {
		handler, mockUseCase := setupPushHandler(t)

		mockUseCase.On("Integrate", mock.Anything, "alpha-001").
			Return(&articleDomain.IntegrationResult{
				DocumentID: "alpha-001",
				Outcome:    articleDomain.OutcomeAlreadyMoved,
				Attempts:   1,
			}).
			Once()

		c, w := createTestContext(http.MethodPost, "/", pushEnvelope("alpha-001"))
		handler.HandlePush(c)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Rejected_Returns200WithBody", func(t *testing.T) {
		handler, mockUseCase := setupPushHandler(t)

		mockUseCase.On("Integrate", mock.Anything, "ghost-article").
			Return(&articleDomain.IntegrationResult{
				Outcome:  articleDomain.OutcomeRejected,
				Attempts: 1,
				Err:      articleDomain.ErrArticleNotStaged,
			}).
			Once()

		c, w := createTestContext(http.MethodPost, "/", pushEnvelope("ghost-article"))
		handler.HandlePush(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.IntegrationResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, "rejected", response.Outcome)
		assert.Contains(t, response.Reason, "not found in staging")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("RetryableFailure_Returns503", func(t *testing.T) {
		handler, mockUseCase := setupPushHandler(t)

		mockUseCase.On("Integrate", mock.Anything, "alpha-001").
			Return(&articleDomain.IntegrationResult{
				DocumentID: "alpha-001",
				Outcome:    articleDomain.OutcomeFailed,
				Attempts:   3,
				Err:        apperrors.Wrap(apperrors.ErrTransient, "connection reset"),
			}).
			Once()

		c, w := createTestContext(http.MethodPost, "/", pushEnvelope("alpha-001"))
		handler.HandlePush(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response dto.IntegrationResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, "failed", response.Outcome)
		assert.Equal(t, 3, response.Attempts)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("NonRetryableFailure_Returns500", func(t *testing.T) {
		handler, mockUseCase := setupPushHandler(t)

		mockUseCase.On("Integrate", mock.Anything, "alpha-001").
			Return(&articleDomain.IntegrationResult{
				DocumentID: "alpha-001",
				Outcome:    articleDomain.OutcomeFailed,
				Attempts:   1,
				Err:        apperrors.New("checksum mismatch"),
			}).
			Once()

		c, w := createTestContext(http.MethodPost, "/", pushEnvelope("alpha-001"))
		handler.HandlePush(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, _ := setupPushHandler(t)

		c, w := createTestContext(http.MethodPost, "/", nil)
		c.Request.Body = io.NopCloser(bytes.NewReader([]byte("invalid json")))

		handler.HandlePush(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, "bad_request", response["error"])
	})

	t.Run("Error_MissingMessageData", func(t *testing.T) {
		handler, _ := setupPushHandler(t)

		request := dto.PushRequest{
			Subscription: "projects/memorylib/subscriptions/staging-processed",
		}

		c, w := createTestContext(http.MethodPost, "/", request)
		handler.HandlePush(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Error_InvalidBase64Data", func(t *testing.T) {
		handler, _ := setupPushHandler(t)

		request := dto.PushRequest{
			Message: dto.PushMessage{
				Data:      "not-base64!!!",
				MessageID: "m-1",
			},
		}

		c, w := createTestContext(http.MethodPost, "/", request)
		handler.HandlePush(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
