package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/authd/models"
	"github.com/upb/authd/services"
	"go.uber.org/zap"
)

func TestAuditHandler_HandleListAuditLogs(t *testing.T) {
	actor := int64(7)

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockAuditLister)
		expectedStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setupMock: func(m *MockAuditLister) {
				m.On("List", mock.Anything, models.AuditFilter{Limit: 100}).
					Return([]*models.AuditLog{models.NewAuditLog(models.AuditActionSignIn, "user")}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "filters",
			query: "?action=sign_in&actor_id=7&limit=20&offset=40",
			setupMock: func(m *MockAuditLister) {
				m.On("List", mock.Anything, models.AuditFilter{
					Action:  models.AuditActionSignIn,
					ActorID: &actor,
					Limit:   20,
					Offset:  40,
				}).Return([]*models.AuditLog{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "limit is capped",
			query: "?limit=10000",
			setupMock: func(m *MockAuditLister) {
				m.On("List", mock.Anything, models.AuditFilter{Limit: maxAuditPage}).
					Return([]*models.AuditLog{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad actor",
			query:          "?actor_id=bob",
			setupMock:      func(m *MockAuditLister) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad offset",
			query:          "?offset=x",
			setupMock:      func(m *MockAuditLister) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "store outage",
			query: "",
			setupMock: func(m *MockAuditLister) {
				m.On("List", mock.Anything, models.AuditFilter{Limit: 100}).
					Return(nil, services.ErrStoreUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := new(MockAuditLister)
			tt.setupMock(lister)
			handler := NewAuditHandler(lister, zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleListAuditLogs(w, newRequest(http.MethodGet, "/api/v1/audit/logs"+tt.query, ""))

			assert.Equal(t, tt.expectedStatus, w.Code)
			lister.AssertExpectations(t)
		})
	}
}
