package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"clinic-queue-server/internal/queue"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time   { return c.now }
func (c fixedClock) Today() time.Time { return queue.DateOf(c.now) }

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return gdb, mock
}

func TestLiveQueueOrdersByQueuePosition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := newMockDB(t)
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	today := queue.DateOf(now)

	// Token text sorts T-1000 before T-999; queue position is the real
	// order of the day.
	rows := sqlmock.NewRows([]string{"id", "patient_id", "status", "queue_position", "token_number", "estimated_wait_minutes"}).
		AddRow("a-1", "pat-1", "in_progress", 1, "T-999", 0).
		AddRow("a-2", "pat-2", "scheduled", 2, "T-1000", 10).
		AddRow("a-3", "pat-3", "scheduled", 3, "T-1001", 20)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `appointments` WHERE appointment_date = ?")+".*ORDER BY queue_position asc").
		WithArgs(today).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name"}).
			AddRow("pat-1", "One", "Patient").
			AddRow("pat-2", "Two", "Patient").
			AddRow("pat-3", "Three", "Patient"))

	handler := NewQueueHandler(db, nil, fixedClock{now: now})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/queue/live", nil)

	handler.LiveQueue(c)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			CurrentToken  string `json:"currentToken"`
			PendingTokens []struct {
				TokenNumber string `json:"tokenNumber"`
				EtaMinutes  int    `json:"etaMinutes"`
			} `json:"pendingTokens"`
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "T-999", resp.Data.CurrentToken)
	require.Len(t, resp.Data.PendingTokens, 2)
	assert.Equal(t, "T-1000", resp.Data.PendingTokens[0].TokenNumber)
	assert.Equal(t, "T-1001", resp.Data.PendingTokens[1].TokenNumber)
	assert.Equal(t, 10, resp.Data.PendingTokens[0].EtaMinutes)
	assert.Equal(t, 3, resp.Data.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
