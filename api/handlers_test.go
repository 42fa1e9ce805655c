package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wagerbook/models"
	"wagerbook/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	wagers *service.MockWagerService
	escrow *service.MockEscrowService
	router *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		wagers: &service.MockWagerService{},
		escrow: &service.MockEscrowService{},
	}
	f.router = gin.New()
	NewHandler(f.wagers, f.escrow).RegisterRoutes(f.router.Group("/v1"))

	t.Cleanup(func() {
		f.wagers.AssertExpectations(t)
		f.escrow.AssertExpectations(t)
	})
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "error envelope missing")
	code, _ := errObj["code"].(string)
	return code
}

func createBody() map[string]any {
	return map[string]any{
		"creator_id":    "party-creator",
		"type":          "HEAD_TO_HEAD",
		"timeframe":     "WEEK_5",
		"start_date":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"end_date":      time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339),
		"is_public":     true,
		"creator_stake": map[string]any{"cash": 10000},
	}
}

func TestHandler_CreateWager(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("CreateWager", mock.Anything, mock.MatchedBy(func(req service.CreateWagerRequest) bool {
			return req.CreatorID == "party-creator" && req.CreatorStake.Cash == 10000
		})).Return(&models.Wager{ID: 1, CreatorID: "party-creator", Status: models.WagerStatusOpen}, nil)

		rec := f.do(t, http.MethodPost, "/v1/wagers", createBody())

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
	})

	t.Run("missing fields are a bad request", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/wagers", map[string]any{"creator_id": "party-creator"})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", errorCode(t, rec))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("CreateWager", mock.Anything, mock.Anything).
			Return(nil, &service.InsufficientFundsError{PartyID: "party-creator", Required: 10000, Shortfall: 4000})

		rec := f.do(t, http.MethodPost, "/v1/wagers", createBody())

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody(t, rec)
		errObj := body["error"].(map[string]any)
		assert.Equal(t, "insufficient_funds", errObj["code"])
		assert.Equal(t, "party-creator", errObj["party_id"])
		assert.Equal(t, float64(4000), errObj["shortfall"])
	})

	t.Run("unbalanced stakes", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("CreateWager", mock.Anything, mock.Anything).
			Return(nil, &service.UnbalancedStakesError{
				RequiredBy:  models.SideOpponent,
				Amount:      5000,
				Suggestions: []string{"add 5000 in cash to the OPPONENT side"},
			})

		rec := f.do(t, http.MethodPost, "/v1/wagers", createBody())

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody(t, rec)
		errObj := body["error"].(map[string]any)
		assert.Equal(t, "unbalanced_stakes", errObj["code"])
		assert.Equal(t, "OPPONENT", errObj["required_by"])
		assert.Equal(t, float64(5000), errObj["amount"])
	})
}

func TestHandler_AcceptWager(t *testing.T) {
	acceptBody := map[string]any{
		"opponent_id": "party-opponent",
		"stake":       map[string]any{"cash": 10000},
	}

	t.Run("accepted", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("AcceptWager", mock.Anything, int64(1), "party-opponent", models.StakeProposal{Cash: 10000}).
			Return(&models.Wager{ID: 1, Status: models.WagerStatusMatched}, nil)

		rec := f.do(t, http.MethodPost, "/v1/wagers/1/accept", acceptBody)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("race loss is a conflict", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("AcceptWager", mock.Anything, int64(1), "party-opponent", mock.Anything).
			Return(nil, service.ErrWagerNotAvailable)

		rec := f.do(t, http.MethodPost, "/v1/wagers/1/accept", acceptBody)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "wager_not_available", errorCode(t, rec))
	})

	t.Run("unknown wager is not found", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("AcceptWager", mock.Anything, int64(42), "party-opponent", mock.Anything).
			Return(nil, service.ErrWagerNotFound)

		rec := f.do(t, http.MethodPost, "/v1/wagers/42/accept", acceptBody)

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", errorCode(t, rec))
	})

	t.Run("non-numeric wager id", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/wagers/abc/accept", acceptBody)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", errorCode(t, rec))
	})
}

func TestHandler_SettleWager(t *testing.T) {
	settleBody := map[string]any{
		"winner_id":          "party-creator",
		"performance_result": "112.4 vs 98.2",
		"settled_by":         "system",
	}

	t.Run("settled", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("SettleWager", mock.Anything, int64(1), "party-creator", "112.4 vs 98.2", "system").
			Return(&models.SettleResult{
				Wager:          &models.Wager{ID: 1, Status: models.WagerStatusSettled},
				WinnerID:       "party-creator",
				LoserID:        "party-opponent",
				AmountReleased: 20000,
				EscrowReleased: true,
			}, nil)

		rec := f.do(t, http.MethodPost, "/v1/wagers/1/settle", settleBody)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("terminal wager is a conflict", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("SettleWager", mock.Anything, int64(1), "party-creator", "112.4 vs 98.2", "system").
			Return(nil, &service.InvalidTransitionError{
				WagerID:   1,
				Current:   models.WagerStatusSettled,
				Requested: models.WagerStatusSettled,
			})

		rec := f.do(t, http.MethodPost, "/v1/wagers/1/settle", settleBody)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "invalid_transition", errorCode(t, rec))
	})

	t.Run("non-participant winner is a validation error", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("SettleWager", mock.Anything, int64(1), "party-creator", "112.4 vs 98.2", "system").
			Return(nil, &service.ValidationError{Field: "winner", Reason: "winner must be one of the participants"})

		rec := f.do(t, http.MethodPost, "/v1/wagers/1/settle", settleBody)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})

	t.Run("collaborator faults are opaque", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("SettleWager", mock.Anything, int64(1), "party-creator", "112.4 vs 98.2", "system").
			Return(nil, fmt.Errorf("pq: connection refused"))

		rec := f.do(t, http.MethodPost, "/v1/wagers/1/settle", settleBody)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		errObj := body["error"].(map[string]any)
		assert.Equal(t, "internal_error", errObj["code"])
		assert.Equal(t, "internal server error", errObj["message"])
	})
}

func TestHandler_CancelWager(t *testing.T) {
	f := newHandlerFixture(t)
	f.wagers.On("CancelWager", mock.Anything, int64(1), "party-creator").Return(nil)

	rec := f.do(t, http.MethodPost, "/v1/wagers/1/cancel", map[string]any{"requester_id": "party-creator"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestHandler_GetWager(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("GetWager", mock.Anything, int64(1)).
			Return(&models.Wager{ID: 1, CreatorID: "party-creator"}, []*models.WagerAsset{{ID: 7, AssetID: "qb-1"}}, nil)

		rec := f.do(t, http.MethodGet, "/v1/wagers/1", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		data := body["data"].(map[string]any)
		assert.NotNil(t, data["wager"])
		assert.NotNil(t, data["assets"])
	})

	t.Run("missing", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("GetWager", mock.Anything, int64(99)).Return(nil, nil, service.ErrWagerNotFound)

		rec := f.do(t, http.MethodGet, "/v1/wagers/99", nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_GetWagerEvents(t *testing.T) {
	f := newHandlerFixture(t)
	f.wagers.On("GetWagerEvents", mock.Anything, int64(1), 5).
		Return([]*models.WagerEvent{{ID: 1, WagerID: 1, Type: models.EventTypeStatusChange}}, nil)

	rec := f.do(t, http.MethodGet, "/v1/wagers/1/events?limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_PartyEndpoints(t *testing.T) {
	t.Run("active wagers", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("GetActiveWagersByParty", mock.Anything, "party-creator").
			Return([]*models.Wager{{ID: 1}}, nil)

		rec := f.do(t, http.MethodGet, "/v1/parties/party-creator/wagers", nil)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.wagers.On("GetStats", mock.Anything, "party-creator").
			Return(&models.WagerStats{TotalWagers: 3, TotalWon: 1}, nil)

		rec := f.do(t, http.MethodGet, "/v1/parties/party-creator/stats", nil)

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandler_EscrowEndpoints(t *testing.T) {
	t.Run("get escrow", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.escrow.On("Get", mock.Anything, "esc-1").
			Return(&models.EscrowAccount{ID: "esc-1", Status: models.EscrowStatusPending}, nil)

		rec := f.do(t, http.MethodGet, "/v1/escrows/esc-1", nil)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("confirm funding", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.escrow.On("ConfirmFunding", mock.Anything, "esc-1", models.SideCreator, "pi_123").
			Return(&models.EscrowAccount{ID: "esc-1", Status: models.EscrowStatusFunded}, nil)

		rec := f.do(t, http.MethodPost, "/v1/escrows/esc-1/confirm-funding", map[string]any{
			"side":        "CREATOR",
			"payment_ref": "pi_123",
		})

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid side", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/escrows/esc-1/confirm-funding", map[string]any{
			"side": "REFEREE",
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", errorCode(t, rec))
	})

	t.Run("conflicting terminal state", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.escrow.On("ConfirmFunding", mock.Anything, "esc-1", models.SideCreator, "").
			Return(nil, service.ErrEscrowConflict)

		rec := f.do(t, http.MethodPost, "/v1/escrows/esc-1/confirm-funding", map[string]any{
			"side": "CREATOR",
		})

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "escrow_conflict", errorCode(t, rec))
	})
}

func TestHandler_PreviewBalance(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/balance/preview", map[string]any{
			"creator":  map[string]any{"cash": 10000},
			"opponent": map[string]any{"cash": 10000},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		data := body["data"].(map[string]any)
		balance := data["balance"].(map[string]any)
		assert.Equal(t, true, balance["balanced"])
	})

	t.Run("unbalanced includes suggestions", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/balance/preview", map[string]any{
			"creator":  map[string]any{"cash": 10000},
			"opponent": map[string]any{"cash": 5000},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		balance := body["data"].(map[string]any)["balance"].(map[string]any)
		assert.Equal(t, false, balance["balanced"])
		assert.NotNil(t, balance["top_up"])
		assert.NotEmpty(t, balance["suggestions"])
	})

	t.Run("negative cash is a validation error", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/balance/preview", map[string]any{
			"creator":  map[string]any{"cash": -1},
			"opponent": map[string]any{"cash": 10000},
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})
}

func TestHandler_MarkAssetDisposed(t *testing.T) {
	f := newHandlerFixture(t)
	f.wagers.On("MarkAssetDisposed", mock.Anything, int64(1), "qb-1").Return(nil)

	rec := f.do(t, http.MethodPost, "/v1/wagers/1/assets/qb-1/dispose", nil)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_UpdateAssetValue(t *testing.T) {
	f := newHandlerFixture(t)
	f.wagers.On("UpdateAssetValue", mock.Anything, int64(1), "qb-1", int64(8200)).Return(nil)

	rec := f.do(t, http.MethodPut, "/v1/wagers/1/assets/qb-1/value", map[string]any{"current_value": 8200})

	require.Equal(t, http.StatusOK, rec.Code)
}
