package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/catalog"
	"github.com/stubbs41/collectthemall/backend/internal/database"
	"github.com/stubbs41/collectthemall/backend/internal/localstore"
	"github.com/stubbs41/collectthemall/backend/internal/services"
	"github.com/stubbs41/collectthemall/backend/internal/store"
	"github.com/stubbs41/collectthemall/backend/internal/syncer"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st := store.NewStore(db, store.NewPriceCache(localstore.NewDBStore(db)))
	return SetupRouter(Deps{
		DB:        db,
		Sessions:  auth.NewSessionManager(db),
		Store:     st,
		Registry:  syncer.NewRegistry(st),
		Catalog:   catalog.NewClient(""),
		Shares:    services.NewShareService(db),
		Analytics: services.NewAnalyticsService(db),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signIn(t *testing.T, router *gin.Engine, userID string) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/signin", "", gin.H{"user_id": userID})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "ready", resp.State)
	return resp.Token
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCollectionRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/collection", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/collection", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "an unknown token is the same as no token")
}

func TestCollectionFlow(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, "user-1")

	// Add the same card twice: added, then updated.
	addBody := gin.H{
		"card":            gin.H{"id": "base1-4", "name": "Charizard", "market_price": 420.00},
		"collection_type": "have",
	}
	w := doJSON(t, router, http.MethodPost, "/api/collection/cards", token, addBody)
	require.Equal(t, http.StatusOK, w.Code)

	var addResp struct {
		Status      string `json:"status"`
		NewQuantity int    `json:"new_quantity"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &addResp))
	assert.Equal(t, "added", addResp.Status)
	assert.Equal(t, 1, addResp.NewQuantity)

	w = doJSON(t, router, http.MethodPost, "/api/collection/cards", token, addBody)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &addResp))
	assert.Equal(t, "updated", addResp.Status)
	assert.Equal(t, 2, addResp.NewQuantity)

	// Snapshot shows the card in the default group.
	w = doJSON(t, router, http.MethodGet, "/api/collection", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Groups map[string]struct {
			Have map[string]struct {
				Quantity int `json:"quantity"`
			} `json:"have"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Contains(t, snap.Groups, "Default")
	assert.Equal(t, 2, snap.Groups["Default"].Have["base1-4"].Quantity)

	// Decrement, then remove.
	removeBody := gin.H{"card_id": "base1-4", "collection_type": "have", "decrement_only": true}
	w = doJSON(t, router, http.MethodDelete, "/api/collection/cards", token, removeBody)
	require.Equal(t, http.StatusOK, w.Code)
	var removeResp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &removeResp))
	assert.Equal(t, "decremented", removeResp.Status)

	w = doJSON(t, router, http.MethodDelete, "/api/collection/cards", token, removeBody)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &removeResp))
	assert.Equal(t, "removed", removeResp.Status)

	// Removing again is a quiet not_found, still 200.
	w = doJSON(t, router, http.MethodDelete, "/api/collection/cards", token, removeBody)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &removeResp))
	assert.Equal(t, "not_found", removeResp.Status)
}

func TestGroupEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, "user-1")

	w := doJSON(t, router, http.MethodPost, "/api/collection/groups", token, gin.H{"name": "Binder"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/collection/groups", token, gin.H{"name": "Binder"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "duplicate group names are rejected")

	w = doJSON(t, router, http.MethodPut, "/api/collection/groups/Binder", token, gin.H{"new_name": "Trades"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/collection/groups/Gone", token, gin.H{"new_name": "Elsewhere"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/collection/groups/Default", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "the default group is protected")

	w = doJSON(t, router, http.MethodDelete, "/api/collection/groups/Trades", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGroupValuesEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, "user-1")

	addBody := gin.H{
		"card":            gin.H{"id": "xy1-1", "name": "Venusaur", "market_price": 2.50},
		"collection_type": "have",
	}
	doJSON(t, router, http.MethodPost, "/api/collection/cards", token, addBody)
	doJSON(t, router, http.MethodPost, "/api/collection/cards", token, addBody)

	w := doJSON(t, router, http.MethodGet, "/api/collection/values", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Groups []struct {
			Name      string  `json:"name"`
			HaveValue float64 `json:"have_value"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "Default", resp.Groups[0].Name)
	assert.InDelta(t, 5.00, resp.Groups[0].HaveValue, 1e-9)
}

func TestShareFlow(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, "user-1")

	addBody := gin.H{
		"card":            gin.H{"id": "base1-4", "name": "Charizard", "market_price": 420.00},
		"collection_type": "have",
	}
	doJSON(t, router, http.MethodPost, "/api/collection/cards", token, addBody)

	w := doJSON(t, router, http.MethodPost, "/api/shares", token, gin.H{"expires_in": "24h"})
	require.Equal(t, http.StatusCreated, w.Code)
	var share struct {
		ShareToken string `json:"share_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &share))
	require.NotEmpty(t, share.ShareToken)

	// The share link works without any session.
	w = doJSON(t, router, http.MethodGet, "/api/shared/"+share.ShareToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var viewed struct {
		GroupName string `json:"group_name"`
		Items     []struct {
			CardID string `json:"card_id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &viewed))
	assert.Equal(t, "Default", viewed.GroupName)
	require.Len(t, viewed.Items, 1)
	assert.Equal(t, "base1-4", viewed.Items[0].CardID)

	// Revoked links stop resolving.
	w = doJSON(t, router, http.MethodDelete, "/api/shares/"+share.ShareToken, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/shared/"+share.ShareToken, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPresenceUnavailableWithoutRedis(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, "user-1")

	w := doJSON(t, router, http.MethodPost, "/api/shares", token, gin.H{"expires_in": "1h"})
	require.Equal(t, http.StatusCreated, w.Code)
	var share struct {
		ShareToken string `json:"share_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &share))

	w = doJSON(t, router, http.MethodPost, "/api/shared/"+share.ShareToken+"/presence", "",
		gin.H{"viewer_id": "viewer-a", "name": "Ash"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignOutInvalidatesToken(t *testing.T) {
	router := newTestRouter(t)
	token := signIn(t, router, "user-1")

	w := doJSON(t, router, http.MethodPost, "/api/auth/signout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/collection", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
