package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/datastore"
)

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminCookies := env.signIn(t, "admin@example.com")
	userCookies := env.signIn(t, "user@example.com")

	saveViaAPI(t, env, userCookies, "Maturity", "ناضج", 0.9)
	saveViaAPI(t, env, adminCookies, "Bud", "برعم", 0.5)

	t.Run("regular account is refused", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/admin/users", http.NoBody), userCookies)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/admin/analyses", http.NoBody), userCookies)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin lists every account", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/admin/users", http.NoBody), adminCookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var users []adminUserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		require.Len(t, users, 2)

		roles := make(map[string]string, len(users))
		for _, u := range users {
			roles[u.Email] = u.Role
		}
		assert.Equal(t, datastore.RoleAdmin, roles["admin@example.com"])
		assert.Equal(t, datastore.RoleUser, roles["user@example.com"])
	})

	t.Run("admin lists analyses across owners", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/admin/analyses", http.NoBody), adminCookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var records []adminRecordResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 2)

		owners := make(map[string]bool, len(records))
		for _, record := range records {
			owners[record.OwnerID] = true
		}
		assert.Len(t, owners, 2, "records come from both owners")
	})

	t.Run("limit trims the listing", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/admin/analyses?limit=1", http.NoBody), adminCookies)
		require.Equal(t, http.StatusOK, rec.Code)

		var records []adminRecordResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		assert.Len(t, records, 1)
	})
}
