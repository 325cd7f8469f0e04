package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/session"
)

func TestGetSession_Missing(t *testing.T) {
	assert.Nil(t, GetSession(context.Background()))
	assert.Nil(t, GetUser(context.Background()))
}

func TestGetUser(t *testing.T) {
	store := session.NewStore(session.StoreConfig{})
	s := store.Create()
	ctx := SetSession(context.Background(), s)

	assert.Same(t, s, GetSession(ctx))
	assert.Nil(t, GetUser(ctx), "anonymous session has no user")

	user := &domain.User{ID: 7, Email: "mai@vinuni.edu.vn"}
	s.SetAuth("opaque-token", user)
	assert.Same(t, user, GetUser(ctx))

	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	assert.Same(t, user, GetUserFromRequest(req))

	s.ClearAuth()
	assert.Nil(t, GetUser(ctx))
}
