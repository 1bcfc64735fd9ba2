package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/stratlab-backend/internal/apierr"
	"github.com/yungbote/stratlab-backend/internal/requestdata"
	"github.com/yungbote/stratlab-backend/internal/types"
)

func newTestAuthService(env *testEnv) AuthService {
	return NewAuthService(env.db, env.log, env.userRepo, env.tokenRepo, "test-secret", 15*time.Minute, 24*time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuthService(env)
	ctx := context.Background()

	user := &types.User{Email: "Pat@Example.com", Password: "hunter22", FirstName: "Pat"}
	if err := auth.RegisterUser(ctx, user); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Password == "hunter22" {
		t.Fatal("password stored in plain text")
	}

	// Email is normalized, so login works regardless of case.
	access, refresh, err := auth.LoginUser(ctx, "pat@example.com", "hunter22")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("empty token pair")
	}

	if _, _, err := auth.LoginUser(ctx, "pat@example.com", "wrong"); err == nil {
		t.Error("login with wrong password succeeded")
	}

	// Duplicate registration is a conflict.
	err = auth.RegisterUser(ctx, &types.User{Email: "pat@example.com", Password: "x"})
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeConflict {
		t.Errorf("duplicate register error = %v, want CONFLICT", err)
	}
}

func TestSetContextFromToken(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuthService(env)
	ctx := context.Background()

	user := &types.User{Email: "pat@example.com", Password: "hunter22"}
	if err := auth.RegisterUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	access, _, err := auth.LoginUser(ctx, "pat@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}

	authed, err := auth.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authed)
	if rd == nil || rd.UserID != user.ID {
		t.Fatalf("request data = %+v, want user %s", rd, user.ID)
	}

	if _, err := auth.SetContextFromToken(ctx, "not.a.token"); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuthService(env)
	ctx := context.Background()

	user := &types.User{Email: "pat@example.com", Password: "hunter22"}
	if err := auth.RegisterUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	_, refresh, err := auth.LoginUser(ctx, "pat@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}

	rctx := requestdata.WithRequestData(ctx, &requestdata.RequestData{RefreshToken: refresh, UserID: user.ID})
	newAccess, newRefresh, err := auth.RefreshUser(rctx)
	if err != nil {
		t.Fatalf("RefreshUser: %v", err)
	}
	if newAccess == "" || newRefresh == "" || newRefresh == refresh {
		t.Fatal("refresh did not rotate the token pair")
	}

	// The old refresh token is spent.
	_, _, err = auth.RefreshUser(rctx)
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeNotFound {
		t.Errorf("replayed refresh error = %v, want NOT_FOUND", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuthService(env)
	ctx := context.Background()

	user := &types.User{Email: "pat@example.com", Password: "hunter22"}
	if err := auth.RegisterUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	_, refresh, err := auth.LoginUser(ctx, "pat@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}

	authed := requestdata.WithRequestData(ctx, &requestdata.RequestData{UserID: user.ID})
	if err := auth.LogoutUser(authed); err != nil {
		t.Fatalf("LogoutUser: %v", err)
	}

	stored, err := env.tokenRepo.GetByRefreshToken(ctx, nil, refresh)
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Error("refresh token survived logout")
	}

	if err := auth.LogoutUser(requestdata.WithRequestData(ctx, &requestdata.RequestData{UserID: uuid.Nil})); err == nil {
		t.Error("logout without identity succeeded")
	}
}
