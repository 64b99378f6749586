package services

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

var otpPattern = regexp.MustCompile(`<strong>(\d{6})</strong>`)

func otpFromMail(t *testing.T, env *testEnv) string {
	t.Helper()
	msg, ok := env.mail.last()
	if !ok {
		t.Fatal("no email sent")
	}
	m := otpPattern.FindStringSubmatch(msg.HTML)
	if m == nil {
		t.Fatalf("no code in email: %s", msg.HTML)
	}
	return m[1]
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.Auth.Register(ctx, RegisterInput{Email: " New@Clinic.Test ", Password: "password123", FirstName: "Ann", LastName: "Lee"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RolePatient || u.IsVerified || u.Email != "new@clinic.test" {
		t.Fatalf("registered user = %+v", u)
	}
	if _, err := env.store.Patients().GetByUserID(ctx, u.ID); err != nil {
		t.Errorf("patient profile not created: %v", err)
	}
	msg, _ := env.mail.last()
	if msg.To != "new@clinic.test" || !strings.Contains(msg.HTML, "/api/v1/auth/verify?token=") {
		t.Errorf("verification email = %+v", msg)
	}

	_, err = env.svc.Auth.Register(ctx, RegisterInput{Email: "new@clinic.test", Password: "password123", FirstName: "A", LastName: "B"})
	assertErrorIs(t, err, store.ErrConflict)

	stored, _ := env.store.Users().GetByID(ctx, u.ID)
	verified, err := env.svc.Auth.VerifyEmail(ctx, stored.VerificationToken)
	if err != nil {
		t.Fatal(err)
	}
	if !verified.IsVerified || verified.VerificationToken != "" {
		t.Errorf("after verify = %+v", verified)
	}
	_, err = env.svc.Auth.VerifyEmail(ctx, stored.VerificationToken)
	assertValidation(t, err)
}

func TestLoginAndRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.svc.Auth.Login(ctx, "pat@clinic.test", "wrong")
	assertErrorIs(t, err, models.ErrUnauthorized)
	_, _, err = env.svc.Auth.Login(ctx, "nobody@clinic.test", "password123")
	assertErrorIs(t, err, models.ErrUnauthorized)

	pair, user, err := env.svc.Auth.Login(ctx, "pat@clinic.test", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != env.patient.UserID || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("login = %+v %+v", pair, user)
	}

	next, err := env.svc.Auth.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatal(err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token was not rotated")
	}
	_, err = env.svc.Auth.Refresh(ctx, pair.RefreshToken)
	assertErrorIs(t, err, models.ErrUnauthorized)

	if err := env.svc.Auth.Logout(ctx, next.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Auth.Logout(ctx, next.RefreshToken); err != nil {
		t.Errorf("second logout error = %v", err)
	}
	_, err = env.svc.Auth.Refresh(ctx, next.RefreshToken)
	assertErrorIs(t, err, models.ErrUnauthorized)
}

func TestOTPFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Auth.RequestOTP(ctx, "ghost@clinic.test"); err != nil {
		t.Errorf("unknown email error = %v", err)
	}
	if _, ok := env.mail.last(); ok {
		t.Error("email sent for unknown address")
	}

	if err := env.svc.Auth.RequestOTP(ctx, "pat@clinic.test"); err != nil {
		t.Fatal(err)
	}
	code := otpFromMail(t, env)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, _, err := env.svc.Auth.VerifyOTP(ctx, "pat@clinic.test", wrong)
	assertErrorIs(t, err, models.ErrUnauthorized)
	u, _ := env.store.Users().GetByID(ctx, env.patient.UserID)
	if u.OTPAttempts != 1 {
		t.Errorf("attempts = %d, want 1", u.OTPAttempts)
	}

	pair, user, err := env.svc.Auth.VerifyOTP(ctx, "pat@clinic.test", code)
	if err != nil {
		t.Fatal(err)
	}
	if pair.AccessToken == "" || user.OTPHash != "" {
		t.Errorf("verify = %+v %+v", pair, user)
	}
	_, _, err = env.svc.Auth.VerifyOTP(ctx, "pat@clinic.test", code)
	assertErrorIs(t, err, models.ErrUnauthorized)
}

func TestOTPAttemptLimit(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.OTPMaxAttempts = 2
	ctx := context.Background()

	if err := env.svc.Auth.RequestOTP(ctx, "pat@clinic.test"); err != nil {
		t.Fatal(err)
	}
	code := otpFromMail(t, env)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 2; i++ {
		_, _, err := env.svc.Auth.VerifyOTP(ctx, "pat@clinic.test", wrong)
		assertErrorIs(t, err, models.ErrUnauthorized)
	}
	_, _, err := env.svc.Auth.VerifyOTP(ctx, "pat@clinic.test", code)
	if err == nil || !strings.Contains(err.Error(), "too many attempts") {
		t.Errorf("error = %v, want too many attempts", err)
	}
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pair, _, err := env.svc.Auth.Login(ctx, "other@clinic.test", "password123")
	if err != nil {
		t.Fatal(err)
	}

	err = env.svc.Directory.DeleteUser(ctx, env.admin, env.admin.UserID)
	assertValidation(t, err)

	if err := env.svc.Directory.DeleteUser(ctx, env.admin, env.other.UserID); err != nil {
		t.Fatal(err)
	}
	_, err = env.svc.Auth.Refresh(ctx, pair.RefreshToken)
	assertErrorIs(t, err, models.ErrUnauthorized)
}
