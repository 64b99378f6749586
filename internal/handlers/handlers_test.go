package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/routes"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type server struct {
	router *gin.Engine
	svc    *services.Services
	cfg    *config.Config

	adminToken   string
	doctorToken  string
	patientToken string
	doctorID     string
}

func testConfig(env string) *config.Config {
	return &config.Config{
		Origin:                    "http://localhost:4200",
		Environment:               env,
		JWTSecret:                 "test-access",
		JWTRefreshSecret:          "test-refresh",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		VerificationTokenExpiry:   24,
		OTPExpiryMinutes:          10,
		OTPMaxAttempts:            5,
		AppointmentDefaultMinutes: 30,
		CompensationDayOffPercent: 100,
		CompensationCodeValidDays: 90,
		AppURL:                    "http://localhost:3001",
	}
}

func newServer(t *testing.T, env string) *server {
	t.Helper()
	cfg := testConfig(env)
	svc := services.New(store.NewMemoryStore(), cfg, nil, zerolog.Nop())
	s := &server{
		router: routes.NewRouter(svc, cfg, zerolog.Nop()),
		svc:    svc,
		cfg:    cfg,
	}
	s.adminToken = s.createUser(t, "admin@clinic.test", models.RoleAdmin)
	s.doctorToken = s.createUser(t, "doc@clinic.test", models.RoleDoctor)
	s.patientToken = s.createUser(t, "pat@clinic.test", models.RolePatient)

	doctors, _, err := svc.Directory.ListDoctors(context.Background(), store.DoctorFilter{}, store.Page{})
	if err != nil || len(doctors) != 1 {
		t.Fatalf("ListDoctors() = %v, %v", doctors, err)
	}
	s.doctorID = doctors[0].ID
	return s
}

func (s *server) createUser(t *testing.T, email string, role models.Role) string {
	t.Helper()
	u, err := s.svc.Directory.CreateUser(context.Background(), services.CreateUserInput{
		Email:           email,
		Password:        "password123",
		FirstName:       "Test",
		LastName:        string(role),
		Role:            role,
		ConsultationFee: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	access, _, err := utils.GenerateTokens(u, s.cfg)
	if err != nil {
		t.Fatal(err)
	}
	return access
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: response is not JSON: %s", method, path, w.Body.String())
		}
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func (s *server) book(t *testing.T, reason string) models.Appointment {
	t.Helper()
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	w, env := s.do(t, http.MethodPost, "/api/v1/appointments", s.patientToken, map[string]interface{}{
		"doctorId":  s.doctorID,
		"startTime": start,
		"reason":    reason,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("book status = %d, body %s", w.Code, w.Body.String())
	}
	var a models.Appointment
	decode(t, env.Data, &a)
	return a
}

func TestHealth(t *testing.T) {
	s := newServer(t, "test")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"UP"`)) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestCreateAppointmentWaitsForConfirmation(t *testing.T) {
	s := newServer(t, "test")
	a := s.book(t, "checkup")
	if a.Status != models.StatusWaitingForConfirmation {
		t.Errorf("status = %q, want %q", a.Status, models.StatusWaitingForConfirmation)
	}

	// The same slot is taken now.
	w, env := s.do(t, http.MethodPost, "/api/v1/appointments", s.patientToken, map[string]interface{}{
		"doctorId":  s.doctorID,
		"startTime": a.StartTime,
		"reason":    "again",
	})
	if w.Code != http.StatusConflict || env.Code != utils.CodeConflict {
		t.Errorf("double booking = %d %q", w.Code, env.Code)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	s := newServer(t, "test")
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing reason", map[string]interface{}{"doctorId": s.doctorID, "startTime": time.Now().Add(time.Hour)}},
		{"bad doctor id", map[string]interface{}{"doctorId": "nope", "startTime": time.Now().Add(time.Hour), "reason": "x"}},
		{"in the past", map[string]interface{}{"doctorId": s.doctorID, "startTime": time.Now().Add(-time.Hour), "reason": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/v1/appointments", s.patientToken, tt.body)
			if w.Code != http.StatusBadRequest || env.Code != utils.CodeValidationError {
				t.Errorf("got %d %q, want 400 %s", w.Code, env.Code, utils.CodeValidationError)
			}
		})
	}
}

func TestCancelAppointmentRequiresReason(t *testing.T) {
	s := newServer(t, "test")
	a := s.book(t, "checkup")
	path := "/api/v1/appointments/" + a.ID + "/cancel"

	w, env := s.do(t, http.MethodPost, path, s.patientToken, map[string]string{})
	if w.Code != http.StatusBadRequest || env.Code != utils.CodeValidationError {
		t.Fatalf("cancel without reason = %d %q", w.Code, env.Code)
	}

	w, env = s.do(t, http.MethodPost, path, s.patientToken, map[string]string{"reason": "travelling"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel = %d %s", w.Code, w.Body.String())
	}
	var got models.Appointment
	decode(t, env.Data, &got)
	if got.Status != models.StatusCancelled || got.CancelledAt == nil || got.CancelledBy == nil {
		t.Errorf("cancelled appointment = %+v", got)
	}

	w, _ = s.do(t, http.MethodPost, path, s.patientToken, map[string]string{"reason": "again"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("second cancel = %d, want 400", w.Code)
	}
}

func TestAppointmentStatusByDoctor(t *testing.T) {
	s := newServer(t, "test")
	a := s.book(t, "checkup")
	path := "/api/v1/appointments/" + a.ID + "/status"

	w, env := s.do(t, http.MethodPatch, path, s.patientToken, map[string]string{"status": "accepted"})
	if w.Code != http.StatusForbidden || env.Code != utils.CodeForbidden {
		t.Errorf("patient accept = %d %q", w.Code, env.Code)
	}
	w, env = s.do(t, http.MethodPatch, path, s.doctorToken, map[string]string{"status": "accepted"})
	if w.Code != http.StatusOK {
		t.Fatalf("doctor accept = %d %s", w.Code, w.Body.String())
	}
	var got models.Appointment
	decode(t, env.Data, &got)
	if got.Status != models.StatusAccepted {
		t.Errorf("status = %q", got.Status)
	}
	w, _ = s.do(t, http.MethodPatch, path, s.doctorToken, map[string]string{"status": "doctor_day_off"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsupported status = %d, want 400", w.Code)
	}
}

func TestAuthGuards(t *testing.T) {
	s := newServer(t, "test")
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/appointments", "", http.StatusUnauthorized, utils.CodeUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/appointments", "not-a-jwt", http.StatusUnauthorized, utils.CodeUnauthorized},
		{"patient lists users", http.MethodGet, "/api/v1/users", s.patientToken, http.StatusForbidden, utils.CodeForbidden},
		{"doctor creates medicine", http.MethodPost, "/api/v1/medicines", s.doctorToken, http.StatusForbidden, utils.CodeForbidden},
		{"patient issues code", http.MethodPost, "/api/v1/compensation-codes", s.patientToken, http.StatusForbidden, utils.CodeForbidden},
		{"admin lists users", http.MethodGet, "/api/v1/users", s.adminToken, http.StatusOK, ""},
		{"doctor lists own patients", http.MethodGet, "/api/v1/users/doctor-patients", s.doctorToken, http.StatusOK, ""},
		{"patient lists doctor patients", http.MethodGet, "/api/v1/users/doctor-patients", s.patientToken, http.StatusForbidden, utils.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, tt.path, tt.token, nil)
			if w.Code != tt.status || env.Code != tt.code {
				t.Errorf("got %d %q, want %d %q", w.Code, env.Code, tt.status, tt.code)
			}
		})
	}
}

func TestNotFoundEnvelopes(t *testing.T) {
	s := newServer(t, "test")

	w, env := s.do(t, http.MethodGet, "/api/v1/nowhere", s.adminToken, nil)
	if w.Code != http.StatusNotFound || env.Code != utils.CodeResourceNotFound || env.Status != http.StatusNotFound {
		t.Errorf("unknown route = %d %+v", w.Code, env)
	}
	w, env = s.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), s.adminToken, nil)
	if w.Code != http.StatusNotFound || env.Code != utils.CodeResourceNotFound {
		t.Errorf("unknown appointment = %d %q", w.Code, env.Code)
	}
	w, env = s.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", s.adminToken, nil)
	if w.Code != http.StatusBadRequest || env.Code != utils.CodeValidationError {
		t.Errorf("malformed id = %d %q", w.Code, env.Code)
	}
	w, env = s.do(t, http.MethodDelete, "/health", "", nil)
	if w.Code != http.StatusMethodNotAllowed || env.Code != utils.CodeMethodNotAllowed {
		t.Errorf("wrong method = %d %q", w.Code, env.Code)
	}
}

func TestLoginAndProfile(t *testing.T) {
	s := newServer(t, "test")

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "pat@clinic.test", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", w.Code)
	}

	w, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "pat@clinic.test", "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var login struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decode(t, env.Data, &login)
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("login tokens = %+v", login)
	}
	if bytes.Contains(env.Data, []byte("password")) {
		t.Errorf("login leaks the password hash: %s", env.Data)
	}

	w, env = s.do(t, http.MethodGet, "/api/v1/auth/profile", login.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile = %d %s", w.Code, w.Body.String())
	}
	var profile struct {
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	decode(t, env.Data, &profile)
	if profile.Email != "pat@clinic.test" || profile.Role != models.RolePatient {
		t.Errorf("profile = %+v", profile)
	}
}

func TestBookingInputIsSanitized(t *testing.T) {
	s := newServer(t, "test")
	a := s.book(t, "<b>checkup</b>")
	if a.Reason != "checkup" {
		t.Errorf("reason = %q, want markup stripped", a.Reason)
	}
}

func TestDebugRoutesOnlyInDevelopment(t *testing.T) {
	prod := newServer(t, "production")
	if w, _ := prod.do(t, http.MethodGet, "/api/v1/debug/routes", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("production debug routes = %d, want 404", w.Code)
	}

	dev := newServer(t, "development")
	w, env := dev.do(t, http.MethodGet, "/api/v1/debug/routes", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("development debug routes = %d", w.Code)
	}
	var table []struct {
		Method string `json:"method"`
		Path   string `json:"path"`
	}
	decode(t, env.Data, &table)
	found := false
	for _, r := range table {
		if r.Method == http.MethodPost && r.Path == "/api/v1/appointments/:id/cancel" {
			found = true
		}
	}
	if !found {
		t.Errorf("route table misses the cancel route: %+v", table)
	}
}
