package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	auth "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/auth"
	jwt "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/jwt"
	telemetry "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/telemetry"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/middleware"
	config "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Config"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
	api_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/api"
	auth_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/auth"
)

// fakeMeasurementRepo serves canned data and records writes.
type fakeMeasurementRepo struct {
	measurements []emtmodels.Measurement
	triple       *emtmodels.MinMaxMean
	saved        [][]emtmodels.Measurement
}

func (f *fakeMeasurementRepo) FindAll(_ context.Context, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return f.measurements, nil
}

func (f *fakeMeasurementRepo) FindAllBetween(_ context.Context, _, _ time.Time, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return f.measurements, nil
}

func (f *fakeMeasurementRepo) FindSince(_ context.Context, _ time.Time, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return f.measurements, nil
}

func (f *fakeMeasurementRepo) FindLast(_ context.Context, _ []emtmodels.Phase) (*emtmodels.Measurement, error) {
	if len(f.measurements) == 0 {
		return nil, emtmodels.ErrNoDataFound
	}
	return &f.measurements[len(f.measurements)-1], nil
}

func (f *fakeMeasurementRepo) FindLastN(_ context.Context, n int, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	if len(f.measurements) <= n {
		return f.measurements, nil
	}
	return f.measurements[len(f.measurements)-n:], nil
}

func (f *fakeMeasurementRepo) FindGroupedMinMaxMean(_ context.Context, _, _ time.Time, _ []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
	return f.triple, nil
}

func (f *fakeMeasurementRepo) Save(_ context.Context, m emtmodels.Measurement) error {
	f.saved = append(f.saved, []emtmodels.Measurement{m})
	return nil
}

func (f *fakeMeasurementRepo) SaveAll(_ context.Context, ms []emtmodels.Measurement) error {
	f.saved = append(f.saved, ms)
	return nil
}

// fakeUserRepo holds a single registered user.
type fakeUserRepo struct {
	user *auth_models.User
}

func (f *fakeUserRepo) Create(_ context.Context, user *auth_models.User) (*auth_models.User, error) {
	f.user = user
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*auth_models.User, error) {
	if f.user != nil && f.user.Username == username {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*auth_models.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetAll(_ context.Context) ([]*auth_models.User, error) {
	if f.user == nil {
		return nil, nil
	}
	return []*auth_models.User{f.user}, nil
}

func (f *fakeUserRepo) Update(_ context.Context, _ *auth_models.User) error { return nil }
func (f *fakeUserRepo) Delete(_ context.Context, _ string) error            { return nil }

func testLogger() *logger.Logger {
	return logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json"})
}

type electricFixture struct {
	router        *gin.Engine
	currentRepo   *fakeMeasurementRepo
	voltageRepo   *fakeMeasurementRepo
	frequencyRepo *fakeMeasurementRepo
	jwtService    *jwt.Service
}

func newElectricFixture(t *testing.T) *electricFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testLogger()
	jwtService := jwt.NewService(api_models.Config{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "test-issuer",
	}, log)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, log)

	currentRepo := &fakeMeasurementRepo{}
	voltageRepo := &fakeMeasurementRepo{}
	frequencyRepo := &fakeMeasurementRepo{}

	controller := NewElectricQuantityController(
		telemetry.NewService(emtmodels.QuantityCurrent, currentRepo, log),
		telemetry.NewService(emtmodels.QuantityVoltage, voltageRepo, log),
		telemetry.NewService(emtmodels.QuantityGridFrequency, frequencyRepo, log),
		log, authMiddleware,
	)

	router := gin.New()
	router.Use(authMiddleware.Identify())
	controller.RegisterRoutes(router)

	return &electricFixture{
		router:        router,
		currentRepo:   currentRepo,
		voltageRepo:   voltageRepo,
		frequencyRepo: frequencyRepo,
		jwtService:    jwtService,
	}
}

func (fx *electricFixture) bearer(t *testing.T) string {
	t.Helper()
	issued, err := fx.jwtService.GenerateToken("alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return "Bearer " + issued.Token
}

func TestAddBatch_IsPublicAndSkipsEmptySubLists(t *testing.T) {
	fx := newElectricFixture(t)

	body := `{"currents":[{"value":1.5,"timestamp":"2026-03-01T10:00:00Z","phase":"L1"}],"gridFrequencies":[],"voltages":null}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/electric-quantities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 without a token, got %d: %s", w.Code, w.Body.String())
	}

	if len(fx.currentRepo.saved) != 1 || len(fx.currentRepo.saved[0]) != 1 {
		t.Errorf("Expected one current batch of one measurement, got %v", fx.currentRepo.saved)
	}
	if len(fx.frequencyRepo.saved) != 0 {
		t.Errorf("Expected empty frequency sub-list to be skipped, got %v", fx.frequencyRepo.saved)
	}
	if len(fx.voltageRepo.saved) != 0 {
		t.Errorf("Expected null voltage sub-list to be skipped, got %v", fx.voltageRepo.saved)
	}
}

func TestElectricReads_RequireToken(t *testing.T) {
	fx := newElectricFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/electric", nil)
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", w.Code)
	}
}

func TestGetAll_UnrequestedQuantitiesComeBackEmpty(t *testing.T) {
	fx := newElectricFixture(t)
	fx.currentRepo.measurements = []emtmodels.Measurement{
		{Value: 2.5, Time: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Phase: emtmodels.PhaseL1},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/electric?quantities=current", nil)
	req.Header.Set("Authorization", fx.bearer(t))
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	if !strings.Contains(body, `"currents":[{`) {
		t.Errorf("Expected current measurements in response, got %s", body)
	}
	if !strings.Contains(body, `"voltages":[]`) || !strings.Contains(body, `"gridFrequencies":[]`) {
		t.Errorf("Expected unrequested quantities as empty lists, got %s", body)
	}
}

func TestGetAll_UnknownQuantityRejected(t *testing.T) {
	fx := newElectricFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/electric?quantities=temperature", nil)
	req.Header.Set("Authorization", fx.bearer(t))
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-electric quantity, got %d", w.Code)
	}
}

func TestGetGroupedBetween_AbsentTripleIsNotFound(t *testing.T) {
	fx := newElectricFixture(t)
	// repos answer with a nil triple, meaning the store rejected the aggregation

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/electric/grouped/between/2026-03-01T00:00:00Z/2026-03-02T00:00:00Z", nil)
	req.Header.Set("Authorization", fx.bearer(t))
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for absent triple, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetGroupedBetween_MalformedTimestampRejected(t *testing.T) {
	fx := newElectricFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/electric/grouped/between/yesterday/2026-03-02T00:00:00Z", nil)
	req.Header.Set("Authorization", fx.bearer(t))
	fx.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed timestamp, got %d", w.Code)
	}
}

func TestVerify_IssuesTokenInAuthorizationHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := testLogger()
	jwtService := jwt.NewService(api_models.Config{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "test-issuer",
	}, log)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, log)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	userRepo := &fakeUserRepo{user: auth_models.NewUser("alice", "Alice", "A", "alice@example.com", string(hash))}

	controller := NewUserController(auth.NewAuthService(userRepo, jwtService), log, authMiddleware)
	router := gin.New()
	router.Use(authMiddleware.Identify())
	controller.RegisterRoutes(router)

	// correct credentials: body true, token in the Authorization header
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/verify",
		strings.NewReader(`{"username":"alice","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "true" {
		t.Errorf("Expected body true, got %s", w.Body.String())
	}
	header := w.Header().Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		t.Fatalf("Expected bearer token in Authorization header, got %q", header)
	}
	if !jwtService.ValidateToken(header[len("Bearer "):]) {
		t.Error("Expected issued token to validate")
	}

	// wrong password: body false, no token
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/user/verify",
		strings.NewReader(`{"username":"alice","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for wrong password, got %d", w.Code)
	}
	if w.Body.String() != "false" {
		t.Errorf("Expected body false, got %s", w.Body.String())
	}
	if w.Header().Get("Authorization") != "" {
		t.Error("Expected no token for wrong password")
	}

	// unknown user: 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/user/verify",
		strings.NewReader(`{"username":"bob","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user, got %d", w.Code)
	}
}
