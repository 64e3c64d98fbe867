package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DanielRv555/op-calorie-vision/internal/auth"
	"github.com/DanielRv555/op-calorie-vision/internal/config"
	"github.com/DanielRv555/op-calorie-vision/internal/directory"
	"github.com/DanielRv555/op-calorie-vision/internal/goals"
	"github.com/DanielRv555/op-calorie-vision/internal/history"
	"github.com/DanielRv555/op-calorie-vision/internal/kvstore"
	"github.com/DanielRv555/op-calorie-vision/internal/nutrition"
	"github.com/DanielRv555/op-calorie-vision/internal/recipes"
)

// Mock session authority for testing
type fakeAuth struct {
	loginFunc func(ctx context.Context, username, code string) (*auth.Session, error)
	sessions  map[string]*auth.Session
}

func (f *fakeAuth) Login(ctx context.Context, username, code string) (*auth.Session, error) {
	if f.loginFunc != nil {
		return f.loginFunc(ctx, username, code)
	}
	return nil, auth.ErrInvalidCredentials
}

func (f *fakeAuth) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	if sess, ok := f.sessions[token]; ok {
		return sess, nil
	}
	return nil, nil
}

func (f *fakeAuth) Logout(ctx context.Context, token string) {
	delete(f.sessions, token)
}

// Mock inference client for testing
type fakeAnalyzer struct {
	foods []string
	info  nutrition.Nutrition
	err   error
}

func (f *fakeAnalyzer) IdentifyFoods(ctx context.Context, imageData []byte, mimeType, description string) ([]string, error) {
	return f.foods, f.err
}

func (f *fakeAnalyzer) AnalyzeNutrition(ctx context.Context, imageData []byte, mimeType string, foods []string, description string) (nutrition.Nutrition, error) {
	return f.info, f.err
}

type fakeSheets struct {
	table [][]string
	err   error
}

func (f *fakeSheets) Fetch(ctx context.Context, rawURL string) ([][]string, error) {
	return f.table, f.err
}

func testSession() *auth.Session {
	return &auth.Session{
		Token: "test-token",
		User: directory.Record{
			Username:      "ana@x.com",
			VendorName:    "Laura",
			ExpiryDate:    "31/12/2099",
			DaysRemaining: "999",
		},
		CreatedAt: time.Now(),
	}
}

func newTestServer(t *testing.T, authSvc auth.Service, analyzer Analyzer) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kvstore.NewMemoryStore()
	logger := slog.Default()
	cfg := &config.Config{
		CORSOrigins:         []string{"http://localhost:5173"},
		SessionCookieMaxAge: 3600,
		MaxUploadBytes:      10 << 20,
		ImageBound:          800,
	}

	s := &Server{
		cfg:      cfg,
		auth:     authSvc,
		recipes:  recipes.NewService(&fakeSheets{table: [][]string{{"nombre"}}}, "https://sheets.example/recipes", logger),
		goals:    goals.NewService(store, logger),
		history:  history.NewService(store, logger),
		analyzer: analyzer,
		store:    store,
		logger:   logger,
	}
	return s, s.RegisterRoutes()
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: SessionCookie, Value: "test-token"}
}

func authedFake() *fakeAuth {
	return &fakeAuth{sessions: map[string]*auth.Session{"test-token": testSession()}}
}

func TestRequireSession_NoCookie(t *testing.T) {
	_, router := newTestServer(t, &fakeAuth{}, &fakeAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireSession_ExpiredSession(t *testing.T) {
	// GetSession returns nil for unknown tokens, which is exactly what an
	// expired-and-deleted session looks like.
	_, router := newTestServer(t, &fakeAuth{sessions: map[string]*auth.Session{}}, &fakeAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestLogin_Success(t *testing.T) {
	fa := &fakeAuth{
		loginFunc: func(ctx context.Context, username, code string) (*auth.Session, error) {
			return testSession(), nil
		},
	}
	_, router := newTestServer(t, fa, &fakeAnalyzer{})

	body := `{"username": "ana@x.com", "code": "1234"}`
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		User directory.Record `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User.Username != "ana@x.com" {
		t.Errorf("username = %q, want %q", resp.User.Username, "ana@x.com")
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.Value == "test-token" {
			found = true
			if !c.HttpOnly {
				t.Error("session cookie is not httpOnly")
			}
		}
	}
	if !found {
		t.Error("session cookie was not set")
	}
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"expired subscription", auth.ErrSubscriptionExpired, http.StatusForbidden},
		{"directory unreachable", errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAuth{
				loginFunc: func(ctx context.Context, username, code string) (*auth.Session, error) {
					return nil, tt.err
				},
			}
			_, router := newTestServer(t, fa, &fakeAnalyzer{})

			body := `{"username": "ana@x.com", "code": "1234"}`
			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	_, router := newTestServer(t, &fakeAuth{}, &fakeAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username": "ana@x.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSession_AbsentIsNull(t *testing.T) {
	_, router := newTestServer(t, &fakeAuth{}, &fakeAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["user"] != nil {
		t.Errorf("user = %v, want null", resp["user"])
	}
}

func TestLogout_Idempotent(t *testing.T) {
	_, router := newTestServer(t, authedFake(), &fakeAnalyzer{})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
		req.AddCookie(sessionCookie())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("logout #%d status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	// Without any cookie at all it still succeeds.
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("cookieless logout status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestGoals_SaveThenGet(t *testing.T) {
	_, router := newTestServer(t, authedFake(), &fakeAnalyzer{})

	body := `{"calories": 2200, "protein": 150, "carbs": 220, "fat": 70}`
	req := httptest.NewRequest(http.MethodPut, "/api/goals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.AddCookie(sessionCookie())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Goals *goals.Goals `json:"goals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Goals == nil || resp.Goals.Calories != 2200 {
		t.Errorf("goals = %+v, want calories 2200", resp.Goals)
	}
}

func TestHistory_AddListRemove(t *testing.T) {
	_, router := newTestServer(t, authedFake(), &fakeAnalyzer{})

	body := `{"identified_foods": ["arroz", "pollo"], "nutrition": {"calories": 650, "protein": 38, "carbs": 70, "fat": 22}, "meal_description": "almuerzo"}`
	req := httptest.NewRequest(http.MethodPost, "/api/history", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		Entry history.Entry `json:"entry"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Entry.ID == "" {
		t.Fatal("created entry has no ID")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(sessionCookie())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var listed struct {
		History []history.Entry `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(listed.History) != 1 || listed.History[0].ID != created.Entry.ID {
		t.Fatalf("history = %+v, want the created entry", listed.History)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/history/"+created.Entry.ID, nil)
	req.AddCookie(sessionCookie())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/history", nil)
	req.AddCookie(sessionCookie())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
}

// multipartImage builds a multipart body with an "image" PNG part and the
// given extra fields.
func multipartImage(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
		}
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "meal.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(encoded.Bytes()); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestIdentify(t *testing.T) {
	analyzer := &fakeAnalyzer{foods: []string{"arroz", "pollo"}}
	_, router := newTestServer(t, authedFake(), analyzer)

	body, contentType := multipartImage(t, map[string]string{"description": "almuerzo"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/identify", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Foods []string `json:"foods"`
		Image struct {
			DataURL string `json:"data_url"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
		} `json:"image"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Foods) != 2 {
		t.Errorf("foods = %v, want 2 items", resp.Foods)
	}
	if resp.Image.Width != 20 || resp.Image.Height != 10 {
		t.Errorf("image = %dx%d, want 20x10", resp.Image.Width, resp.Image.Height)
	}
	if !strings.HasPrefix(resp.Image.DataURL, "data:image/jpeg;base64,") {
		t.Errorf("data_url prefix wrong: %.40q", resp.Image.DataURL)
	}
}

func TestIdentify_MissingImage(t *testing.T) {
	_, router := newTestServer(t, authedFake(), &fakeAnalyzer{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("description", "almuerzo")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/identify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestIdentify_InferenceFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("model overloaded")}
	_, router := newTestServer(t, authedFake(), analyzer)

	body, contentType := multipartImage(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/identify", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestAnalyzeNutrition(t *testing.T) {
	analyzer := &fakeAnalyzer{info: nutrition.Nutrition{Calories: 650, Protein: 38, Carbs: 70, Fat: 22}}
	_, router := newTestServer(t, authedFake(), analyzer)

	body, contentType := multipartImage(t, map[string]string{"foods": `["arroz", "pollo"]`})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/nutrition", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Nutrition nutrition.Nutrition `json:"nutrition"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Nutrition.Calories != 650 {
		t.Errorf("calories = %v, want 650", resp.Nutrition.Calories)
	}
}

func TestAnalyzeNutrition_MissingFoods(t *testing.T) {
	_, router := newTestServer(t, authedFake(), &fakeAnalyzer{})

	body, contentType := multipartImage(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/nutrition", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(sessionCookie())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t, &fakeAuth{}, &fakeAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
