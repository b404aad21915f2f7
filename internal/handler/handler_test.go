package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/service"
	"github.com/fleveque/menu-service/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMenus struct {
	result model.MenuResult
	got    []byte
}

func (f *fakeMenus) DetectMenu(_ context.Context, image []byte) model.MenuResult {
	f.got = image
	return f.result
}

type fakeDishes struct {
	result model.DishImageResult
	calls  []string
}

func (f *fakeDishes) FindDishImage(_ context.Context, dish string) model.DishImageResult {
	f.calls = append(f.calls, dish)
	return f.result
}

type fakeResolver struct {
	img *model.ResolvedImage
	err error
}

func (f *fakeResolver) Resolve(context.Context, string) (*model.ResolvedImage, error) {
	return f.img, f.err
}

func multipartBody(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "menu.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write(content)
	w.Close()
	return &buf, w.FormDataContentType()
}

func menuRouter(menus MenuDetector, dishes DishImageFinder, maxBytes int64) *gin.Engine {
	h := NewMenuHandler(menus, dishes, maxBytes, zap.NewNop())
	r := gin.New()
	r.POST("/upload_menu/", h.UploadMenu)
	r.POST("/get_dish_image/", h.GetDishImage)
	return r
}

func TestUploadMenu(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		content    []byte
		result     model.MenuResult
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			field:      "file",
			content:    []byte("jpeg"),
			result:     model.MenuSuccess([]string{"Pad Thai"}),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success","items":["Pad Thai"]}`,
		},
		{
			name:       "degraded",
			field:      "file",
			content:    []byte("jpeg"),
			result:     model.MenuOCROnly([]string{"MAINS"}, "LLM filtering skipped"),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success_ocr_only","items":["MAINS"],"message":"LLM filtering skipped"}`,
		},
		{
			name:       "component error",
			field:      "file",
			content:    []byte("jpeg"),
			result:     model.MenuError("OCR failed: boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"OCR failed: boom"}`,
		},
		{
			name:       "wrong field",
			field:      "image",
			content:    []byte("jpeg"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "too large",
			field:      "file",
			content:    bytes.Repeat([]byte("x"), 4096),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menus := &fakeMenus{result: tt.result}
			router := menuRouter(menus, &fakeDishes{}, 1024)

			body, contentType := multipartBody(t, tt.field, tt.content)
			req := httptest.NewRequest("POST", "/upload_menu/", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantBody != "" && strings.TrimSpace(w.Body.String()) != tt.wantBody {
				t.Errorf("expected body %s, got %s", tt.wantBody, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && string(menus.got) != string(tt.content) {
				t.Errorf("detector received %q", menus.got)
			}
		})
	}
}

func TestGetDishImage(t *testing.T) {
	url := "https://img.example/pad-thai.jpg"

	tests := []struct {
		name       string
		body       string
		result     model.DishImageResult
		wantStatus int
		wantBody   string
		wantCalled string // "" means the finder must not be called
	}{
		{
			name:       "found",
			body:       `{"dish":"  Pad Thai "}`,
			result:     model.DishImageFound(url),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success","url":"https://img.example/pad-thai.jpg"}`,
			wantCalled: "Pad Thai",
		},
		{
			name:       "no image",
			body:       `{"dish":"Mystery Soup"}`,
			result:     model.DishImageFound(""),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success","url":null}`,
			wantCalled: "Mystery Soup",
		},
		{
			name:       "component error",
			body:       `{"dish":"Pho"}`,
			result:     model.DishImageError("Network error: quota"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Network error: quota"}`,
			wantCalled: "Pho",
		},
		{name: "missing dish", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "blank dish", body: `{"dish":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "not a string", body: `{"dish":42}`, wantStatus: http.StatusBadRequest},
		{name: "not json", body: `dish=Pho`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dishes := &fakeDishes{result: tt.result}
			router := menuRouter(&fakeMenus{}, dishes, 1024)

			req := httptest.NewRequest("POST", "/get_dish_image/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantBody != "" && strings.TrimSpace(w.Body.String()) != tt.wantBody {
				t.Errorf("expected body %s, got %s", tt.wantBody, w.Body.String())
			}

			if tt.wantCalled == "" {
				if len(dishes.calls) != 0 {
					t.Errorf("finder should not be called, got %v", dishes.calls)
				}
			} else if len(dishes.calls) != 1 || dishes.calls[0] != tt.wantCalled {
				t.Errorf("expected finder called with %q, got %v", tt.wantCalled, dishes.calls)
			}
		})
	}
}

func TestProxyImage(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		resolver   *fakeResolver
		wantStatus int
		wantType   string
	}{
		{
			name:       "streams image",
			query:      "?image_url=https://example.com/dish.jpg",
			resolver:   &fakeResolver{img: &model.ResolvedImage{ContentType: "image/jpeg", Data: []byte("jpeg")}},
			wantStatus: http.StatusOK,
			wantType:   "image/jpeg",
		},
		{
			name:       "missing parameter",
			query:      "",
			resolver:   &fakeResolver{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "resolve error keeps its status",
			query: "?image_url=https://example.com/doc.pdf",
			resolver: &fakeResolver{err: &service.ResolveError{
				Kind: service.KindUnsupportedMedia, Status: http.StatusUnsupportedMediaType,
				Message: "unsupported content type: application/pdf",
			}},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "unexpected error",
			query:      "?image_url=https://example.com/x",
			resolver:   &fakeResolver{err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/proxy_image/", NewProxyHandler(tt.resolver, zap.NewNop()).ProxyImage)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/proxy_image/"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantType != "" && w.Header().Get("Content-Type") != tt.wantType {
				t.Errorf("expected content type %s, got %s", tt.wantType, w.Header().Get("Content-Type"))
			}
			if w.Code != http.StatusOK {
				var body map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
					t.Errorf("expected JSON error body, got %s", w.Body.String())
				}
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	router := gin.New()
	router.GET("/healthz", NewHealthHandler(HealthInfo{OCREngine: "google"}).Healthz)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Status     string     `json:"status"`
		Components HealthInfo `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "ok" || body.Components.OCREngine != "google" || body.Components.LLMProviders == nil {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestAdminStats(t *testing.T) {
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("creating database: %v", err)
	}
	defer db.Close()

	scans := storage.NewMenuScanRepository(db)
	lookups := storage.NewDishLookupRepository(db)
	calls := storage.NewLLMCallRepository(db)

	ctx := context.Background()
	scans.Create(ctx, &model.MenuScan{Status: model.StatusSuccess, Engine: "google"})
	scans.Create(ctx, &model.MenuScan{Status: model.StatusError, Engine: "google"})
	lookups.Create(ctx, &model.DishLookup{Dish: "Pho", Status: model.StatusSuccess})
	calls.Create(ctx, &model.LLMCall{Purpose: model.PurposeQuery, Provider: "gemini", Model: "m", Blocked: true})

	router := gin.New()
	router.GET("/admin/stats", NewAdminHandler(scans, lookups, calls, zap.NewNop()).Stats)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	want := map[string]float64{
		"menu_scans":                 2,
		"menu_scans_failed":          1,
		"dish_lookups":               1,
		"dish_lookups_without_image": 1,
		"llm_query_calls":            1,
		"llm_blocked":                1,
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, body[k])
		}
	}
	if recent, ok := body["recent_lookups"].([]any); !ok || len(recent) != 1 {
		t.Errorf("expected one recent lookup, got %v", body["recent_lookups"])
	}
}

func TestAdminStats_StoreDisabled(t *testing.T) {
	router := gin.New()
	router.GET("/admin/stats", NewAdminHandler(nil, nil, nil, zap.NewNop()).Stats)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/stats", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
