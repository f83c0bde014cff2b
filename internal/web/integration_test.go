package web_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/eatinformed/internal/analysis"
	"github.com/vbonduro/eatinformed/internal/auth"
	"github.com/vbonduro/eatinformed/internal/db"
	"github.com/vbonduro/eatinformed/internal/gateway"
	"github.com/vbonduro/eatinformed/internal/service"
	"github.com/vbonduro/eatinformed/internal/store"
	"github.com/vbonduro/eatinformed/internal/web"
	"github.com/vbonduro/eatinformed/internal/web/templates"
)

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
// http.DetectContentType identifies JPEG from the leading 0xFF 0xD8 bytes.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

const extractReply = `{"ingredients": ["Water", "Sugar", "Salt"], "status": "success"}`

const assessReply = `{
	"rating": 3,
	"pros": ["Short ingredient list"],
	"cons": ["Added sugar"],
	"warnings": [],
	"dietaryInfo": {"allergens": [], "suitability": [], "isVegetarian": true, "isVegan": true, "isGlutenFree": true, "summary": "Vegan."}
}`

// recordingModel answers the extraction call and the assessment call with
// canned JSON and keeps the image bytes it was sent.
type recordingModel struct {
	mu        sync.Mutex
	lastImage []byte
}

func (m *recordingModel) Name() string { return "recording" }

func (m *recordingModel) Generate(_ context.Context, req gateway.Request) (string, error) {
	if req.Image != nil {
		m.mu.Lock()
		m.lastImage = req.Image.Data
		m.mu.Unlock()
		return extractReply, nil
	}
	return assessReply, nil
}

func (m *recordingModel) LastImage() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastImage
}

// newTestServer sets up a real web.Server backed by in-memory SQLite and the
// given gateway.
func newTestServer(t *testing.T, gw gateway.Gateway, opts web.Options) *httptest.Server {
	t.Helper()
	database, err := db.OpenForTesting()
	if err != nil {
		t.Fatalf("OpenForTesting: %v", err)
	}

	logger := slog.Default()
	scans := service.NewScanService(gw, analysis.NewExtractor(gw, logger), analysis.NewAssessor(gw, logger), logger)
	accounts := service.NewAccountService(
		store.NewUserStore(database),
		auth.NewTokenIssuer([]byte("integration-secret"), time.Hour),
		logger,
	)

	srv := httptest.NewServer(web.NewServer(scans, accounts, templates.FS, opts, logger))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})
	return srv
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// signUp creates an account and returns its bearer token.
func signUp(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/auth/signup", map[string]string{"email": email, "password": "secret1"})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("signup status %d: %s", resp.StatusCode, body)
	}
	var got struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	if got.Token == "" {
		t.Fatal("signup returned an empty token")
	}
	return got.Token
}

// buildMultipartBody creates a multipart/form-data body with an "image" field.
func buildMultipartBody(t *testing.T, imageData []byte) (body *bytes.Buffer, contentType string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("image", "label.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(imageData); err != nil {
		t.Fatalf("write image data: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func scanRequest(t *testing.T, url, token string, imageData []byte) *http.Request {
	t.Helper()
	body, contentType := buildMultipartBody(t, imageData)
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeOutcome(t *testing.T, r io.Reader) service.Outcome {
	t.Helper()
	var outcome service.Outcome
	if err := json.NewDecoder(r).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	return outcome
}

func TestIntegration_HealthAndCheckPage(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Unavailable("GOOGLE_API_KEY is not configured"), web.Options{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["ai"] != "offline" {
		t.Errorf("unexpected health %v", health)
	}

	page, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer func() { _ = page.Body.Close() }()
	body, _ := io.ReadAll(page.Body)
	if page.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after redirect, got %d: %s", page.StatusCode, body)
	}
	if !strings.Contains(string(body), "AI analysis is currently offline") {
		t.Errorf("check page does not show the offline notice:\n%s", body)
	}
}

func TestIntegration_Accounts(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	dup := postJSON(t, srv.URL+"/api/auth/signup", map[string]string{"email": "ANN@example.com", "password": "secret1"})
	if dup.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup: expected 409, got %d", dup.StatusCode)
	}

	long := postJSON(t, srv.URL+"/api/auth/signup", map[string]string{"email": "bob@example.com", "password": strings.Repeat("p", 73)})
	if long.StatusCode != http.StatusBadRequest {
		t.Errorf("overlong password signup: expected 400, got %d", long.StatusCode)
	}

	bad := postJSON(t, srv.URL+"/api/auth/login", map[string]string{"email": "ann@example.com", "password": "wrong-password"})
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login: expected 401, got %d", bad.StatusCode)
	}
	var errBody map[string]string
	_ = json.NewDecoder(bad.Body).Decode(&errBody)
	if errBody["error"] != "Invalid email or password." {
		t.Errorf("bad login error = %q", errBody["error"])
	}

	good := postJSON(t, srv.URL+"/api/auth/login", map[string]string{"email": "ann@example.com", "password": "secret1"})
	if good.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", good.StatusCode)
	}
	var sawCookie bool
	for _, c := range good.Cookies() {
		if c.Name == "session" && c.Value != "" && c.HttpOnly {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Error("login did not set an HttpOnly session cookie")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", resp.StatusCode)
	}
	var who struct {
		UserID int64  `json:"userId"`
		Email  string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&who); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if who.Email != "ann@example.com" || who.UserID == 0 {
		t.Errorf("unexpected verify body %+v", who)
	}
}

func TestIntegration_ScanRequiresSession(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{})

	resp := do(t, scanRequest(t, srv.URL+"/api/scan", "", minimalJPEG))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}

	resp = do(t, scanRequest(t, srv.URL+"/api/scan", "not-a-token", minimalJPEG))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for a bad token, got %d", resp.StatusCode)
	}
}

func TestIntegration_Scan(t *testing.T) {
	skipShort(t)
	model := &recordingModel{}
	srv := newTestServer(t, gateway.Available(model), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	resp := do(t, scanRequest(t, srv.URL+"/api/scan", token, minimalJPEG))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	outcome := decodeOutcome(t, resp.Body)
	if outcome.State != service.StateDone {
		t.Errorf("state = %q, want done", outcome.State)
	}
	if outcome.Assessment.Rating != 3 {
		t.Errorf("rating = %v, want 3", outcome.Assessment.Rating)
	}
	if outcome.Extraction == nil || len(outcome.Extraction.Ingredients) != 3 {
		t.Errorf("unexpected extraction %+v", outcome.Extraction)
	}
	if !bytes.Equal(model.LastImage(), minimalJPEG) {
		t.Error("model did not receive the uploaded image bytes")
	}
}

func TestIntegration_ScanDataURI(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	body, _ := json.Marshal(map[string]string{
		"image": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(minimalJPEG),
	})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/scan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp := do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decodeOutcome(t, resp.Body).State; got != service.StateDone {
		t.Errorf("state = %q, want done", got)
	}
}

func TestIntegration_ScanRejectsBadImages(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{MaxImageBytes: 1024})
	token := signUp(t, srv, "ann@example.com")

	tests := []struct {
		name string
		data []byte
		want int
	}{
		{name: "not an image", data: []byte("%PDF-1.4 not a label"), want: http.StatusUnsupportedMediaType},
		{name: "too large", data: append(append([]byte{}, minimalJPEG...), make([]byte, 2048)...), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, scanRequest(t, srv.URL+"/api/scan", token, tt.data))
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestIntegration_ScanOffline(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Unavailable("GOOGLE_API_KEY is not configured"), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	resp := do(t, scanRequest(t, srv.URL+"/api/scan", token, minimalJPEG))
	outcome := decodeOutcome(t, resp.Body)
	if outcome.State != service.StateOffline {
		t.Errorf("state = %q, want offline", outcome.State)
	}
	if outcome.Extraction != nil {
		t.Error("offline scan should not carry an extraction")
	}
	if len(outcome.Assessment.Warnings) != 1 || !strings.Contains(outcome.Assessment.Warnings[0], "GOOGLE_API_KEY") {
		t.Errorf("unexpected warnings %v", outcome.Assessment.Warnings)
	}
}

func TestIntegration_ScanHTMXPartial(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	req := scanRequest(t, srv.URL+"/api/scan", token, minimalJPEG)
	req.Header.Set("HX-Request", "true")
	resp := do(t, req)

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"★★★☆☆", "Short ingredient list", "Added sugar", "Water, Sugar, Salt"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("partial missing %q:\n%s", want, body)
		}
	}
}

func TestIntegration_ScanStream(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	resp := do(t, scanRequest(t, srv.URL+"/api/scan/stream", token, minimalJPEG))
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	var stages []string
	var last string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			stages = append(stages, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			last = data
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}

	want := []string{"extracting", "extracted", "assessing", "complete"}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	var ev service.ScanEvent
	if err := json.Unmarshal([]byte(last), &ev); err != nil {
		t.Fatalf("decode final event: %v", err)
	}
	if ev.Outcome == nil || ev.Outcome.State != service.StateDone {
		t.Errorf("unexpected final event %+v", ev)
	}
}

func TestIntegration_ScanWebSocket(t *testing.T) {
	skipShort(t)
	model := &recordingModel{}
	srv := newTestServer(t, gateway.Available(model), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/scan", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.BinaryMessage, minimalJPEG); err != nil {
		t.Fatalf("write image: %v", err)
	}

	var types []string
	var final service.ScanEvent
	for {
		var msg struct {
			Type string            `json:"type"`
			Data service.ScanEvent `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
		if msg.Type == "complete" {
			final = msg.Data
		}
	}

	want := []string{"extracting", "extracted", "assessing", "complete"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("messages = %v, want %v", types, want)
	}
	if final.Outcome == nil || final.Outcome.Assessment.Rating != 3 {
		t.Errorf("unexpected final event %+v", final)
	}
	if !bytes.Equal(model.LastImage(), minimalJPEG) {
		t.Error("model did not receive the websocket image bytes")
	}
}

func TestIntegration_ScanWebSocketRejectsText(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{})
	token := signUp(t, srv, "ann@example.com")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/scan", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" || msg.Message == "" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestIntegration_ScanRateLimit(t *testing.T) {
	skipShort(t)
	srv := newTestServer(t, gateway.Available(&recordingModel{}), web.Options{ScanRatePerMinute: 1, ScanBurst: 1})
	token := signUp(t, srv, "ann@example.com")

	first := do(t, scanRequest(t, srv.URL+"/api/scan", token, minimalJPEG))
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first scan: expected 200, got %d", first.StatusCode)
	}
	second := do(t, scanRequest(t, srv.URL+"/api/scan", token, minimalJPEG))
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second scan: expected 429, got %d", second.StatusCode)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
