package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/upload-relay/internal/api/handlers"
	"github.com/bigkaa/goartstore/upload-relay/internal/config"
	"github.com/bigkaa/goartstore/upload-relay/internal/service"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/fskv"
	"github.com/bigkaa/goartstore/upload-relay/internal/tgclient"
)

const botToken = "777:e2e-token"

// pngBytes — сигнатура PNG и немного данных.
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, make([]byte, 32)...)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            0,
		HTTPReadTimeout: 5 * time.Second,
		ShutdownTimeout: time.Second,
	}
}

// botAPIStub — Bot API: sendPhoto возвращает два варианта фото,
// getFile и выдача файла работают для XYZ.
func botAPIStub(t *testing.T, sendCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot" + botToken + "/sendPhoto":
			sendCalls.Add(1)
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: no multipart"}`))
				return
			}
			if r.FormValue("chat_id") != "-100500" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"photo":[` +
				`{"file_id":"small","file_size":100},{"file_id":"XYZ","file_size":5000}]}}`))
		case "/bot" + botToken + "/getFile":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"XYZ","file_path":"photos/file_0.png"}}`))
		case "/file/bot" + botToken + "/photos/file_0.png":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(pngBytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newRelayServer собирает сервер с реальными сервисами и fs KV.
func newRelayServer(t *testing.T, botURL string) *httptest.Server {
	t.Helper()
	logger := testLogger()

	store, err := fskv.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("fskv.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	client := tgclient.New(botURL, botToken, 10*time.Second, logger)
	driver := service.NewUploadDriver(client, func(_ context.Context, _ time.Duration) {}, logger)
	relay := service.NewRelayService(driver, store, service.RelayConfig{RecipientID: "-100500", StrictKV: true}, logger)
	download := service.NewDownloadService(client, service.NewCacheService(16, time.Minute), store, logger)

	health := handlers.NewHealthHandler(handlers.NewKVChecker(store), nil)
	api := handlers.NewAPIHandler(health, relay, download, handlers.Options{
		PublicBaseURL: "https://relay.example.com",
	}, logger)

	srv := httptest.NewServer(New(testConfig(), logger, api).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func uploadRequest(t *testing.T, url, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServer_UploadThenDownload(t *testing.T) {
	var sendCalls atomic.Int32
	bot := botAPIStub(t, &sendCalls)
	srv := newRelayServer(t, bot.URL)

	resp, err := http.DefaultClient.Do(uploadRequest(t, srv.URL+"/upload", "pic.PNG", "image/png", pngBytes))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("статус = %d, тело = %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("нет X-Request-ID в ответе")
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("декодирование: %v", err)
	}
	if out["url"] != "https://relay.example.com/file/XYZ.png" {
		t.Fatalf("url = %q", out["url"])
	}
	if sendCalls.Load() != 1 {
		t.Errorf("sendPhoto вызван %d раз, ожидался 1", sendCalls.Load())
	}

	fileResp, err := http.Get(srv.URL + "/file/XYZ.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer fileResp.Body.Close()

	if fileResp.StatusCode != http.StatusOK {
		t.Fatalf("статус выдачи = %d", fileResp.StatusCode)
	}
	if ct := fileResp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, ожидался image/png", ct)
	}
	if cd := fileResp.Header.Get("Content-Disposition"); !strings.Contains(cd, "pic.PNG") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body, _ := io.ReadAll(fileResp.Body)
	if !bytes.Equal(body, pngBytes) {
		t.Errorf("содержимое отличается: %d байт", len(body))
	}
}

func TestServer_APIUploadAliasAndMissingFile(t *testing.T) {
	var sendCalls atomic.Int32
	bot := botAPIStub(t, &sendCalls)
	srv := newRelayServer(t, bot.URL)

	resp, err := http.Post(srv.URL+"/api/upload", "text/plain", strings.NewReader("no form"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("статус = %d, ожидался 400", resp.StatusCode)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["error"] != service.MsgNoFile {
		t.Errorf("error = %q", out["error"])
	}
	if sendCalls.Load() != 0 {
		t.Errorf("Bot API вызван %d раз, ожидалось 0", sendCalls.Load())
	}
}

func TestServer_UnknownKeyIsNotFound(t *testing.T) {
	var sendCalls atomic.Int32
	bot := botAPIStub(t, &sendCalls)
	srv := newRelayServer(t, bot.URL)

	resp, err := http.Get(srv.URL + "/file/nope.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", resp.StatusCode)
	}
}

func TestServer_HealthRoutes(t *testing.T) {
	var sendCalls atomic.Int32
	bot := botAPIStub(t, &sendCalls)
	srv := newRelayServer(t, bot.URL)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: статус = %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/upload")
	if err != nil {
		t.Fatalf("GET /upload: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /upload: статус = %d, ожидался 405", resp.StatusCode)
	}
}
