package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"release-hub/internal/server/api"
	"release-hub/internal/server/catalog"
	"release-hub/internal/server/db"
	"release-hub/internal/server/manifest"
	"release-hub/internal/server/passcode"
	"release-hub/pkg/config"
	"release-hub/pkg/storage"

	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret"

// countingBackend 包装真实后端并统计调用次数
// 用于断言"鉴权失败绝不触碰存储"这类性质
type countingBackend struct {
	inner storage.Backend
	calls int64
}

func (c *countingBackend) Put(ctx context.Context, path string, r io.Reader, size int64, meta *storage.Metadata) error {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Put(ctx, path, r, size, meta)
}

func (c *countingBackend) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Get(ctx, path)
}

func (c *countingBackend) Exists(ctx context.Context, path string) (bool, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Exists(ctx, path)
}

func (c *countingBackend) GetMetadata(ctx context.Context, path string) (*storage.Metadata, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.GetMetadata(ctx, path)
}

func (c *countingBackend) ListChildren(ctx context.Context, prefix string) ([]string, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.ListChildren(ctx, prefix)
}

func (c *countingBackend) Delete(ctx context.Context, path string) error {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Delete(ctx, path)
}

func (c *countingBackend) count() int64 { return atomic.LoadInt64(&c.calls) }

// newTestServer 搭一套和线上结构一致的完整服务
func newTestServer(t *testing.T) (*httptest.Server, *countingBackend) {
	t.Helper()

	local, err := storage.NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("init backend: %v", err)
	}
	store := &countingBackend{inner: local}

	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL:        "http://release.test",
			MaxUploadBytes: 16 << 20,
		},
		Storage: config.StorageConfig{Type: "local"},
		Release: config.ReleaseConfig{
			Channel:         "alpha",
			ProductName:     "omnial",
			UpdateFormat:    "tauri",
			UpdateSuffix:    ".tar.gz",
			ListConcurrency: 4,
			PasscodeTTL:     time.Hour,
		},
		Auth: config.AuthConfig{SecretKey: testSecret},
	}

	database := db.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.Close() })

	cat := catalog.New(store, cfg.Release)
	builder := manifest.NewBuilder(cfg.Server.BaseURL, cfg.Release.ProductName)
	pass := passcode.NewManager(database, cfg.Release.PasscodeTTL)

	h := api.NewServerHandler(cat, builder, store, pass, cfg)
	ts := httptest.NewServer(api.NewRouter(h, cfg))
	t.Cleanup(ts.Close)
	return ts, store
}

func doRequest(t *testing.T, method, url string, body io.Reader, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, raw
}

// uploadArtifact 通过 HTTP 上传一个制品
func uploadArtifact(t *testing.T, ts *httptest.Server, urlPath string, filename string, content []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	assert.NoError(t, err)
	fw.Write(content)
	mw.Close()

	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = mw.FormDataContentType()
	return doRequest(t, http.MethodPost, ts.URL+urlPath, &buf, headers)
}

func TestStatusPageNeedsNoAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	// 不带任何凭证访问根路径
	resp, err := http.Get(ts.URL + "/")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "release-hub", body["service"])
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRejectsMissingOrWrongToken(t *testing.T) {
	ts, store := newTestServer(t)

	// 无 Token
	resp, err := http.Get(ts.URL + "/api/releases")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// 错 Token
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/releases", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// 鉴权失败时存储后端一次都没被触碰
	assert.Equal(t, int64(0), store.count())
}

func TestUploadDownloadRoundtrip(t *testing.T) {
	ts, _ := newTestServer(t)
	content := []byte("tauri update archive bytes")
	notes := "发布说明 v1.2.0"

	resp, raw := uploadArtifact(t, ts,
		"/api/upload/darwin/aarch64/tauri/1.2.0", "app.tar.gz", content,
		map[string]string{
			"x-signature": "minisign-sig",
			"x-pub-date":  "2024-06-01T08:30:00Z",
			"x-notes":     base64.StdEncoding.EncodeToString([]byte(notes)),
		})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var upBody struct {
		Success  bool   `json:"success"`
		FilePath string `json:"filePath"`
	}
	assert.NoError(t, json.Unmarshal(raw, &upBody))
	assert.True(t, upBody.Success)
	assert.Equal(t, "alpha/darwin/aarch64/tauri/1.2.0/app.tar.gz", upBody.FilePath)

	// 按返回的存储路径原样下载，字节一致
	resp, raw = doRequest(t, http.MethodGet, ts.URL+"/api/download/"+upBody.FilePath, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, raw)
	assert.Equal(t, "application/gzip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="app.tar.gz"`)

	// 上传时的元数据出现在更新 Manifest 里
	resp, raw = doRequest(t, http.MethodGet, ts.URL+"/api/version/darwin/aarch64/1.0.0", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var u manifest.Update
	assert.NoError(t, json.Unmarshal(raw, &u))
	assert.Equal(t, "1.2.0", u.Version)
	assert.Equal(t, notes, u.Notes)
	assert.Equal(t, "2024-06-01T08:30:00Z", u.PubDate)
	entry := u.Platforms["darwin-aarch64"]
	assert.Equal(t, "minisign-sig", entry.Signature)
	assert.Equal(t, "http://release.test/api/download/alpha/darwin/aarch64/tauri/1.2.0/app.tar.gz", entry.URL)
}

func TestUploadPlainShape(t *testing.T) {
	ts, _ := newTestServer(t)

	// 简化形态：3 段路径，signature/notes 走表单字段
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("signature", "form-sig")
	mw.WriteField("notes", "plain notes")
	fw, _ := mw.CreateFormFile("file", "omnial.1.0.0.aarch64.dmg")
	fw.Write([]byte("dmg bytes"))
	mw.Close()

	resp, raw := doRequest(t, http.MethodPost, ts.URL+"/api/upload/darwin/aarch64/1.0.0", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var upBody struct {
		FilePath string `json:"filePath"`
	}
	assert.NoError(t, json.Unmarshal(raw, &upBody))
	assert.Equal(t, "darwin/aarch64/1.0.0/omnial.1.0.0.aarch64.dmg", upBody.FilePath)

	resp, raw = doRequest(t, http.MethodGet, ts.URL+"/api/download/"+upBody.FilePath, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("dmg bytes"), raw)
	assert.Equal(t, "application/x-apple-diskimage", resp.Header.Get("Content-Type"))
}

func TestUploadRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t)

	// 版本号不合法
	resp, _ := uploadArtifact(t, ts, "/api/upload/darwin/aarch64/tauri/not-semver", "app.tar.gz", []byte("x"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 路径深度不对
	resp, _ = uploadArtifact(t, ts, "/api/upload/darwin/1.0.0", "app.tar.gz", []byte("x"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// x-pub-date 不是 RFC3339
	resp, _ = uploadArtifact(t, ts, "/api/upload/darwin/aarch64/tauri/1.0.0", "app.tar.gz", []byte("x"),
		map[string]string{"x-pub-date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 缺 file 字段
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("notes", "no file here")
	mw.Close()
	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/upload/darwin/aarch64/tauri/1.0.0", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadMissingArtifact(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doRequest(t, http.MethodGet,
		ts.URL+"/api/download/alpha/darwin/aarch64/tauri/9.9.9/app.tar.gz", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 深度既不是 4 也不是 6
	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/download/darwin/app.tar.gz", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckVersionNoUpdate(t *testing.T) {
	ts, _ := newTestServer(t)

	// 空目录：无更新也返回结构完整的 Manifest
	resp, raw := doRequest(t, http.MethodGet, ts.URL+"/api/version/darwin/aarch64/1.0.0", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var u manifest.Update
	assert.NoError(t, json.Unmarshal(raw, &u))
	assert.Equal(t, "1.0.0", u.Version)
	assert.Equal(t, "No updates available", u.Notes)
	assert.Equal(t, manifest.DefaultSignature, u.Platforms["darwin-aarch64"].Signature)

	// 客户端版本号不合法
	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/version/darwin/aarch64/garbage", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecommendEndpointNeedsNoAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	uploadArtifact(t, ts, "/api/upload/darwin/aarch64/tauri/1.2.0", "app.tar.gz", []byte("x"),
		map[string]string{
			"x-signature": "rec-sig",
			"x-pub-date":  "2024-06-01T08:30:00Z",
		})

	// 推荐接口面向公开下载页，不带共享密钥
	resp, err := http.Get(ts.URL + "/api/recommend/darwin/aarch64/1.0.0")
	assert.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rec manifest.Recommendation
	assert.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "1.2.0", rec.Version)
	assert.Equal(t, "rec-sig", rec.Signature)
	assert.Equal(t, "2024-06-01T08:30:00Z", rec.PubDate)
	assert.Equal(t, "http://release.test/api/download/alpha/darwin/aarch64/tauri/1.2.0/app.tar.gz", rec.URL)
	assert.Equal(t, "1.0.0", rec.CurrentVersion)
	assert.Equal(t, "darwin", rec.Target)

	// 没有更新时回显客户端版本
	resp, err = http.Get(ts.URL + "/api/recommend/darwin/aarch64/9.9.9")
	assert.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "9.9.9", rec.Version)
	assert.Equal(t, "No updates available", rec.Notes)

	// 版本号不合法
	resp, err = http.Get(ts.URL + "/api/recommend/darwin/aarch64/garbage")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListReleasesEmptyAndPopulated(t *testing.T) {
	ts, _ := newTestServer(t)

	// 空目录返回空数组而不是 null
	resp, raw := doRequest(t, http.MethodGet, ts.URL+"/api/releases", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"releases":[]`)

	uploadArtifact(t, ts, "/api/upload/darwin/aarch64/tauri/1.0.0", "app.tar.gz", []byte("x"),
		map[string]string{"x-pub-date": "2024-01-01T00:00:00Z"})
	uploadArtifact(t, ts, "/api/upload/windows/x86_64/nsis/1.1.0", "setup.zip", []byte("y"),
		map[string]string{"x-pub-date": "2024-02-01T00:00:00Z"})

	resp, raw = doRequest(t, http.MethodGet, ts.URL+"/api/releases", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Releases []catalog.ReleaseRow `json:"releases"`
	}
	assert.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Releases, 2)
	// 发布时间倒序
	assert.Equal(t, "1.1.0", body.Releases[0].Version)
	assert.Equal(t, "windows", body.Releases[0].Target)
	assert.Equal(t, "1.0.0", body.Releases[1].Version)
}

func TestPasscodeFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	// 先布置数据：更新包决定"最新版本"，.dmg 放在简化形态路径下
	uploadArtifact(t, ts, "/api/upload/darwin/aarch64/tauri/1.2.0", "app.tar.gz", []byte("update"), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "omnial.1.2.0.aarch64.dmg")
	fw.Write([]byte("dmg payload"))
	mw.Close()
	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/upload/darwin/aarch64/1.2.0", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 签发口令
	resp, raw := doRequest(t, http.MethodPost, ts.URL+"/api/download-code",
		bytes.NewReader([]byte(`{"email":"tester@example.com"}`)),
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var codeBody struct {
		Success  bool   `json:"success"`
		Passcode string `json:"passcode"`
	}
	assert.NoError(t, json.Unmarshal(raw, &codeBody))
	assert.True(t, codeBody.Success)
	assert.Len(t, codeBody.Passcode, 8)

	// 口令通道不需要共享密钥，arch 缺省 aarch64
	resp, err := http.Get(fmt.Sprintf("%s/api/dmg-download/%s/darwin", ts.URL, codeBody.Passcode))
	assert.NoError(t, err)
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("dmg payload"), payload)
	assert.Equal(t, "application/x-apple-diskimage", resp.Header.Get("Content-Type"))

	// 缺少邮箱
	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/download-code",
		bytes.NewReader([]byte(`{"email":"not-an-email"}`)),
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDmgDownloadInvalidCodeNeverTouchesStorage(t *testing.T) {
	ts, store := newTestServer(t)

	before := store.count()
	resp, err := http.Get(ts.URL + "/api/dmg-download/WRONGCOD/darwin")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// 口令验不过，存储后端零调用
	assert.Equal(t, before, store.count())
}

func TestConcurrentUploadsToDistinctCoordinates(t *testing.T) {
	ts, _ := newTestServer(t)

	coords := []string{
		"/api/upload/darwin/aarch64/tauri/1.0.0",
		"/api/upload/darwin/x86_64/tauri/1.0.0",
		"/api/upload/windows/x86_64/nsis/1.0.0",
		"/api/upload/linux/x86_64/appimage/1.0.0",
	}

	var wg sync.WaitGroup
	for i, c := range coords {
		wg.Add(1)
		go func(i int, urlPath string) {
			defer wg.Done()
			resp, _ := uploadArtifact(t, ts, urlPath, "app.tar.gz",
				[]byte(fmt.Sprintf("payload-%d", i)), nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}(i, c)
	}
	wg.Wait()

	resp, raw := doRequest(t, http.MethodGet, ts.URL+"/api/releases", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Releases []catalog.ReleaseRow `json:"releases"`
	}
	assert.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Releases, 4)
}
