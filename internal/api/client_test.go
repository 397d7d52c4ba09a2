package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mrd/ca-drive/internal/config"
	"github.com/mrd/ca-drive/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.New()
	cfg.APIBaseURL = srv.URL + "/api"
	cfg.Token = "test-token"

	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, srv
}

// TestNewClientRejectsEmptyBaseURL verifies that NewClient fails with a clear error
// instead of creating a client that produces "unsupported protocol scheme" on every request.
func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	cfg := config.New()
	cfg.APIBaseURL = ""

	_, err := NewClient(cfg, nil)
	if err == nil {
		t.Fatal("NewClient() should return error for empty APIBaseURL")
	}
	if !strings.Contains(err.Error(), "API base URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'API base URL is empty'", err.Error())
	}
}

func TestGetAllData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/drive/c1/all-data" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		io.WriteString(w, `{
			"folders": [
				{"_id": "fy25", "name": "FY - 2025-26", "parentFolderId": null, "createdAt": "2025-04-01T00:00:00Z", "updatedAt": "2025-04-02T00:00:00Z"},
				{"_id": "apr", "name": "1-April", "parentFolderId": "fy25", "createdAt": "2025-04-01T00:00:00Z"}
			],
			"files": [
				{"_id": "f1", "fileName": "pan.pdf", "fileType": "application/pdf", "folderId": "apr", "fileSize": 2048, "fileUrl": "/uploads/pan.pdf", "createdAt": "2025-04-03T00:00:00Z"}
			]
		}`)
	})

	snap, err := client.GetAllData(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetAllData() error = %v", err)
	}
	if len(snap.Folders) != 2 || len(snap.Files) != 1 {
		t.Fatalf("unexpected snapshot sizes: %d folders, %d files", len(snap.Folders), len(snap.Files))
	}
	if snap.Folders[0].ParentFolderID != nil {
		t.Error("root folder should have nil parent")
	}
	if p := snap.Folders[1].ParentFolderID; p == nil || *p != "fy25" {
		t.Errorf("April parent = %v, want fy25", p)
	}
	if f := snap.Files[0]; f.FolderID == nil || *f.FolderID != "apr" || f.SizeKB() != 2 {
		t.Errorf("unexpected file %+v", f)
	}
}

func TestGetAllDataEmptyLists(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	snap, err := client.GetAllData(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetAllData() error = %v", err)
	}
	if snap.Folders == nil || snap.Files == nil {
		t.Error("empty response should decode to empty, non-nil slices")
	}
}

func TestGetAllDataMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"folder without id", `{"folders":[{"name":"x"}],"files":[]}`},
		{"file without name", `{"folders":[],"files":[{"_id":"f1"}]}`},
		{"empty parent id", `{"folders":[{"_id":"a","name":"A","parentFolderId":""}]}`},
		{"negative size", `{"files":[{"_id":"f1","fileName":"a","fileSize":-1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})
			_, err := client.GetAllData(context.Background(), "c1")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
		message  string
	}{
		{http.StatusUnauthorized, `{"message":"Token expired"}`, ErrUnauthorized, "Token expired"},
		{http.StatusForbidden, `{"error":"forbidden"}`, ErrUnauthorized, "forbidden"},
		{http.StatusNotFound, `Not Found`, ErrNotFound, "Not Found"},
		{http.StatusBadRequest, `{"message":"bad id"}`, nil, "bad id"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			err := client.DeleteFile(context.Background(), "f1")
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %T %v", err, err)
			}
			if se.StatusCode != tt.status || se.Message != tt.message {
				t.Errorf("got status %d message %q", se.StatusCode, se.Message)
			}
			if se.Method != http.MethodDelete || se.Path != "/drive/files/f1" {
				t.Errorf("got %s %s", se.Method, se.Path)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("expected errors.Is(%v)", tt.sentinel)
			}
		})
	}
}

func TestGetRetriesButMutationsDoNot(t *testing.T) {
	var gets, deletes atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if gets.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			io.WriteString(w, `{"data":[]}`)
		case http.MethodDelete:
			deletes.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	if _, err := client.ListActivity(context.Background()); err != nil {
		t.Fatalf("ListActivity() should succeed after a retry, got %v", err)
	}
	if got := gets.Load(); got != 2 {
		t.Errorf("expected 2 GET attempts, got %d", got)
	}

	if err := client.DeleteFolder(context.Background(), "x"); err == nil {
		t.Fatal("expected DeleteFolder error")
	}
	if got := deletes.Load(); got != 1 {
		t.Errorf("mutations must be sent once, got %d attempts", got)
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := config.New()
	cfg.APIBaseURL = srv.URL
	cfg.RequestTimeout = 50 * time.Millisecond
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err = client.DeleteFile(context.Background(), "f1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not applied, took %v", time.Since(start))
	}
}

func TestUploadFile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/drive/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		want := map[string]string{
			"clientId":   "c1",
			"folderId":   "apr",
			"uploadedBy": "CA",
			"category":   "GENERAL",
		}
		for k, v := range want {
			if got := r.FormValue(k); got != v {
				t.Errorf("field %s = %q, want %q", k, got, v)
			}
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "%PDF-1.4" || hdr.Filename != "gst.pdf" {
			t.Errorf("unexpected file part %q %q", hdr.Filename, data)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("file part content type = %q", ct)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"ok","file":{"_id":"new1","fileName":"gst.pdf","fileType":"application/pdf","folderId":"apr","fileSize":8}}`)
	})

	file, err := client.UploadFile(context.Background(), "gst.pdf", "application/pdf",
		strings.NewReader("%PDF-1.4"), models.UploadMetadata{ClientID: "c1", FolderID: "apr"})
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if file.ID != "new1" {
		t.Errorf("file id = %s, want new1", file.ID)
	}
}

// eofReader records whether the server had started handling the upload when
// the source was exhausted.
type eofReader struct {
	r          io.Reader
	serverSeen *atomic.Bool
	seenAtEOF  atomic.Bool
	reachedEOF atomic.Bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF && !e.reachedEOF.Swap(true) {
		e.seenAtEOF.Store(e.serverSeen.Load())
	}
	return n, err
}

func TestUploadFileStreamsBody(t *testing.T) {
	var serverSeen atomic.Bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		serverSeen.Store(true)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"ok"}`)
	})

	src := &eofReader{r: strings.NewReader(strings.Repeat("x", 4<<20)), serverSeen: &serverSeen}
	if _, err := client.UploadFile(context.Background(), "big.pdf", "application/pdf",
		src, models.UploadMetadata{ClientID: "c1", FolderID: "apr"}); err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if !src.reachedEOF.Load() {
		t.Fatal("source was not read to the end")
	}
	if !src.seenAtEOF.Load() {
		t.Error("body was buffered: the server saw the request only after the source was exhausted")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestUploadFileSourceError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.UploadFile(context.Background(), "a.pdf", "application/pdf",
		failingReader{}, models.UploadMetadata{ClientID: "c1", FolderID: "apr"})
	if err == nil || !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("UploadFile() error = %v, want source read error", err)
	}
}

func TestUploadFileRequiresFolder(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := client.UploadFile(context.Background(), "a.pdf", "application/pdf",
		strings.NewReader("x"), models.UploadMetadata{ClientID: "c1"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if hits.Load() != 0 {
		t.Error("invalid upload must not reach the server")
	}
}

func TestCreateFolder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body["name"] != "Invoices" || body["clientId"] != "c1" || body["parentFolderId"] != "apr" {
			t.Errorf("unexpected body %v", body)
		}
		io.WriteString(w, `{"_id":"inv","name":"Invoices","parentFolderId":"apr"}`)
	})

	parent := "apr"
	folder, err := client.CreateFolder(context.Background(), models.CreateFolderRequest{
		Name: "  Invoices ", ClientID: "c1", ParentFolderID: &parent,
	})
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	if folder.ID != "inv" {
		t.Errorf("folder id = %s", folder.ID)
	}
}

func TestCreateFolderValidation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid request reached the server")
	})

	for _, name := range []string{"", "   ", "a/b", `a\b`, strings.Repeat("x", MaxFolderNameLength+1)} {
		_, err := client.CreateFolder(context.Background(), models.CreateFolderRequest{Name: name, ClientID: "c1"})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("name %q: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestBinOperations(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			io.WriteString(w, `{"folders":[{"_id":"d1","name":"Old","deletedAt":"2025-05-01T10:00:00Z"}],"files":[]}`)
			return
		}
		io.WriteString(w, `{"message":"done"}`)
	})

	ctx := context.Background()
	bin, err := client.GetBinItems(ctx, "c1")
	if err != nil {
		t.Fatalf("GetBinItems() error = %v", err)
	}
	if len(bin.Folders) != 1 || bin.Folders[0].DeletedAt.IsZero() {
		t.Errorf("unexpected bin %+v", bin)
	}
	if err := client.RestoreItem(ctx, models.ItemTypeFolder, "d1"); err != nil {
		t.Fatalf("RestoreItem() error = %v", err)
	}
	if err := client.PermanentDelete(ctx, models.ItemTypeFile, "f9"); err != nil {
		t.Fatalf("PermanentDelete() error = %v", err)
	}

	want := []string{
		"GET /api/drive/c1/bin",
		"PUT /api/drive/restore/folder/d1",
		"DELETE /api/drive/permanent/file/f9",
	}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/client/view" {
			if got := r.Header.Get("Authorization"); got != "Bearer fresh-token" {
				t.Errorf("Authorization after login = %q", got)
			}
			io.WriteString(w, `{"data":[]}`)
			return
		}
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Role != "CAADMIN" || req.Email != "ca@firm.in" || req.Password != "pw" {
			t.Errorf("unexpected login body %+v", req)
		}
		io.WriteString(w, `{"token":"fresh-token","name":"CA Admin"}`)
	})

	resp, err := client.Login(context.Background(), " ca@firm.in ", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token != "fresh-token" || client.Token() != "fresh-token" {
		t.Errorf("token not installed: %+v", resp)
	}
	if _, err := client.ListClients(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestLoginValidation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid login reached the server")
	})
	if _, err := client.Login(context.Background(), "not-an-email", "pw"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := client.Login(context.Background(), "ca@firm.in", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLoginWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"welcome"}`)
	})
	if _, err := client.Login(context.Background(), "ca@firm.in", "pw"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGetClient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"_id":"c1","name":"Sharma Traders","type":"business","panNumber":"ABCDE1234F","mobileNumber":"9876543210"}]}`)
	})

	c, err := client.GetClient(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if c.Name != "Sharma Traders" || c.Type != models.ClientTypeBusiness {
		t.Errorf("unexpected client %+v", c)
	}
	if _, err := client.GetClient(context.Background(), "zz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			io.WriteString(w, `{"data":[{"_id":"n1","title":"Upload","message":"x","isRead":false,"createdAt":"2025-06-01T00:00:00Z","metadata":{"clientId":"c1"}}]}`)
			return
		}
		io.WriteString(w, `{}`)
	})

	ctx := context.Background()
	ns, err := client.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(ns) != 1 || ns[0].Metadata.ClientID != "c1" || models.UnreadCount(ns) != 1 {
		t.Errorf("unexpected notifications %+v", ns)
	}
	if err := client.MarkNotificationRead(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if err := client.MarkAllNotificationsRead(ctx); err != nil {
		t.Fatal(err)
	}
	if err := client.DeleteNotification(ctx, "n1"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"GET /api/notifications",
		"PATCH /api/notifications/n1/read",
		"PATCH /api/notifications/mark-all-read",
		"DELETE /api/notifications/n1",
	}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestListActivity(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"_id":"a1","action":"UPLOAD_FILE","clientName":"Sharma","details":"Uploaded gst.pdf","timestamp":"2025-06-01T09:30:00Z"}]}`)
	})

	entries, err := client.ListActivity(context.Background())
	if err != nil {
		t.Fatalf("ListActivity() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ActionLabel() != "File Uploaded" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestDownloadURL(t *testing.T) {
	cfg := config.New()
	cfg.APIBaseURL = "http://localhost:5001/api"
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"/uploads/pan.pdf":                  "http://localhost:5001/uploads/pan.pdf",
		"uploads/pan.pdf":                   "http://localhost:5001/uploads/pan.pdf",
		"https://cdn.example.com/a.pdf":     "https://cdn.example.com/a.pdf",
		"s3://ca-drive-docs/c1/apr/gst.pdf": "s3://ca-drive-docs/c1/apr/gst.pdf",
	}
	for in, want := range tests {
		got, err := client.DownloadURL(in)
		if err != nil {
			t.Errorf("DownloadURL(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("DownloadURL(%q) = %s, want %s", in, got, want)
		}
	}
}
