package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
)

func TestGCSStore_PublicURL(t *testing.T) {
	s := &GCSStore{cfg: GCSConfig{
		Bucket:        "mirtv-upload.firebasestorage.app",
		PublicURLBase: "https://firebasestorage.googleapis.com/v0/b",
	}}

	got := s.PublicURL("movie-en/1746888137944_clip.MP4")
	want := "https://firebasestorage.googleapis.com/v0/b/mirtv-upload.firebasestorage.app/o/movie-en%2F1746888137944_clip.MP4?alt=media"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("invalid URL: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/o/movie-en/1746888137944_clip.MP4") {
		t.Errorf("expected decoded path to contain the key, got %s", u.Path)
	}
}

const testBucket = "videos-test"

type gcsObject struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        string `json:"size"`
	TimeCreated string `json:"timeCreated"`
}

// fakeGCS answers the subset of the JSON API the backend uses.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string]gcsObject
	order   []string
	public  bool
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const objectsPath = "/storage/v1/b/" + testBucket + "/o"
	const uploadPath = "/upload/storage/v1/b/" + testBucket + "/o"

	switch {
	case r.Method == http.MethodPost && r.URL.Path == uploadPath:
		f.upload(w, r)
	case r.Method == http.MethodGet && r.URL.Path == objectsPath:
		f.mu.Lock()
		items := make([]gcsObject, 0, len(f.order))
		for _, name := range f.order {
			if obj, ok := f.objects[name]; ok {
				items = append(items, obj)
			}
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"kind": "storage#objects", "items": items})
	case strings.HasPrefix(r.URL.Path, objectsPath+"/"):
		name := strings.TrimPrefix(r.URL.Path, objectsPath+"/")
		f.mu.Lock()
		obj, ok := f.objects[name]
		if ok && r.Method == http.MethodDelete {
			delete(f.objects, name)
		}
		f.mu.Unlock()
		switch {
		case !ok:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"code": 404, "message": "No such object: " + name},
			})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusOK, obj)
		}
	case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/b/"+testBucket+"/iam":
		var bindings []map[string]any
		if f.public {
			bindings = append(bindings, map[string]any{
				"role":    "roles/storage.objectViewer",
				"members": []string{"allUsers"},
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": "storage#policy", "bindings": bindings})
	default:
		http.Error(w, "unexpected request "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
	}
}

// upload accepts a multipart/related upload: JSON metadata then media.
func (f *fakeGCS) upload(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	meta, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var obj gcsObject
	if err := json.NewDecoder(meta).Decode(&obj); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	media, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(media)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	obj.Bucket = testBucket
	obj.Size = strconv.Itoa(len(data))
	obj.TimeCreated = "2025-05-10T14:42:17Z"

	f.mu.Lock()
	if _, ok := f.objects[obj.Name]; !ok {
		f.order = append(f.order, obj.Name)
	}
	f.objects[obj.Name] = obj
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, obj)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestGCSStore(t *testing.T, fake *fakeGCS) *GCSStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewGCSStore(context.Background(),
		GCSConfig{Bucket: testBucket, PublicURLBase: srv.URL},
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGCSStore(t *testing.T) {
	ctx := context.Background()

	t.Run("upload records content type and lists the object", func(t *testing.T) {
		fake := &fakeGCS{objects: make(map[string]gcsObject)}
		store := newTestGCSStore(t, fake)

		n, err := store.Upload(ctx, "movie-en/1746888137944_clip.MP4", strings.NewReader("frames"), "video/mp4")
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		if n != 6 {
			t.Errorf("expected 6 bytes written, got %d", n)
		}

		fake.mu.Lock()
		stored, ok := fake.objects["movie-en/1746888137944_clip.MP4"]
		fake.mu.Unlock()
		if !ok || stored.ContentType != "video/mp4" {
			t.Fatalf("expected object with video/mp4 content type, got %+v", stored)
		}

		objects, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(objects) != 1 {
			t.Fatalf("expected one object, got %+v", objects)
		}
		obj := objects[0]
		if obj.Key != "movie-en/1746888137944_clip.MP4" || obj.Size != 6 || obj.ContentType != "video/mp4" {
			t.Errorf("unexpected object info %+v", obj)
		}
		if !obj.CreatedAt.Equal(time.Date(2025, 5, 10, 14, 42, 17, 0, time.UTC)) {
			t.Errorf("unexpected createdAt %v", obj.CreatedAt)
		}
	})

	t.Run("stat and delete of a missing object", func(t *testing.T) {
		store := newTestGCSStore(t, &fakeGCS{objects: make(map[string]gcsObject)})

		if _, err := store.Stat(ctx, "movie-en/nope.mp4"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound from Stat, got %v", err)
		}
		if err := store.Delete(ctx, "movie-en/nope.mp4"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound from Delete, got %v", err)
		}
	})

	t.Run("delete removes an existing object", func(t *testing.T) {
		fake := &fakeGCS{objects: map[string]gcsObject{
			"movie-ru/1_a.mov": {Bucket: testBucket, Name: "movie-ru/1_a.mov", Size: "1", TimeCreated: "2025-05-10T14:42:17Z"},
		}}
		fake.order = []string{"movie-ru/1_a.mov"}
		store := newTestGCSStore(t, fake)

		info, err := store.Stat(ctx, "movie-ru/1_a.mov")
		if err != nil || info.Key != "movie-ru/1_a.mov" {
			t.Fatalf("expected stat to succeed, got %+v, %v", info, err)
		}
		if err := store.Delete(ctx, "movie-ru/1_a.mov"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if err := store.Delete(ctx, "movie-ru/1_a.mov"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected second delete to report ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("public read follows the bucket policy", func(t *testing.T) {
		for _, public := range []bool{true, false} {
			store := newTestGCSStore(t, &fakeGCS{objects: make(map[string]gcsObject), public: public})
			got, err := store.CheckPublicRead(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != public {
				t.Errorf("expected public read %v, got %v", public, got)
			}
		}
	})
}
