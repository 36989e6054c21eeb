package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
)

// APIError is an error response from the panel.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	ErrorID string `json:"errorId"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
	if e.ErrorID != "" {
		msg += " (error id " + e.ErrorID + ")"
	}
	return msg
}

type UploadResult struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadURL"`
	FilePath    string `json:"filePath"`
	FileName    string `json:"fileName"`
}

type RemoteVideo struct {
	Name      string    `json:"name"`
	Folder    string    `json:"folder"`
	URL       string    `json:"url"`
	PublicURL string    `json:"publicUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client talks to a running panel's JSON API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Login exchanges credentials for a bearer token used by later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Upload streams one file to folder without buffering it in memory.
func (c *Client) Upload(ctx context.Context, folder string, video VideoFile) (*UploadResult, error) {
	f, err := os.Open(video.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", video.Path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(mw, folder, video.Name, f)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &out, nil
}

// List returns the videos currently stored.
func (c *Client) List(ctx context.Context) ([]RemoteVideo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/videos", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Videos []RemoteVideo `json:"videos"`
	}
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

// folder goes first so the server can reject a bad folder before reading the file.
func writeUploadForm(mw *multipart.Writer, folder, name string, r io.Reader) error {
	if err := mw.WriteField("folder", folder); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", contentTypeFor(name))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

func (c *Client) do(req *http.Request, want int, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error *APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != nil {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
			apiErr.ErrorID = body.Error.ErrorID
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(name[strings.LastIndex(name, ".")+1:]) {
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	}
	return "application/octet-stream"
}
