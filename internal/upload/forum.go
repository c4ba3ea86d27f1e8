package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ForumUploader posts files to the forum's image endpoint and returns
// the hosted URL the forum assigns, with the dimensions it measured.
type ForumUploader struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewForumUploader(baseURL, token string) *ForumUploader {
	return &ForumUploader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (u *ForumUploader) Upload(ctx context.Context, file File) (Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", safeName(file.Name))
	if err != nil {
		return Result{}, fmt.Errorf("forum upload: build form: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return Result{}, fmt.Errorf("forum upload: build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("forum upload: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/api/uploads/images", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("forum upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("forum upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("forum upload: decode response: %w", err)
	}
	if res.URL == "" {
		return Result{}, fmt.Errorf("forum upload: response missing url")
	}
	return res, nil
}

func safeName(name string) string {
	if name == "" {
		return "image"
	}
	return name
}
