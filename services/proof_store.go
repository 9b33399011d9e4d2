// services/proof_store.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"eco-quest-system/utils"
)

// MaxProofBytes is the hard per-submission size ceiling (128 MiB), enforced
// before any network call.
const MaxProofBytes = 128 * 1024 * 1024

const defaultProofUploadEndpoint = "https://uguu.se/upload"

// ProofStoreClient pushes proof files to an anonymous remote file host and
// extracts a public URL from its loosely structured response. Stateless; one
// network call per upload, no retry — the host has no idempotency key and a
// blind retry risks duplicate orphaned uploads.
type ProofStoreClient struct {
	Endpoint    string
	MaxFileSize int64
	HTTPClient  *http.Client
}

func NewProofStoreClient() *ProofStoreClient {
	endpoint := os.Getenv("PROOF_UPLOAD_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultProofUploadEndpoint
	}
	return &ProofStoreClient{
		Endpoint:    endpoint,
		MaxFileSize: MaxProofBytes,
		HTTPClient:  utils.HTTPClient,
	}
}

// Upload sends data as a multipart form (MAX_FILE_SIZE + files[]) and returns
// the extracted public URL together with the host's raw response body, which
// the caller stores for the audit trail.
func (c *ProofStoreClient) Upload(data []byte, filename string) (string, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("MAX_FILE_SIZE", strconv.FormatInt(c.MaxFileSize, 10)); err != nil {
		return "", "", fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := writer.CreateFormFile("files[]", filename)
	if err != nil {
		return "", "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequest("POST", c.Endpoint, body)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("upload host unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("❌ [PROOF_STORE] upload failed: %d %s", resp.StatusCode, string(raw))
		return "", string(raw), fmt.Errorf("upload host returned status %d", resp.StatusCode)
	}

	return ExtractHostedURL(string(raw)), string(raw), nil
}

// Host returns the upload endpoint's hostname, recorded in proof metadata.
func (c *ProofStoreClient) Host() string {
	if u, err := url.Parse(c.Endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return c.Endpoint
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractHostedURL pulls a usable URL out of the host's response: JSON with a
// nested files array first, then a top-level url field, then the first URL
// substring, then the trimmed body verbatim. Best effort on purpose — the
// host's format drifts, and a logged odd URL beats a failed submission.
func ExtractHostedURL(payload string) string {
	if candidate := jsonHostedURL(payload); candidate != "" {
		return candidate
	}
	if match := urlPattern.FindString(payload); match != "" {
		return match
	}
	return strings.TrimSpace(payload)
}

func jsonHostedURL(payload string) string {
	var parsed struct {
		Files []struct {
			URL string `json:"url"`
		} `json:"files"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		start := strings.Index(payload, "{")
		end := strings.LastIndex(payload, "}")
		if start < 0 || end <= start {
			return ""
		}
		if err := json.Unmarshal([]byte(payload[start:end+1]), &parsed); err != nil {
			return ""
		}
	}
	if len(parsed.Files) > 0 && parsed.Files[0].URL != "" {
		return parsed.Files[0].URL
	}
	return parsed.URL
}
