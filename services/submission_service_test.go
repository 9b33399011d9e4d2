package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"eco-quest-system/models"
	"eco-quest-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// proofPipelineServer fakes the whole outside world of one submission: the
// anonymous upload host, the hosted proof file and the Gemini endpoint.
type proofPipelineServer struct {
	*httptest.Server
	uploadHits int32
	geminiHits int32
}

func newProofPipelineServer(t *testing.T, geminiText string) *proofPipelineServer {
	t.Helper()

	p := &proofPipelineServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.uploadHits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"files":[{"url":"%s/files/proof.png"}]}`, p.URL)
	})
	mux.HandleFunc("/files/proof.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.geminiHits, 1)
		_, _ = w.Write([]byte(geminiTextResponse(geminiText)))
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *proofPipelineServer) proofStore() *ProofStoreClient {
	return &ProofStoreClient{
		Endpoint:    p.URL + "/upload",
		MaxFileSize: MaxProofBytes,
		HTTPClient:  utils.HTTPClient,
	}
}

func (p *proofPipelineServer) gemini() *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:      "test-key",
		BaseURL:     p.URL,
		MaxAttempts: 1,
		Backoff:     utils.LinearBackoff(0),
	})
}

func newSubmissionApp(svc *SubmissionService) *fiber.App {
	app, group := newSecuredApp()
	group.Post("/submissions", svc.CreateSubmission)
	group.Get("/submissions", svc.ListSubmissions)
	return app
}

func TestCreateSubmissionApprovedFlow(t *testing.T) {
	db := newTestDB(t)
	seedProfile(t, db, "u1", "Deniz", "7A", 0, 0)
	require.NoError(t, NewTaskService(db).SeedTasks())

	remote := newProofPipelineServer(t, `{"verdict":"valid","confidence":0.92,"reason":"bottle in recycling bin"}`)
	svc := NewSubmissionService(db, remote.proofStore(), remote.gemini())
	app := newSubmissionApp(svc)

	req := newProofRequest(t, "/s/submissions", "u1", "bottle", "proof.png", []byte("fake image"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID         string         `json:"id"`
		ProofURL   string         `json:"proof_url"`
		Status     string         `json:"status"`
		Validation GeminiDecision `json:"validation"`
		Reward     *RewardPayload `json:"reward"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, models.StatusApproved, body.Status)
	assert.Equal(t, remote.URL+"/files/proof.png", body.ProofURL)
	assert.Equal(t, VerdictValid, body.Validation.Verdict)
	require.NotNil(t, body.Reward)
	assert.Equal(t, int64(150), body.Reward.XP)
	assert.Equal(t, int64(15), body.Reward.Coins)

	// balance incremented atomically
	var profile models.Profile
	require.NoError(t, db.First(&profile, "user_id = ?", "u1").Error)
	assert.Equal(t, int64(150), profile.TotalXP)
	assert.Equal(t, int64(15), profile.Coins)

	// submission row with full audit metadata
	var sub models.TaskSubmission
	require.NoError(t, db.First(&sub, "id = ?", body.ID).Error)
	assert.Equal(t, "u1", sub.UserID)
	require.NotNil(t, sub.TaskID)
	assert.Equal(t, "bottle", *sub.TaskID)
	assert.Equal(t, models.StatusApproved, sub.Status)
	require.NotNil(t, sub.AIReason)
	assert.Equal(t, "bottle in recycling bin", *sub.AIReason)

	var meta struct {
		Source      string         `json:"source"`
		RawResponse string         `json:"raw_response"`
		Filename    string         `json:"filename"`
		Gemini      GeminiDecision `json:"gemini"`
	}
	require.NoError(t, json.Unmarshal([]byte(sub.ProofMeta), &meta))
	assert.Equal(t, "proof.png", meta.Filename)
	assert.Contains(t, meta.RawResponse, "/files/proof.png")
	assert.Equal(t, VerdictValid, meta.Gemini.Verdict)

	assert.Equal(t, int32(1), atomic.LoadInt32(&remote.uploadHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&remote.geminiHits))
}

func TestCreateSubmissionVerificationDownDegrades(t *testing.T) {
	db := newTestDB(t)
	seedProfile(t, db, "u1", "Deniz", "7A", 0, 0)
	require.NoError(t, NewTaskService(db).SeedTasks())

	remote := newProofPipelineServer(t, "")
	brokenGemini := NewGeminiClient(GeminiConfig{
		APIKey:      "test-key",
		BaseURL:     "http://127.0.0.1:1",
		MaxAttempts: 1,
		Backoff:     utils.LinearBackoff(0),
	})
	svc := NewSubmissionService(db, remote.proofStore(), brokenGemini)
	app := newSubmissionApp(svc)

	req := newProofRequest(t, "/s/submissions", "u1", "bottle", "proof.png", []byte("fake image"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status     string         `json:"status"`
		Validation GeminiDecision `json:"validation"`
		Reward     *RewardPayload `json:"reward"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.StatusSubmitted, body.Status)
	assert.Equal(t, VerdictUnknown, body.Validation.Verdict)
	assert.Nil(t, body.Reward)

	// no reward applied, but the record is still persisted
	var profile models.Profile
	require.NoError(t, db.First(&profile, "user_id = ?", "u1").Error)
	assert.Zero(t, profile.TotalXP)
	assert.Zero(t, profile.Coins)

	var count int64
	require.NoError(t, db.Model(&models.TaskSubmission{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateSubmissionUnknownTaskStillJudged(t *testing.T) {
	db := newTestDB(t)
	seedProfile(t, db, "u1", "Deniz", "7A", 0, 0)

	remote := newProofPipelineServer(t, `{"verdict":"valid","reason":"ok"}`)
	svc := NewSubmissionService(db, remote.proofStore(), remote.gemini())
	app := newSubmissionApp(svc)

	req := newProofRequest(t, "/s/submissions", "u1", "no-such-task", "proof.png", []byte("fake image"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string         `json:"status"`
		Reward *RewardPayload `json:"reward"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.StatusApproved, body.Status)
	// approved, but no task XP means no reward
	assert.Nil(t, body.Reward)

	var profile models.Profile
	require.NoError(t, db.First(&profile, "user_id = ?", "u1").Error)
	assert.Zero(t, profile.TotalXP)
}

func TestCreateSubmissionMissingFile(t *testing.T) {
	db := newTestDB(t)
	remote := newProofPipelineServer(t, "")
	svc := NewSubmissionService(db, remote.proofStore(), remote.gemini())
	app := newSubmissionApp(svc)

	// multipart form without a "file" part
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("task_id", "bottle"))
	require.NoError(t, writer.Close())

	req, err := http.NewRequest("POST", "/s/submissions", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "u1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&remote.uploadHits))
}

func TestCreateSubmissionRequiresUser(t *testing.T) {
	db := newTestDB(t)
	remote := newProofPipelineServer(t, "")
	svc := NewSubmissionService(db, remote.proofStore(), remote.gemini())
	app := newSubmissionApp(svc)

	req := newProofRequest(t, "/s/submissions", "", "bottle", "proof.png", []byte("x"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&remote.uploadHits))
}

func TestCreateSubmissionFileTooLarge(t *testing.T) {
	db := newTestDB(t)
	remote := newProofPipelineServer(t, "")
	svc := NewSubmissionService(db, remote.proofStore(), remote.gemini())
	svc.MaxBytes = 16
	app := newSubmissionApp(svc)

	req := newProofRequest(t, "/s/submissions", "u1", "bottle", "proof.png", make([]byte, 32))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	// rejected before any network call
	assert.Zero(t, atomic.LoadInt32(&remote.uploadHits))
	assert.Zero(t, atomic.LoadInt32(&remote.geminiHits))
}

func TestCreateSubmissionUploadHostFailure(t *testing.T) {
	db := newTestDB(t)
	seedProfile(t, db, "u1", "Deniz", "7A", 0, 0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("host exploded"))
	}))
	defer server.Close()

	store := &ProofStoreClient{Endpoint: server.URL, MaxFileSize: MaxProofBytes, HTTPClient: utils.HTTPClient}
	gemini := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL, MaxAttempts: 1, Backoff: utils.LinearBackoff(0)})
	svc := NewSubmissionService(db, store, gemini)
	app := newSubmissionApp(svc)

	req := newProofRequest(t, "/s/submissions", "u1", "bottle", "proof.png", []byte("x"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// nothing persisted when the upload never happened
	var count int64
	require.NoError(t, db.Model(&models.TaskSubmission{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListSubmissions(t *testing.T) {
	db := newTestDB(t)
	remote := newProofPipelineServer(t, "")
	svc := NewSubmissionService(db, remote.proofStore(), remote.gemini())
	app := newSubmissionApp(svc)

	older := &models.TaskSubmission{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ProofURL:  "https://a.uguu.se/old.png",
		Status:    models.StatusApproved,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.TaskSubmission{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ProofURL:  "https://a.uguu.se/new.png",
		Status:    models.StatusRejected,
		CreatedAt: time.Now(),
	}
	other := &models.TaskSubmission{
		ID:       uuid.NewString(),
		UserID:   "u2",
		ProofURL: "https://a.uguu.se/other.png",
		Status:   models.StatusApproved,
	}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)
	require.NoError(t, db.Create(other).Error)

	req, err := http.NewRequest("GET", "/s/submissions", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "u1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []models.TaskSubmission `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, newer.ID, body.Data[0].ID)
	assert.Equal(t, older.ID, body.Data[1].ID)
}
