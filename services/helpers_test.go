package services

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"eco-quest-system/middleware"
	"eco-quest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a second connection would see an empty :memory: database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Task{},
		&models.TaskSubmission{},
		&models.ProofArchive{},
	))
	return db
}

// newSecuredApp returns a Fiber app with the /s group behind the user-context
// middleware, ready for route registration.
func newSecuredApp() (*fiber.App, fiber.Router) {
	app := fiber.New()
	group := app.Group("/s", middleware.UserContextMiddleware())
	return app, group
}

// newProofRequest builds the multipart POST the mobile app sends: a "file"
// part plus an optional "task_id" field.
func newProofRequest(t *testing.T, target, userID, taskID, filename string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if taskID != "" {
		require.NoError(t, writer.WriteField("task_id", taskID))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest("POST", target, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

func seedProfile(t *testing.T, db *gorm.DB, userID, name, class string, xp, coins int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Profile{
		UserID:  userID,
		Name:    name,
		Class:   class,
		TotalXP: xp,
		Coins:   coins,
	}).Error)
}
