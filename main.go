// kotatsu/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"kotatsu/attachment"
	"kotatsu/config"
	"kotatsu/database"
	"kotatsu/engine"
	"kotatsu/handlers"
	"kotatsu/models"
	"kotatsu/utils"

	"github.com/joho/godotenv"
)

type Application struct {
	engine          *engine.Engine
	rateLimiter     *models.RateLimiter
	logger          *slog.Logger
	fileDir         string
	modPasswordHash []byte
}

// Methods to satisfy the handlers.App interface
func (a *Application) Engine() *engine.Engine          { return a.engine }
func (a *Application) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *Application) Logger() *slog.Logger            { return a.logger }
func (a *Application) FileDir() string                 { return a.fileDir }
func (a *Application) ModPasswordHash() []byte         { return a.modPasswordHash }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file loaded", "error", err)
	}

	// --- External Configuration ---
	port := utils.GetEnv("KOTATSU_PORT", "8080")
	dbPath := utils.GetEnv("KOTATSU_DB_PATH",
		"./kotatsu.db?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=5000")
	fileDir := utils.GetEnv("KOTATSU_FILE_DIR", "./files")
	modPasswordHash := utils.GetEnv("KOTATSU_MOD_PASSWORD_HASH", "")

	rateLimitEvery := parseDurationEnv(logger, "KOTATSU_RATE_EVERY", config.DefaultRateLimitEvery)
	rateLimitPrune := parseDurationEnv(logger, "KOTATSU_RATE_PRUNE", config.DefaultRateLimitPrune)
	rateLimitExpire := parseDurationEnv(logger, "KOTATSU_RATE_EXPIRE", config.DefaultRateLimitExpire)
	banSweepPeriod := parseDurationEnv(logger, "KOTATSU_BAN_SWEEP_PERIOD", config.DefaultBanSweepPeriod)
	remoteTimeout := parseDurationEnv(logger, "KOTATSU_REMOTE_TIMEOUT", config.DefaultRemoteTimeout)

	rateLimitBurst, err := strconv.Atoi(utils.GetEnv("KOTATSU_RATE_BURST", strconv.Itoa(config.DefaultRateLimitBurst)))
	if err != nil {
		logger.Warn("Invalid KOTATSU_RATE_BURST integer, using default", "default", config.DefaultRateLimitBurst)
		rateLimitBurst = config.DefaultRateLimitBurst
	}

	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err := os.MkdirAll(fileDir, 0755); err != nil {
		logger.Error("FATAL: Could not create file directory", "path", fileDir, "error", err)
		os.Exit(1)
	}

	// --- Storage Init ---
	var remote attachment.FileStore
	if utils.GetEnv("KOTATSU_S3_ENABLED", "false") == "true" {
		endpoint := utils.GetEnv("KOTATSU_S3_ENDPOINT", "")
		accessKey := utils.GetEnv("KOTATSU_S3_ACCESS_KEY", "")
		secretKey := utils.GetEnv("KOTATSU_S3_SECRET_KEY", "")
		bucket := utils.GetEnv("KOTATSU_S3_BUCKET", "")
		region := utils.GetEnv("KOTATSU_S3_REGION", "us-east-1")
		publicURL := utils.GetEnv("KOTATSU_S3_PUBLIC_URL", "")
		useSSL := utils.GetEnv("KOTATSU_S3_USE_SSL", "true") == "true"

		s3Store, err := attachment.NewS3Store(endpoint, accessKey, secretKey, bucket, region, publicURL, useSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		remote = s3Store
		logger.Info("S3 storage initialized", "endpoint", endpoint, "bucket", bucket)
	} else {
		logger.Info("Local storage only", "dir", fileDir)
	}

	files := attachment.NewStore(&attachment.LocalStore{BaseDir: fileDir}, remote, remoteTimeout, logger)
	eng := engine.New(dbService, files, logger)

	if err := seedBoards(eng, logger); err != nil {
		logger.Error("Failed to seed boards", "error", err)
		os.Exit(1)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go eng.BanSweeper(sweepCtx, banSweepPeriod)

	app := &Application{
		engine:          eng,
		rateLimiter:     models.NewRateLimiter(rateLimitEvery, rateLimitBurst, rateLimitPrune, rateLimitExpire),
		logger:          logger,
		fileDir:         fileDir,
		modPasswordHash: []byte(modPasswordHash),
	}

	mux := handlers.SetupRouter(app)

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("kotatsu server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}

func parseDurationEnv(logger *slog.Logger, key, fallback string) time.Duration {
	value := utils.GetEnv(key, fallback)
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "key", key, "value", value, "default", fallback)
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// seedBoards creates a starter board on first run so the instance is usable
// out of the box. KOTATSU_SEED_BOARDS takes "label=Name" pairs separated by
// semicolons.
func seedBoards(eng *engine.Engine, logger *slog.Logger) error {
	seed := utils.GetEnv("KOTATSU_SEED_BOARDS", "b=Random")
	for _, pair := range utils.SplitPairs(seed) {
		if _, err := eng.Board(pair[0]); err == nil {
			continue
		}
		board := &models.Board{
			Label: pair[0],
			Name:  pair[1],
			AttachmentCategories: []models.AttachmentCategory{
				models.CategoryImage, models.CategoryVideo,
			},
		}
		if err := eng.CreateBoard(board); err != nil {
			return err
		}
		logger.Info("Seeded board", "board", board.Label)
	}
	return nil
}
