package main

import (
	"fmt"
	"os"
	"time"

	"github.com/amartel/fubuki/common/environment"
	"github.com/amartel/fubuki/common/version"
	"github.com/amartel/fubuki/internal/fubuki/app"
	"github.com/amartel/fubuki/internal/fubuki/fallback"
	"github.com/amartel/fubuki/internal/fubuki/matrix"
	"github.com/amartel/fubuki/internal/fubuki/observability"
)

func main() {
	fmt.Printf("Fubuki Content Bot\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	observability.Setup(
		environment.StringOr("FUBUKI_LOG_LEVEL", "info"),
		environment.StringOr("FUBUKI_LOG_FORMAT", "text"),
	)

	// Load configuration from environment
	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Create application
	fubuki, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Fubuki: %v\n", err)
		os.Exit(1)
	}
	defer fubuki.Stop()

	// Run application
	if err := fubuki.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Fubuki: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() (*app.Config, error) {
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	adminID, err := environment.RequiredString("FUBUKI_ADMIN_ID")
	if err != nil {
		return nil, err
	}
	catalogPath, err := environment.RequiredString("FUBUKI_CATALOG")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./fubuki.db"),
		CatalogPath:  catalogPath,
		Matrix: matrix.Config{
			Homeserver:  homeserver,
			UserID:      userID,
			AccessToken: accessToken,
		},
		AdminID:      adminID,
		OperatorRoom: environment.StringOr("FUBUKI_OPERATOR_ROOM", ""),
		LLM: fallback.Config{
			APIKey:  environment.StringOr("FUBUKI_LLM_API_KEY", ""),
			BaseURL: environment.StringOr("FUBUKI_LLM_BASE_URL", ""),
			Model:   environment.StringOr("FUBUKI_LLM_MODEL", ""),
			Timeout: environment.DurationOr("FUBUKI_LLM_TIMEOUT", 10*time.Second),
		},
		HistoryWindow:     environment.IntOr("FUBUKI_HISTORY_WINDOW", 10),
		FallbackRateLimit: environment.IntOr("FUBUKI_RATE_LIMIT", fallback.DefaultRateLimit),
		BroadcastInterval: environment.DurationOr("FUBUKI_BROADCAST_INTERVAL", 0),
		HTTPAddr:          environment.StringOr("FUBUKI_HTTP_ADDR", ""),
	}, nil
}
