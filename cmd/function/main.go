// Command function runs the Cloud Functions locally through the functions framework.
package main

import (
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"

	// Registers SyncArticles and SyncArticlesScheduled.
	_ "github.com/pep299/qiita-highlight-bridge"
)

func main() {
	log, err := logger.New(logger.Config{Level: os.Getenv("LOG_LEVEL")})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	// FUNCTION_TARGET selects the function to serve.
	log.Info("Starting functions framework", logger.String("port", port), logger.String("target", os.Getenv("FUNCTION_TARGET")))
	if err := funcframework.Start(port); err != nil {
		log.Error("Functions framework stopped", logger.Err(err))
		os.Exit(1)
	}
}
