package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quickchat/internal/app"
)

func main() {
	addr := flag.String("addr", defaultAddr(), "server listen address")
	mongoURI := flag.String("mongo-uri", envOrDefault("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	database := flag.String("db", envOrDefault("QUICKCHAT_DB", "quickchat"), "MongoDB database name")
	uploadDir := flag.String("upload-dir", envOrDefault("QUICKCHAT_UPLOAD_DIR", app.DefaultUploadDir), "directory for uploaded files")
	maxUpload := flag.Int64("max-upload", app.DefaultMaxFileSize, "maximum upload size in bytes")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, app.ServerConfig{
		Addr:        *addr,
		MongoURI:    *mongoURI,
		Database:    *database,
		UploadDir:   *uploadDir,
		MaxFileSize: *maxUpload,
	})
	if err != nil {
		log.Fatalf("start server: %v", err)
	}

	log.Printf("QuickChat server listening on %s", handle.Addr())
	if err := handle.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func defaultAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return envOrDefault("QUICKCHAT_ADDR", ":8080")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
