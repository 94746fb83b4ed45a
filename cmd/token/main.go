package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"photo_backend/internal/platform/config"
	jwtmw "photo_backend/internal/platform/jwt"
	"photo_backend/internal/platform/logger"
)

// APIクライアント向けのBearerトークンを発行します。
//
//	go run ./cmd/token -subject mobile-app
func main() {
	subject := flag.String("subject", "", "token subject (API client name)")
	flag.Parse()

	if err := run(*subject); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(subject string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	token, err := jwtmw.NewGenerator(cfg.Auth.JWTSecret, cfg.Auth.Expiration).GenerateToken(subject)
	if err != nil {
		return err
	}
	log.Info("token issued", zap.String("subject", subject), zap.Duration("expires_in", cfg.Auth.Expiration))

	fmt.Println(token)
	return nil
}
