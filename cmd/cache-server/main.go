package main

import (
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/leonardcser/livescore-mcp/internal/cache"
	"github.com/leonardcser/livescore-mcp/internal/config"
	"github.com/leonardcser/livescore-mcp/internal/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Path, cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Close()
	log := logger.L().Named("cache-daemon")

	sock := cfg.Durable.Socket
	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.MkdirAll(filepath.Dir(cfg.Durable.Path), 0o755)
	_ = os.Remove(sock)

	store, err := cache.Open(cfg.Durable.Path, cache.Options{
		Bucket:        cfg.Durable.Bucket,
		MaxValueBytes: cfg.Durable.MaxValueBytes,
	})
	if err != nil {
		log.Error("open store", zap.String("path", cfg.Durable.Path), zap.Error(err))
		panic(err)
	}
	defer store.Close()

	l, err := net.Listen("unix", sock)
	if err != nil {
		log.Error("listen", zap.String("socket", sock), zap.Error(err))
		panic(err)
	}
	_ = os.Chmod(sock, 0o600)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		_ = l.Close()
	}()

	log.Info("cache daemon listening", zap.String("socket", sock), zap.String("db", cfg.Durable.Path))
	if err := cache.Serve(l, store, log); err != nil {
		log.Error("serve", zap.Error(err))
	}
	_ = os.Remove(sock)
}
