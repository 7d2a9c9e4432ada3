package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aeqip/imgsim/internal/server"
)

var (
	servePort    int
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the image similarity API. The server accepts image uploads,
extracts features through the configured extraction server, and answers
similarity searches against the local store.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "allowed CORS origins (default: all)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	ext, err := newExtractor()
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("configure extractor: %w", err)
	}

	srv, err := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Store:          st,
		Extractor:      ext,
		Ranker:         newRanker(),
		Thresholds:     cfg.Thresholds,
		Dimension:      cfg.Feature.Dimension,
		Scheme:         cfg.Similarity.Scheme,
		AllowedOrigins: serveOrigins,
	})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to create API server: %w", err)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	srv.Start(&wg, errChan)

	slog.Info("API server started",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"scheme", cfg.Similarity.Scheme,
		"dimension", cfg.Feature.Dimension)
	fmt.Printf("imgsim listening on http://%s:%d (Ctrl+C to stop)\n", cfg.Server.Host, cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errChan:
		slog.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}
	_ = ext.Close()

	wg.Wait()
	fmt.Println("imgsim stopped")
	return nil
}
