package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tecnoroute/internal/config"
	"tecnoroute/internal/db"
	"tecnoroute/internal/logger"
	"tecnoroute/internal/router"
	"tecnoroute/internal/services"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
)

const usage = `uso: tecnoroute <comando> [argumentos]

  serve                                  inicia la API de demostración
  login <email> <password>
  register <nombre> <email> <password> [telefono]
  logout | whoami
  products [categoria]
  cart | add <productoId> [cantidad] | update <productoId> <cantidad>
  remove <productoId> | clear
  checkout --firstName .. --cardNumber ..  (ver checkout -h)
  orders [estado] | cycle <pedidoId>
  driver [--watch] | take <pedidoId> | complete
  stats
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	log := logger.InitLogger(cfg.LogLevel)

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "serve" {
		if err := serve(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("Error del servidor")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runClient(ctx, cfg, log, cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore(cfg config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.DBUrl == "" {
		log.Info().Msg("DB_URL vacío, usando almacenamiento en memoria")
		return store.NewMemoryStore(), nil
	}

	database, err := db.InitDB(cfg.DBUrl, log)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database, log); err != nil {
		database.Close()
		return nil, err
	}
	return store.NewSQLStore(database), nil
}

func serve(cfg config.Config, log zerolog.Logger) error {
	log.Info().Msg("Aplicación iniciando")

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := services.NewContainer(st, cfg.JWTSecret, log)
	if err := svc.Seed(context.Background()); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(svc, router.Options{RateLimit: cfg.RateLimit, RateBurst: cfg.RateBurst}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Servidor escuchando en el puerto %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("Señal de apagado recibida...")
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Apagado ordenado fallido")
	}

	log.Info().Msg("Servidor detenido")
	return nil
}
