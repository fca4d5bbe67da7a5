package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"drawdeck/handlers/api/canvases"
	"drawdeck/handlers/api/documents"
	editorapi "drawdeck/handlers/api/editor"
	"drawdeck/handlers/api/recent"
	"drawdeck/handlers/auth"
	authMiddleware "drawdeck/middleware"
	"drawdeck/sessions"
	"drawdeck/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).
			Warn("Ignoring non-numeric environment value")
		return fallback
	}
	return n
}

func setupRouter(store stores.Store, manager *sessions.Manager, authService *auth.Service) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Token", "session", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	historyDepth := envInt("HISTORY_DEPTH", 0)
	recentMax := envInt("RECENT_MAX", recent.DefaultMaxEntries)

	r.Route("/api/v2", func(r chi.Router) {
		// Stored canvases and live sessions, protected by JWT auth
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(authService))
			r.Route("/canvases", func(r chi.Router) {
				r.Get("/", canvases.HandleList(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", canvases.HandleGet(store))
					r.Put("/", canvases.HandleSave(store))
					r.Delete("/", canvases.HandleDelete(store))
				})
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", editorapi.HandleOpen(manager, store, historyDepth))
				r.Route("/{sessionId}", func(r chi.Router) {
					r.Get("/", editorapi.HandleState(manager))
					r.Post("/ops", editorapi.HandleApply(manager))
					r.Post("/undo", editorapi.HandleUndo(manager))
					r.Post("/redo", editorapi.HandleRedo(manager))
					r.Post("/select", editorapi.HandleSelect(manager))
					r.Post("/save", editorapi.HandleSave(manager, store))
					r.Post("/share", editorapi.HandleShare(manager, store))
					r.Post("/export", editorapi.HandleExport(manager, nil))
					r.Delete("/", editorapi.HandleClose(manager))
				})
			})

			// Usage tracking is only available when the active store
			// supports it (in-memory and SQLite do).
			if tracker, ok := store.(recent.TrackerStore); ok {
				r.Route("/recent", func(r chi.Router) {
					r.Get("/", recent.HandleListRecent(tracker, recentMax))
					r.Post("/{id}", recent.HandleTouch(tracker, recentMax))
				})
				r.Route("/favorites", func(r chi.Router) {
					r.Get("/", recent.HandleListFavorites(tracker))
					r.Put("/{id}", recent.HandleFavorite(tracker))
					r.Delete("/{id}", recent.HandleUnfavorite(tracker))
				})
			} else {
				logrus.Info("Active store does not track usage; recent/favorites routes disabled")
			}
		})

		// Routes for anonymous document sharing
		r.Post("/post/", documents.HandleCreate(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", documents.HandleGet(store))
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authService.HandleLogin)
		r.Get("/callback", authService.HandleCallback)
	})

	return r
}

func waitForShutdown(server *http.Server) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-signalC

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithField("error", err).Error("Server shutdown failed")
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	authService := auth.NewService(auth.Config{
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
	})
	store := stores.GetStore()
	manager := sessions.NewManager()

	r := setupRouter(store, manager, authService)

	server := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(server)
}
