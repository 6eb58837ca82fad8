package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/openlearn-labs/quizengine/internal/api/http"
	auth "github.com/openlearn-labs/quizengine/internal/auth/middleware"
	"github.com/openlearn-labs/quizengine/internal/config"
	"github.com/openlearn-labs/quizengine/internal/db"
	"github.com/openlearn-labs/quizengine/internal/grading"
	"github.com/openlearn-labs/quizengine/internal/quiz"
	"github.com/openlearn-labs/quizengine/internal/warn"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	warns := warn.NewRepo(dbh)
	store := quiz.NewSQLStore(dbh, warns)
	sessions := quiz.NewSessionManager(store, grading.NewDefaultGrader(), warns)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT → subject in context)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Get("/quizzes/{quizID}", api.GetQuizHandler(sessions))
		pr.Get("/courses/{courseID}/quizzes", api.ListCourseQuizzesHandler(sessions))

		pr.Post("/quizzes/{quizID}/attempts", api.StartAttemptHandler(sessions))
		pr.Post("/attempts/{attemptID}/resume", api.ResumeAttemptHandler(sessions))
		pr.Post("/session/clear", api.ClearAttemptHandler(sessions))

		pr.Post("/quizzes/{quizID}/answers", api.SubmitAnswerHandler(sessions))
		pr.Post("/quizzes/{quizID}/finalize", api.FinalizeAttemptHandler(sessions))

		pr.Get("/quizzes/{quizID}/attempts", api.ListAttemptsHandler(sessions))
		pr.Get("/attempts/{attemptID}/answers", api.GetAttemptAnswersHandler(sessions))

		pr.Get("/warnings", api.ListWarningsHandler(warns))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("quizengined listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
