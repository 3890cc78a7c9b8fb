package tasksync

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Handler builds the HTTP routing table:
//
//	GET  /api/health             - service health
//	POST /api/auth/register      - create account
//	POST /api/auth/login         - obtain session token
//	GET  /api/tasks              - list tasks (auth)
//	POST /api/tasks              - create task (auth, broadcasts "created")
//	PUT  /api/tasks/{id}         - update task (auth, broadcasts "updated")
//	DELETE /api/tasks/{id}       - delete task (auth, broadcasts "deleted")
//	GET  /ws                     - realtime handshake (token via access_token)
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/auth/register", a.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", a.handleLogin).Methods("POST")

	tasks := api.PathPrefix("/tasks").Subrouter()
	tasks.Use(a.requireAuth)
	tasks.HandleFunc("", a.handleListTasks).Methods("GET")
	tasks.HandleFunc("", a.handleCreateTask).Methods("POST")
	tasks.HandleFunc("/{id}", a.handleUpdateTask).Methods("PUT")
	tasks.HandleFunc("/{id}", a.handleDeleteTask).Methods("DELETE")

	router.HandleFunc("/ws", a.handleWebSocket).Methods("GET")

	return router
}

// Run serves the application until ctx is cancelled, then shuts down
// gracefully, allowing up to 5 seconds for in-flight requests.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    a.config.Addr,
		Handler: a.Handler(),
	}

	a.logger.Info("starting tasksync server", "addr", a.config.Addr)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down server")
		a.hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
