// Command iocdemo serves a small user API whose components are wired by the
// container.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ioc "github.com/toutaio/toutago-ioc"
	"github.com/toutaio/toutago-ioc/config"
	"github.com/toutaio/toutago-ioc/logger"
)

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserRepository handles user data
type UserRepository interface {
	FindAll() []User
	FindByID(id int) (User, bool)
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users []User
	log   logger.Logger
}

func newMemoryUserRepository(log logger.Logger) *memoryUserRepository {
	return &memoryUserRepository{
		log: log.WithComponent("repository"),
		users: []User{
			{ID: 1, Name: "Alice", Email: "alice@example.com"},
			{ID: 2, Name: "Bob", Email: "bob@example.com"},
			{ID: 3, Name: "Charlie", Email: "charlie@example.com"},
		},
	}
}

func (r *memoryUserRepository) FindAll() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.log.Debug("Finding all users")
	return append([]User(nil), r.users...)
}

func (r *memoryUserRepository) FindByID(id int) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// UserHandler handles HTTP requests
type UserHandler struct {
	repo UserRepository
	log  logger.Logger
}

func NewUserHandler(repo UserRepository, log logger.Logger) *UserHandler {
	return &UserHandler{repo: repo, log: log.WithComponent("http")}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.repo.FindAll())
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	user, ok := h.repo.FindByID(id)
	if !ok {
		h.log.Warn("User not found", "id", id)
		http.Error(w, "User Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type registrationView struct {
	Service        string `json:"service"`
	Implementation string `json:"implementation,omitempty"`
	Tag            string `json:"tag,omitempty"`
	Lifecycle      string `json:"lifecycle"`
}

// RegistrationsHandler exposes the container's registrations.
type RegistrationsHandler struct {
	Locator ioc.ServiceLocator `inject:""`
}

func (h *RegistrationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	regs := h.Locator.Registrations()
	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		view := registrationView{
			Service:   reg.DeclaringType.String(),
			Lifecycle: reg.Lifecycle.String(),
		}
		if reg.ImplementingType != nil {
			view.Implementation = reg.ImplementingType.String()
		}
		if reg.Tag != nil {
			view.Tag = fmt.Sprint(reg.Tag)
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func buildContainer(cfg *config.Config) (*ioc.Container, error) {
	c := ioc.New(cfg.Options()...)

	if err := ioc.RegisterInstanceOf[logger.Logger](c, cfg.Logger(), nil); err != nil {
		return nil, err
	}
	if err := c.Factory().AddConstructor(newMemoryUserRepository); err != nil {
		return nil, err
	}
	if err := c.Factory().AddConstructor(NewUserHandler); err != nil {
		return nil, err
	}
	if err := ioc.RegisterType[UserRepository, *memoryUserRepository](c); err != nil {
		return nil, err
	}
	if err := ioc.RegisterType[*UserHandler, *UserHandler](c); err != nil {
		return nil, err
	}
	if err := ioc.RegisterType[*RegistrationsHandler, *RegistrationsHandler](c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func newRouter(c *ioc.Container) (http.Handler, error) {
	users, err := ioc.Resolve[*UserHandler](c)
	if err != nil {
		return nil, err
	}
	regs, err := ioc.Resolve[*RegistrationsHandler](c)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", users.List)
		r.Get("/{id}", users.Get)
	})
	r.Method(http.MethodGet, "/registrations", regs)
	return r, nil
}

func main() {
	cfg := config.Load()

	c, err := buildContainer(cfg)
	if err != nil {
		log.Fatalf("container setup failed: %v", err)
	}
	defer c.Dispose()

	router, err := newRouter(c)
	if err != nil {
		log.Fatalf("router setup failed: %v", err)
	}

	l := cfg.Logger()
	l.Info("Server starting", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, router); err != nil {
		l.Error("Server error", "error", err)
		os.Exit(1)
	}
}
