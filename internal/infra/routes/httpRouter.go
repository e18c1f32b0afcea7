package routes

import (
	"net/http"
	"voice-relay/internal/infra/handlers"

	"github.com/gorilla/mux"
)

type Routes struct {
	Mux         *mux.Router
	HttpHandler *handlers.HttpHandlers
}

func NewRoutes(mux *mux.Router, HttpHandler *handlers.HttpHandlers) *Routes {
	return &Routes{mux, HttpHandler}
}

func (r *Routes) Init() {
	r.Mux.HandleFunc("/", r.HttpHandler.Root).Methods(http.MethodGet)
	r.Mux.HandleFunc("/healthCheck", r.HttpHandler.HealthCheck).Methods(http.MethodGet)
	r.Mux.HandleFunc("/talk", r.HttpHandler.Talk).Methods(http.MethodPost)
}
