package server

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	v1 "github.com/gosuda/deepsearch/internal/api/v1"
	"github.com/gosuda/deepsearch/internal/api/ws"
	"github.com/gosuda/deepsearch/internal/chat"
)

func newChatHandler(deps Deps) *v1.ChatHandler {
	var pub chat.Publisher
	if deps.Hub != nil {
		pub = deps.Hub
	}
	return v1.NewChatHandler(deps.Gate, deps.Chat, pub)
}

func registerChatRoutes(r chi.Router, handler *v1.ChatHandler) {
	r.Method(http.MethodPost, v1.ChatEndpoint, handler)
}

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterQuotaRoutes(api, deps.Gate)
	v1.RegisterToolRoutes(api, deps.Tools)
	if deps.Users != nil {
		v1.RegisterUserRoutes(api, deps.Users)
	}
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/chat", hub.ServeChat)
}

func readyHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, p := range checks {
			if err := p.Ping(r.Context()); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("server.readyz: check failed")
				result[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(result)
	}
}
