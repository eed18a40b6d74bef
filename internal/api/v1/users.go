package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/server/middleware"
)

type MeBody struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
}

type GetMeOutput struct {
	Body MeBody
}

func RegisterUserRoutes(api huma.API, users UserDirectory) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the caller's profile",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*GetMeOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing or invalid credentials")
		}

		u, err := users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to load user")
		}

		return &GetMeOutput{Body: MeBody{
			ID:        u.ID.String(),
			Email:     u.Email,
			Name:      u.Name,
			Admin:     u.IsAdmin,
			CreatedAt: u.CreatedAt,
		}}, nil
	})
}
