package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/gosuda/deepsearch/internal/server/middleware"
)

type GetQuotaInput struct{}

type QuotaBody struct {
	Limit     int       `json:"limit" doc:"Requests allowed per day"`
	Used      int       `json:"used" doc:"Requests recorded today"`
	Remaining int       `json:"remaining" doc:"Requests left today"`
	Admin     bool      `json:"admin" doc:"Admins are never limited"`
	ResetsAt  time.Time `json:"resetsAt" doc:"Start of the next quota day"`
}

type GetQuotaOutput struct {
	Body QuotaBody
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListToolsOutput struct {
	Body []ToolInfo
}

func RegisterQuotaRoutes(api huma.API, gate QuotaGate) {
	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/quota",
		Summary:     "Get today's request quota for the caller",
		Tags:        []string{"Quota"},
	}, func(ctx context.Context, _ *GetQuotaInput) (*GetQuotaOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing or invalid credentials")
		}

		usage, err := gate.Status(ctx, userID)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("v1.getQuota: status lookup failed")
			return nil, huma.Error500InternalServerError("failed to load quota")
		}

		return &GetQuotaOutput{Body: QuotaBody{
			Limit:     usage.Limit,
			Used:      usage.Used,
			Remaining: usage.Remaining,
			Admin:     usage.Admin,
			ResetsAt:  usage.ResetsAt,
		}}, nil
	})
}

func RegisterToolRoutes(api huma.API, tools ToolCatalog) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/tools",
		Summary:     "List the tools available to the assistant",
		Tags:        []string{"Tools"},
	}, func(_ context.Context, _ *struct{}) (*ListToolsOutput, error) {
		specs := tools.Specs()
		out := make([]ToolInfo, 0, len(specs))
		for _, s := range specs {
			out = append(out, ToolInfo{Name: s.Name, Description: s.Description})
		}
		return &ListToolsOutput{Body: out}, nil
	})
}
