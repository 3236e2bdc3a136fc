package handler

import (
	"net/http"

	"github.com/boddenberg/finledger-go/internal/service"

	"go.uber.org/zap"
)

type suggestionRequest struct {
	Language string `json:"language"`
}

func suggestionsHandler(svc *service.SuggestionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/suggestions")
		defer span.End()

		var req suggestionRequest
		if err := decodeBody(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s, err := svc.Suggest(ctx, UsernameFromContext(ctx), req.Language)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
