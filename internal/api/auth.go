package api

import (
	"net/http"

	"scanhub/pkg/apperror"
	"scanhub/pkg/middleware"
)

type tokenRequest struct {
	Username string `json:"username"`
}

func (req tokenRequest) Validate() error {
	if req.Username == "" {
		return apperror.New(apperror.CodeValidationError, "username is required")
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// issueToken выдаёт access-токен для предъявленного имени пользователя.
// Операторский каталог учётных данных вне рамок ядра (§1 Out of scope);
// это тонкая обёртка над passhash.JWTManager для локального тестирования
// защищённых маршрутов.
func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	if h.jwtManager == nil {
		middleware.WriteError(w, apperror.New(apperror.CodeUnimplemented, "authentication is disabled"))
		return
	}

	var req tokenRequest
	if !middleware.DecodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(req.Username, req.Username, "operator")
	if err != nil {
		middleware.WriteError(w, apperror.Wrap(err, apperror.CodeInternal, "failed to generate token"))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		ExpiresIn:   h.jwtManager.GetAccessTokenExpiry(),
		TokenType:   "Bearer",
	})
}
