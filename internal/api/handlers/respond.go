package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docchat/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto HTTP statuses. Internal details
// stay out of the response body except for validation messages, which are
// user-facing by construction.
func writeError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	if status >= 500 {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrAuthRequired):
		return http.StatusUnauthorized, "로그인이 필요합니다."
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "리소스를 찾을 수 없거나 접근 권한이 없습니다."
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrIngestionConflict):
		return http.StatusConflict, "문서 처리가 이미 진행 중입니다."
	case errors.Is(err, core.ErrModerationService):
		return http.StatusServiceUnavailable, "안전성 검사 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	default:
		return http.StatusInternalServerError, "요청 처리 중 오류가 발생했습니다."
	}
}
