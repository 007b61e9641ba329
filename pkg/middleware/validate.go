package middleware

import (
	"encoding/json"
	"net/http"

	"scanhub/pkg/apperror"
)

// Validator — тип, способный проверить собственную семантическую корректность
// после декодирования из JSON (непустой target, известный scan_type, и т.д.).
type Validator interface {
	Validate() error
}

// DecodeAndValidate декодирует тело запроса в dst и, если dst реализует
// Validator, проверяет его. При ошибке декодирования или валидации пишет
// ответ об ошибке и возвращает false — вызывающий обработчик должен просто
// вернуться.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, apperror.Wrap(err, apperror.CodeValidationError, "malformed request body"))
		return false
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, apperror.Wrap(err, apperror.CodeValidationError, err.Error()))
			return false
		}
	}

	return true
}
