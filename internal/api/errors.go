package api

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest        = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrNotFound          = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrInternalServer    = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrSessionBusy       = &AppError{Code: http.StatusConflict, Message: "a question is already being answered for this session"}
	ErrContextOverflow   = &AppError{Code: http.StatusRequestEntityTooLarge, Message: "question exceeds the context budget"}
	ErrUnsupportedFormat = &AppError{Code: http.StatusUnsupportedMediaType, Message: "unsupported dataset format"}
	ErrModelUpstream     = &AppError{Code: http.StatusBadGateway, Message: "model invocation failed"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
