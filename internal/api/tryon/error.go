package tryon

import (
	"TryOnService/pkg/response"
	"net/http"
)

var (
	ErrMissingModelURL     = response.NewError(http.StatusBadRequest, "model url is required")
	ErrInvalidModelURL     = response.NewError(http.StatusBadRequest, "model url is not supported")
	ErrInvalidDefaultScale = response.NewError(http.StatusBadRequest, "default scale must be positive")
	ErrInvalidSize         = response.NewError(http.StatusBadRequest, "invalid size setting")
	ErrInvalidMessage      = response.NewError(http.StatusBadRequest, "invalid session message")
	ErrAssetLoad           = response.NewError(http.StatusUnprocessableEntity, "failed to load model asset")
	ErrAssetTooLarge       = response.NewError(http.StatusRequestEntityTooLarge, "model asset too large")
	ErrInvalidFileType     = response.NewError(http.StatusBadRequest, "invalid model file type")
	ErrFileTooLarge        = response.NewError(http.StatusRequestEntityTooLarge, "model file too large")
	ErrFailedToUpload      = response.NewError(http.StatusInternalServerError, "failed to upload model")
	ErrProfileNotFound     = response.NewError(http.StatusNotFound, "try-on profile not found")
	ErrProfileUnavailable  = response.NewError(http.StatusServiceUnavailable, "product catalog unavailable")
	ErrStorageUnavailable  = response.NewError(http.StatusServiceUnavailable, "model storage unavailable")
	ErrDetectorUnavailable = response.NewError(http.StatusServiceUnavailable, "landmark detector unavailable")
	ErrSessionClosed       = response.NewError(http.StatusGone, "try-on session closed")
)
