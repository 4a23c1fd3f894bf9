package api

import "time"

// Map is a convenience type for map[string]any
type Map map[string]any

// ApiResponseMeta contains metadata about the API response
type ApiResponseMeta struct {
	RequestID string     `json:"requestId,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Total     int        `json:"total,omitempty"`
}

// ApiError represents an error in the API response
type ApiError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

// ApiResponse is the standard API response structure
type ApiResponse struct {
	Success bool             `json:"success"`
	Data    any              `json:"data,omitempty"`
	Error   *ApiError        `json:"error,omitempty"`
	Meta    *ApiResponseMeta `json:"meta,omitempty"`
}
