package dto

import "io"

// Upload is the audio received on POST /talk. It is consumed once.
type Upload struct {
	Filename string
	Reader   io.Reader
}

type RootResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}
