package http

type ErrorResponse struct {
	Error string `json:"error"`
}
