package httputil

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
)

// APIResponse is the envelope shared by every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONData writes a success envelope carrying data.
func JSONData(ctx *fasthttp.RequestCtx, data interface{}, statusCode int) {
	writeJSON(ctx, APIResponse{Success: true, Data: data}, statusCode)
}

// JSONError writes a failure envelope.
func JSONError(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	writeJSON(ctx, APIResponse{Success: false, Message: message}, statusCode)
}

func writeJSON(ctx *fasthttp.RequestCtx, resp APIResponse, statusCode int) {
	body, _ := json.Marshal(resp)
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// ParseJSONBody decodes the request body into v. The body size is already
// bounded by the server's MaxRequestBodySize.
func ParseJSONBody(ctx *fasthttp.RequestCtx, v interface{}) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return fmt.Errorf("request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
