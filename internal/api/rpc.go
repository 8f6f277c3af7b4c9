package api

import (
	"encoding/json"
	"net/http"

	"github.com/songforge/agent-api/internal/api/shared"
)

// JSON-RPC 2.0 error codes used by the task endpoints.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32000
)

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcError is the JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// respondRPCResult writes a successful JSON-RPC response.
func respondRPCResult(w http.ResponseWriter, r *http.Request, id json.RawMessage, result any) {
	shared.RespondWithJSON(w, r, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

// respondRPCError writes a JSON-RPC error response. JSON-RPC errors travel
// with HTTP 200; the protocol-level code carries the failure.
func respondRPCError(w http.ResponseWriter, r *http.Request, id json.RawMessage, code int, message string) {
	shared.RespondWithJSON(w, r, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
