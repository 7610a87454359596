package peer

import (
	"encoding/json"
	"fmt"
)

// rpcRequest is a JSON-RPC 2.0 request envelope. Peers only ever see string
// ids from this client.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// rpcError is the error member of a JSON-RPC 2.0 response.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope. The id is kept raw
// because peers are free to echo it as a string or a number.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// matchesID reports whether the response id equals the request id.
func (r rpcResponse) matchesID(id string) error {
	if len(r.ID) == 0 || string(r.ID) == "null" {
		return fmt.Errorf("response has no id")
	}
	var got string
	if err := json.Unmarshal(r.ID, &got); err != nil {
		return fmt.Errorf("response id %s is not a string", string(r.ID))
	}
	if got != id {
		return fmt.Errorf("response id %q does not match request id %q", got, id)
	}
	return nil
}
