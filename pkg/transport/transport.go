package transport

import (
	"github.com/richard-senior/matchpredictor/pkg/protocol"
)

// Transport defines the interface for JSON-RPC communication methods
type Transport interface {
	ReadRequest() (*protocol.JsonRpcRequest, error)
	WriteResponse(*protocol.JsonRpcResponse) error
}
