// Package server wires the transports CrateScout runs: HTTP, gRPC and the
// snapshot maintenance scheduler.
package server

import (
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer, NewGRPCServer, NewCronServer)
