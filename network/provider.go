// Package network is the transport boundary: the scheduler never talks
// to a remote process directly, only through a Provider. The interface
// splits client and server concerns the way a client/server pair would,
// but as a create/send pair instead of HTTP verbs.
package network

import "context"

// Endpoint identifies a machine that may live in this process or
// another one reachable through the same Provider.
type Endpoint struct {
	Partition string
	MachineID string
}

// Provider is the extension point a real distributed transport would
// implement; network.LocalProvider is the only implementation this
// repository ships (spec §4.7: "in-process forwarding" is the required
// baseline, a real transport is out of scope).
type Provider interface {
	// CreateRemote asks the named partition to instantiate typeName as
	// name and returns the resulting Endpoint.
	CreateRemote(ctx context.Context, partition, typeName, name string, initPayload []byte) (Endpoint, error)

	// SendRemote delivers payload to target, returning once the
	// provider has accepted it for delivery (not once it is handled).
	SendRemote(ctx context.Context, target Endpoint, eventType string, payload []byte) error

	// LocalEndpoint reports the partition this Provider instance serves
	// requests for.
	LocalEndpoint() string
}

// CreateHandler is invoked by LocalProvider.CreateRemote to actually
// instantiate a machine; it is the seam the runtime plugs itself into
// without network importing the root package.
type CreateHandler func(ctx context.Context, typeName, name string, initPayload []byte) (string, error)

// SendHandler is invoked by LocalProvider.SendRemote to actually
// deliver a decoded event to a local machine.
type SendHandler func(ctx context.Context, machineID, eventType string, payload []byte) error
