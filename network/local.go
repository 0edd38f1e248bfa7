package network

import (
	"context"
	"fmt"
)

// LocalProvider forwards create_remote/send_remote calls to in-process
// handlers instead of a real transport: every "partition" it knows about
// is this same process, so create_remote/send_remote degrade to direct
// calls. This is the only Provider this repository ships; a real
// distributed transport is an explicit Non-goal.
type LocalProvider struct {
	partition string
	onCreate  CreateHandler
	onSend    SendHandler
}

// NewLocalProvider returns a Provider that reports partition as its
// local endpoint and forwards every call to onCreate/onSend.
func NewLocalProvider(partition string, onCreate CreateHandler, onSend SendHandler) *LocalProvider {
	return &LocalProvider{partition: partition, onCreate: onCreate, onSend: onSend}
}

func (p *LocalProvider) LocalEndpoint() string { return p.partition }

func (p *LocalProvider) CreateRemote(ctx context.Context, partition, typeName, name string, initPayload []byte) (Endpoint, error) {
	if partition != "" && partition != p.partition {
		return Endpoint{}, fmt.Errorf("network: local provider cannot reach partition %q", partition)
	}
	if p.onCreate == nil {
		return Endpoint{}, fmt.Errorf("network: local provider has no create handler registered")
	}
	id, err := p.onCreate(ctx, typeName, name, initPayload)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Partition: p.partition, MachineID: id}, nil
}

func (p *LocalProvider) SendRemote(ctx context.Context, target Endpoint, eventType string, payload []byte) error {
	if target.Partition != "" && target.Partition != p.partition {
		return fmt.Errorf("network: local provider cannot reach partition %q", target.Partition)
	}
	if p.onSend == nil {
		return fmt.Errorf("network: local provider has no send handler registered")
	}
	return p.onSend(ctx, target.MachineID, eventType, payload)
}
