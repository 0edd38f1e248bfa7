package network_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/network"
)

func TestLocalProviderCreateRemoteForwardsToHandler(t *testing.T) {
	var gotType, gotName string
	p := network.NewLocalProvider("p1",
		func(ctx context.Context, typeName, name string, initPayload []byte) (string, error) {
			gotType, gotName = typeName, name
			return "machine-1", nil
		},
		nil,
	)

	ep, err := p.CreateRemote(context.Background(), "p1", "Worker", "w", nil)
	require.NoError(t, err)
	assert.Equal(t, "p1", ep.Partition)
	assert.Equal(t, "machine-1", ep.MachineID)
	assert.Equal(t, "Worker", gotType)
	assert.Equal(t, "w", gotName)
}

func TestLocalProviderCreateRemoteAcceptsEmptyPartitionAsLocal(t *testing.T) {
	p := network.NewLocalProvider("p1",
		func(ctx context.Context, typeName, name string, initPayload []byte) (string, error) {
			return "id", nil
		},
		nil,
	)
	_, err := p.CreateRemote(context.Background(), "", "Worker", "w", nil)
	assert.NoError(t, err)
}

func TestLocalProviderCreateRemoteRejectsForeignPartition(t *testing.T) {
	p := network.NewLocalProvider("p1", func(ctx context.Context, typeName, name string, initPayload []byte) (string, error) {
		return "id", nil
	}, nil)

	_, err := p.CreateRemote(context.Background(), "p2", "Worker", "w", nil)
	assert.Error(t, err)
}

func TestLocalProviderCreateRemoteErrorsWithoutHandler(t *testing.T) {
	p := network.NewLocalProvider("p1", nil, nil)
	_, err := p.CreateRemote(context.Background(), "p1", "Worker", "w", nil)
	assert.Error(t, err)
}

func TestLocalProviderSendRemoteForwardsToHandler(t *testing.T) {
	var gotMachine, gotType string
	p := network.NewLocalProvider("p1", nil,
		func(ctx context.Context, machineID, eventType string, payload []byte) error {
			gotMachine, gotType = machineID, eventType
			return nil
		},
	)

	err := p.SendRemote(context.Background(), network.Endpoint{Partition: "p1", MachineID: "m1"}, "Ping", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "m1", gotMachine)
	assert.Equal(t, "Ping", gotType)
}

func TestLocalProviderSendRemoteRejectsForeignPartition(t *testing.T) {
	p := network.NewLocalProvider("p1", nil, func(ctx context.Context, machineID, eventType string, payload []byte) error {
		return nil
	})
	err := p.SendRemote(context.Background(), network.Endpoint{Partition: "p2", MachineID: "m1"}, "Ping", nil)
	assert.Error(t, err)
}

func TestLocalProviderLocalEndpointReportsPartition(t *testing.T) {
	p := network.NewLocalProvider("p1", nil, nil)
	assert.Equal(t, "p1", p.LocalEndpoint())
}
