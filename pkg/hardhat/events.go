package hardhat

// Event names used for broker communication.
var (
	// Connection events.
	ConnectedEvent    = "provider:connected"
	DisconnectedEvent = "provider:disconnected"
	// Chain state events.
	SnapshotEvent = "chain:snapshot"
	RevertEvent   = "chain:revert"
	// Health events.
	UnhealthyEvent = "node:unhealthy"
)

type ConnectedCallback func(endpoint string)
type DisconnectedCallback func(endpoint string)
type SnapshotCallback func(id SnapshotID)
type RevertCallback func(id SnapshotID, ok bool)
type UnhealthyCallback func(failures int, err error)

// OnConnected subscribes to the provider connected event.
func (p *Provider) OnConnected(callback ConnectedCallback) {
	p.broker.On(ConnectedEvent, callback)
}

// OnDisconnected subscribes to the provider disconnected event.
func (p *Provider) OnDisconnected(callback DisconnectedCallback) {
	p.broker.On(DisconnectedEvent, callback)
}

// OnSnapshot subscribes to the snapshot taken event.
func (p *Provider) OnSnapshot(callback SnapshotCallback) {
	p.broker.On(SnapshotEvent, callback)
}

// OnRevert subscribes to the snapshot revert event.
func (p *Provider) OnRevert(callback RevertCallback) {
	p.broker.On(RevertEvent, callback)
}

// OnUnhealthy subscribes to the node unhealthy event, fired by the watchdog
// after consecutive failed health checks.
func (p *Provider) OnUnhealthy(callback UnhealthyCallback) {
	p.broker.On(UnhealthyEvent, callback)
}

func (p *Provider) emitConnected(endpoint string) {
	p.broker.Emit(ConnectedEvent, endpoint)
}

func (p *Provider) emitDisconnected(endpoint string) {
	p.broker.Emit(DisconnectedEvent, endpoint)
}

func (p *Provider) emitSnapshot(id SnapshotID) {
	p.broker.Emit(SnapshotEvent, id)
}

func (p *Provider) emitRevert(id SnapshotID, ok bool) {
	p.broker.Emit(RevertEvent, id, ok)
}

func (p *Provider) emitUnhealthy(failures int, err error) {
	p.broker.Emit(UnhealthyEvent, failures, err)
}
