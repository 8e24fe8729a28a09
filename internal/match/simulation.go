package match

import (
	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/protocol"
)

// EngineSimulation applies peer actions to a local engine.
type EngineSimulation struct {
	Engine *engine.Engine
}

func (s EngineSimulation) HandleRemoteBallDrop(m protocol.BallDrop) error {
	return s.Engine.Spawn(m.Round())
}

func (s EngineSimulation) HandleRemoteBoost(m protocol.Boost) error {
	return s.Engine.ApplyBoost(m.BallID, m.Boost)
}

func (s EngineSimulation) HandleGameStateSync(b engine.Balances) {
	s.Engine.SetBalances(b)
}

func (s EngineSimulation) HandleRemoteReset() {
	s.Engine.Reset()
}

// HandleDisconnect abandons the round; nothing from a torn match stays
// authoritative.
func (s EngineSimulation) HandleDisconnect() {
	s.Engine.Reset()
}
