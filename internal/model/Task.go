package model

import "Go2TraceSpectra/internal/core/model"

// Task is a fold-style reducer over the packet record stream.
// Reducers are independent of each other, so the manager may feed them
// sequentially or from separate goroutines.
type Task interface {
	Name() string
	ProcessPacket(rec *model.PacketRecord)
	Reset()
}
