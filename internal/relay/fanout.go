package relay

import "github.com/scythe504/hotseat-backend/internal"

type Broadcaster interface {
	Broadcast(code string, msg internal.Message[any])
}

// Fanout delivers each event to every broadcaster, in slice order.
type Fanout []Broadcaster

func (f Fanout) Broadcast(code string, msg internal.Message[any]) {
	for _, b := range f {
		b.Broadcast(code, msg)
	}
}
