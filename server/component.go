package server

import (
	"context"
	"fmt"

	"github.com/kbukum/meshnode/component"
)

var _ component.Describable = (*lifecycle)(nil)

// lifecycle lets the bootstrap registry start and stop a Server.
type lifecycle struct {
	*Server
}

// NewComponent adapts s to component.Component under the name "http-server".
func NewComponent(s *Server) component.Component {
	return lifecycle{s}
}

func (lifecycle) Name() string { return "http-server" }

func (l lifecycle) Health(context.Context) component.Health {
	if !l.Running() {
		return component.Unhealthy(l.Name(), "not serving")
	}
	return component.Healthy(l.Name(), l.Addr())
}

func (l lifecycle) Describe() component.Description {
	return component.Description{
		Type:    "server",
		Details: fmt.Sprintf("%s (%d routes, h2c)", l.config.Addr(), len(l.engine.Routes())),
		Port:    l.config.Port,
	}
}
