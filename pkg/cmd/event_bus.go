package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/jmarianski/polytrans/pkg/channels/gochannel"
	"github.com/jmarianski/polytrans/pkg/eventbus"
)

// NewEventBus builds the in-process event bus shared by the manager and the
// job runner.
func NewEventBus(logger *slog.Logger) eventbus.EventBus {
	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	if err != nil {
		panic(fmt.Errorf("failed to create event bus channel: %w", err))
	}

	return eventbus.NewWatermillEventBus(pub, sub)
}
