// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package notify

import (
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewChannelBus returns a bus over Watermill's in-process channel
// Pub/Sub. This is the default transport for single-instance
// deployments and for tests; nothing leaves the process.
func NewChannelBus() *Bus {
	ps := gochannel.NewGoChannel(gochannel.Config{
		// Live feed subscribers attach after startup and only care
		// about events from then on, so no persistence or replay.
		OutputChannelBuffer: 64,
	}, NewWatermillLogger())
	return NewBus(ps, ps)
}
