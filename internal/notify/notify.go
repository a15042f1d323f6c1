// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package notify publishes domain events over a Watermill bus.
//
// Publishing is strictly fire-and-forget: a failed publish is logged
// and counted, never returned, so a broken bus can degrade delivery
// but cannot fail a rating write or a group finalization. The default
// transport is an in-process channel Pub/Sub; multi-instance
// deployments switch to NATS JetStream by building with the nats tag.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

// ErrNATSNotBuilt is returned when the NATS transport is requested but
// the binary was built without the nats tag.
var ErrNATSNotBuilt = errors.New("notify: NATS transport requires building with -tags nats")

// Topics carried by the bus.
const (
	// TopicRecommendations announces a freshly generated candidate set
	// for a group.
	TopicRecommendations = "convene.recommendations.generated"

	// TopicGroupVotes announces every cast or replaced ballot.
	TopicGroupVotes = "convene.group.votes"

	// TopicGroupFinalized announces a group reaching place_selected.
	TopicGroupFinalized = "convene.group.finalized"

	// TopicPredictor announces model lifecycle signals, currently only
	// that a retraining run is due.
	TopicPredictor = "convene.predictor"
)

// Event types within a topic.
const (
	TypeRecommendationsGenerated = "recommendations.generated"
	TypeVoteCast                 = "vote.cast"
	TypeGroupFinalized           = "group.finalized"
	TypePredictorRefreshDue      = "predictor.refresh.due"
)

// Event is the single wire schema for every topic. Fields that do not
// apply to an event type stay at their zero value and are omitted.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`

	GroupID   string `json:"groupId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	PlaceID   string `json:"placeId,omitempty"`
	PlaceName string `json:"placeName,omitempty"`

	// Candidates counts the recommended places on a recommendations
	// event. Ballots and Members report voting progress on vote events.
	Candidates int `json:"candidates,omitempty"`
	Ballots    int `json:"ballots,omitempty"`
	Members    int `json:"members,omitempty"`

	// Trigger distinguishes auto from manual finalization.
	Trigger string `json:"trigger,omitempty"`
}

// Bus wraps a Watermill publisher/subscriber pair behind the
// fire-and-forget contract. Construct with NewChannelBus or NewNATSBus.
type Bus struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewBus wraps an existing publisher/subscriber pair. Used by the
// transport constructors and by tests that inject fakes.
func NewBus(pub message.Publisher, sub message.Subscriber) *Bus {
	return &Bus{pub: pub, sub: sub}
}

// Publish sends ev on topic, swallowing any failure. A zero ID or
// OccurredAt is filled in.
func (b *Bus) Publish(topic string, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Str("type", ev.Type).
			Msg("Failed to encode event")
		return
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("type", ev.Type)
	if err := b.pub.Publish(topic, msg); err != nil {
		logging.Warn().Err(err).Str("topic", topic).Str("type", ev.Type).
			Msg("Failed to publish event, dropping")
		return
	}
	metrics.RecordEventPublished(topic)
}

// Subscribe returns the message stream for topic.
func (b *Bus) Subscribe(topic string) (<-chan *message.Message, error) {
	// Subscriptions outlive any single request; the subscriber itself
	// closes the channel on bus shutdown.
	return b.sub.Subscribe(context.Background(), topic)
}

// Close shuts down both sides of the bus. In-process transports share
// one Pub/Sub for both roles, so double-close must be tolerated by the
// transport (gochannel and the NATS bindings both are).
func (b *Bus) Close() error {
	pubErr := b.pub.Close()
	if subErr := b.sub.Close(); subErr != nil && pubErr == nil {
		pubErr = subErr
	}
	return pubErr
}

// Decode parses an event payload. Malformed payloads count a metric so
// a schema drift between instances is visible.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		metrics.EventsParseFailed.Inc()
		return Event{}, err
	}
	return ev, nil
}

// RecommendationsGenerated publishes a candidate-set announcement.
func (b *Bus) RecommendationsGenerated(g *models.Group) {
	b.Publish(TopicRecommendations, Event{
		Type:       TypeRecommendationsGenerated,
		GroupID:    g.ID,
		Candidates: len(g.RecommendedPlaces),
		Members:    len(g.Members),
	})
}

// VoteCast publishes a ballot announcement with voting progress.
func (b *Bus) VoteCast(g *models.Group, memberID string) {
	b.Publish(TopicGroupVotes, Event{
		Type:    TypeVoteCast,
		GroupID: g.ID,
		UserID:  memberID,
		Ballots: len(g.Votes),
		Members: len(g.Members),
	})
}

// GroupFinalized publishes a finalization announcement. trigger is
// "auto" or "manual".
func (b *Bus) GroupFinalized(g *models.Group, trigger string) {
	ev := Event{
		Type:    TypeGroupFinalized,
		GroupID: g.ID,
		Trigger: trigger,
	}
	if g.FinalPlace != nil {
		ev.PlaceID = g.FinalPlace.PlaceID
		ev.PlaceName = g.FinalPlace.PlaceName
	}
	b.Publish(TopicGroupFinalized, ev)
}

// PredictorRefreshDue publishes a retraining trigger.
func (b *Bus) PredictorRefreshDue() {
	b.Publish(TopicPredictor, Event{Type: TypePredictorRefreshDue})
	metrics.ModelRefreshesDue.Inc()
}

// watermillLogger bridges Watermill's logging into zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill.LoggerAdapter writing through
// the package logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return watermillLogger{}
}

func (l watermillLogger) attach(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.attach(logging.Error().Err(err), fields).Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.attach(logging.Info(), fields).Msg(msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.attach(logging.Debug(), fields).Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.attach(logging.Trace(), fields).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return watermillLogger{fields: merged}
}
