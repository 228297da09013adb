// Package analytics reports command usage to Segment when a write key has
// been linked into the binary. Without one every method is a no-op.
package analytics

import (
	analytics "github.com/segmentio/analytics-go"
	log "github.com/sirupsen/logrus"
)

const (
	EventRanCommand = "Ran Command"

	PropertyVersion        = "aws-cognito-flags-version"
	PropertyKeyringBackend = "backend"
	PropertyCommandName    = "command"
	PropertyProfileName    = "profile"
	PropertyProject        = "project"
	PropertyRegion         = "region"
)

var knownProperties = map[string]bool{
	PropertyVersion:        true,
	PropertyKeyringBackend: true,
	PropertyCommandName:    true,
	PropertyProfileName:    true,
	PropertyProject:        true,
	PropertyRegion:         true,
}

// Client wraps an analytics-go client together with the properties sent on
// every event.
type Client struct {
	client analytics.Client

	UserId  string
	Version string
	Backend string
}

// New returns a no-op Client when writeKey is empty.
func New(writeKey string) Client {
	if writeKey == "" {
		return Client{}
	}
	cl, err := analytics.NewWithConfig(writeKey, analytics.Config{
		BatchSize: 1,
	})
	if err != nil {
		log.Debugf("analytics disabled: %s", err)
		return Client{}
	}
	return Client{client: cl}
}

func (a Client) Enabled() bool {
	return a.client != nil
}

func (a Client) Identify() {
	if !a.Enabled() {
		return
	}
	a.client.Enqueue(analytics.Identify{
		UserId: a.UserId,
		Traits: analytics.NewTraits().Set(PropertyVersion, a.Version),
	})
}

// TrackRanCommand records one command invocation. Unknown property names
// are dropped.
func (a Client) TrackRanCommand(command string, props map[string]string) {
	if !a.Enabled() {
		return
	}
	p := analytics.NewProperties().
		Set(PropertyKeyringBackend, a.Backend).
		Set(PropertyVersion, a.Version).
		Set(PropertyCommandName, command)
	for k, v := range props {
		if !knownProperties[k] {
			log.Debugf("dropping unknown analytics property %s", k)
			continue
		}
		p.Set(k, v)
	}
	if err := a.client.Enqueue(analytics.Track{
		UserId:     a.UserId,
		Event:      EventRanCommand,
		Properties: p,
	}); err != nil {
		log.Debugf("analytics enqueue failed: %s", err)
	}
}

func (a Client) Close() {
	if !a.Enabled() {
		return
	}
	a.client.Close()
}
