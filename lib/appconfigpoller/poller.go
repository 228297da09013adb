// Package appconfigpoller reads configuration profiles from AppConfig using
// anonymous credentials.
//
// Two caches are kept per application:environment:configuration key: the
// configuration session token (one hour) and the configuration content
// (thirty seconds). A content cache hit costs nothing; a miss polls
// GetLatestConfiguration with the cached session token, starting a new
// session only when no live token exists.
package appconfigpoller

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/appconfigdata"
	"github.com/aws/aws-sdk-go/service/appconfigdata/appconfigdataiface"
	"github.com/coder/quartz"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/aws-cognito-flags/lib"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
)

const broker = "appconfigdata"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Opts struct {
	Region string

	// defaults to lib.DefaultConfigTTL
	ConfigTTL time.Duration
	// defaults to lib.DefaultSessionTTL
	SessionTTL time.Duration

	// passed to StartConfigurationSession when set
	MinimumPollInterval time.Duration

	Log logrus.FieldLogger
}

func (o *Opts) ApplyDefaults() *Opts {
	if o.ConfigTTL == 0 {
		o.ConfigTTL = lib.DefaultConfigTTL
	}
	if o.SessionTTL == 0 {
		o.SessionTTL = lib.DefaultSessionTTL
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return o
}

type Poller struct {
	opts  Opts
	creds lib.CredentialSource
	clock quartz.Clock

	newClient func(region string, creds lib.Credentials) (appconfigdataiface.AppConfigDataAPI, error)

	tokens  *ttlCache[string, string]
	configs *ttlCache[string, []byte]
}

func New(creds lib.CredentialSource, opts Opts) *Poller {
	opts.ApplyDefaults()
	return &Poller{
		opts:      opts,
		creds:     creds,
		clock:     quartz.NewReal(),
		newClient: newClient,
		tokens:    newTTLCache[string, string](opts.SessionTTL),
		configs:   newTTLCache[string, []byte](opts.ConfigTTL),
	}
}

func newClient(region string, creds lib.Credentials) (appconfigdataiface.AppConfigDataAPI, error) {
	sess, err := lib.NewSession(region, creds.Static())
	if err != nil {
		return nil, err
	}
	return appconfigdata.New(sess), nil
}

// setClock swaps the clock of the poller and both caches.
func (p *Poller) setClock(clock quartz.Clock) {
	p.clock = clock
	p.tokens.clock = clock
	p.configs.clock = clock
}

// GetConfig returns the raw configuration content for a configuration
// profile, from cache when it is younger than the content TTL.
func (p *Poller) GetConfig(ctx context.Context, application, environment, configuration string) ([]byte, error) {
	key := lib.ConfigKey(application, environment, configuration)
	if blob, ok := p.configs.get(key); ok {
		p.opts.Log.Debugf("config get `%s`: hit", key)
		return bytes.Clone(blob), nil
	}
	p.opts.Log.Debugf("config get `%s`: miss", key)
	return p.refresh(ctx, key, application, environment, configuration)
}

func (p *Poller) refresh(ctx context.Context, key, application, environment, configuration string) ([]byte, error) {
	log := p.opts.Log

	creds, err := p.creds.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	client, err := p.newClient(p.opts.Region, creds)
	if err != nil {
		return nil, &lib.BrokerError{Broker: broker, Op: "NewSession", Err: err}
	}

	token, ok := p.tokens.get(key)
	if !ok {
		log.Debugf("session get `%s`: miss, starting configuration session", key)
		input := &appconfigdata.StartConfigurationSessionInput{
			ApplicationIdentifier:          aws.String(application),
			EnvironmentIdentifier:          aws.String(environment),
			ConfigurationProfileIdentifier: aws.String(configuration),
		}
		if p.opts.MinimumPollInterval > 0 {
			input.RequiredMinimumPollIntervalInSeconds = aws.Int64(int64(p.opts.MinimumPollInterval.Seconds()))
		}
		session, err := client.StartConfigurationSessionWithContext(ctx, input)
		if err != nil {
			return nil, &lib.BrokerError{Broker: broker, Op: "StartConfigurationSession", Err: err}
		}
		token = aws.StringValue(session.InitialConfigurationToken)
	} else {
		log.Debugf("session get `%s`: hit", key)
	}

	out, err := client.GetLatestConfigurationWithContext(ctx, &appconfigdata.GetLatestConfigurationInput{
		ConfigurationToken: aws.String(token),
	})
	if err != nil {
		// the token may have been consumed or expired server side; make the
		// next call start over with a new session
		p.tokens.delete(key)
		return nil, &lib.BrokerError{Broker: broker, Op: "GetLatestConfiguration", Err: err}
	}

	// the next token always replaces the one we just used, changed content
	// or not
	if next := aws.StringValue(out.NextPollConfigurationToken); next != "" {
		p.tokens.set(key, next)
	} else {
		p.tokens.delete(key)
	}
	log.Debugf("config poll `%s`: %d bytes, next poll in %ds", key, len(out.Configuration), aws.Int64Value(out.NextPollIntervalInSeconds))

	if len(out.Configuration) == 0 {
		prev, ok := p.configs.stale(key)
		if !ok {
			return nil, &lib.BrokerError{Broker: broker, Op: "GetLatestConfiguration", Err: lib.ErrEmptyConfiguration}
		}
		log.Debugf("config get `%s`: unchanged, serving cached content", key)
		p.configs.set(key, prev)
		return bytes.Clone(prev), nil
	}

	// callers get their own copy; the cached blob is never handed out
	p.configs.set(key, bytes.Clone(out.Configuration))
	return out.Configuration, nil
}

// Config returns the configuration content decoded as a JSON object.
func (p *Poller) Config(ctx context.Context, application, environment, configuration string) (map[string]interface{}, error) {
	blob, err := p.GetConfig(ctx, application, environment, configuration)
	if err != nil {
		return nil, err
	}
	var config map[string]interface{}
	if err := json.Unmarshal(blob, &config); err != nil {
		return nil, &lib.ParseError{Key: lib.ConfigKey(application, environment, configuration), Err: err}
	}
	return config, nil
}

// GetFeature reports the `enabled` field of a flag in an AppConfig feature
// flag profile. A flag without an `enabled` field is reported as disabled.
func (p *Poller) GetFeature(ctx context.Context, application, environment, configuration, flagName string) (bool, error) {
	blob, err := p.GetConfig(ctx, application, environment, configuration)
	if err != nil {
		return false, err
	}

	key := lib.ConfigKey(application, environment, configuration)
	if !gjson.ValidBytes(blob) {
		return false, &lib.ParseError{Key: key}
	}
	root := gjson.ParseBytes(blob)
	if !root.IsObject() {
		return false, &lib.ParseError{Key: key}
	}

	flag, ok := root.Map()[flagName]
	if !ok {
		return false, &lib.MissingFlagError{Key: key, Flag: flagName}
	}
	return flag.Get("enabled").Bool(), nil
}

// Watch calls fn with the configuration content on the first poll and every
// time it changes afterwards, polling every interval. It returns when ctx is
// done, a poll fails, or fn returns an error.
func (p *Poller) Watch(ctx context.Context, application, environment, configuration string, interval time.Duration, fn func([]byte) error) error {
	if interval <= 0 {
		return xerrors.Errorf("watch interval must be positive, got %s", interval)
	}
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	for {
		blob, err := p.GetConfig(ctx, application, environment, configuration)
		if err != nil {
			return err
		}
		if last == nil || !bytes.Equal(last, blob) {
			if err := fn(blob); err != nil {
				return err
			}
			last = blob
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
