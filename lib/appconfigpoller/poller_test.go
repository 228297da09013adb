package appconfigpoller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/appconfigdata"
	"github.com/aws/aws-sdk-go/service/appconfigdata/appconfigdataiface"
	"github.com/coder/quartz"
	"github.com/segmentio/aws-cognito-flags/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

const flagsJSON = `{"dark-mode": {"enabled": true}, "guestbook": {"enabled": false}, "beta": {"variant": "a"}}`

type countingCreds struct {
	calls int
	err   error
}

func (c *countingCreds) Retrieve(ctx context.Context) (lib.Credentials, error) {
	c.calls++
	if c.err != nil {
		return lib.Credentials{}, c.err
	}
	return lib.Credentials{AccessKeyID: fmt.Sprintf("AKID%d", c.calls)}, nil
}

type fakeAppConfig struct {
	appconfigdataiface.AppConfigDataAPI

	// returned in order, the last one repeats
	payloads [][]byte

	startErr  error
	latestErr error

	startCalls  int
	latestCalls int
	sessions    []*appconfigdata.StartConfigurationSessionInput
	tokensSeen  []string
}

func (f *fakeAppConfig) StartConfigurationSessionWithContext(ctx aws.Context, in *appconfigdata.StartConfigurationSessionInput, opts ...request.Option) (*appconfigdata.StartConfigurationSessionOutput, error) {
	f.startCalls++
	f.sessions = append(f.sessions, in)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &appconfigdata.StartConfigurationSessionOutput{
		InitialConfigurationToken: aws.String(fmt.Sprintf("initial-%d", f.startCalls)),
	}, nil
}

func (f *fakeAppConfig) GetLatestConfigurationWithContext(ctx aws.Context, in *appconfigdata.GetLatestConfigurationInput, opts ...request.Option) (*appconfigdata.GetLatestConfigurationOutput, error) {
	f.latestCalls++
	f.tokensSeen = append(f.tokensSeen, aws.StringValue(in.ConfigurationToken))
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	var payload []byte
	if len(f.payloads) > 0 {
		i := f.latestCalls - 1
		if i >= len(f.payloads) {
			i = len(f.payloads) - 1
		}
		payload = f.payloads[i]
	}
	return &appconfigdata.GetLatestConfigurationOutput{
		Configuration:              payload,
		ContentType:                aws.String("application/json"),
		NextPollConfigurationToken: aws.String(fmt.Sprintf("next-%d", f.latestCalls)),
		NextPollIntervalInSeconds:  aws.Int64(15),
	}, nil
}

func newTestPoller(t *testing.T, fake *fakeAppConfig, creds lib.CredentialSource) (*Poller, *quartz.Mock) {
	p := New(creds, Opts{Region: "eu-west-1"})
	p.newClient = func(region string, c lib.Credentials) (appconfigdataiface.AppConfigDataAPI, error) {
		assert.Equal(t, "eu-west-1", region)
		return fake, nil
	}
	clock := quartz.NewMock(t)
	p.setClock(clock)
	return p, clock
}

func TestGetConfigCacheHit(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	creds := &countingCreds{}
	p, clock := newTestPoller(t, fake, creds)
	ctx := context.Background()

	first, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, flagsJSON, string(first))

	clock.Advance(5 * time.Second)
	second, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, fake.startCalls)
	assert.Equal(t, 1, fake.latestCalls)
	assert.Equal(t, 1, creds.calls, "a cache hit needs no credentials")

	require.Len(t, fake.sessions, 1)
	assert.Equal(t, "app1", aws.StringValue(fake.sessions[0].ApplicationIdentifier))
	assert.Equal(t, "prod", aws.StringValue(fake.sessions[0].EnvironmentIdentifier))
	assert.Equal(t, "cfg1", aws.StringValue(fake.sessions[0].ConfigurationProfileIdentifier))
	assert.Nil(t, fake.sessions[0].RequiredMinimumPollIntervalInSeconds)
}

func TestGetConfigReusesSessionToken(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(`{"v": 1}`), []byte(`{"v": 2}`)}}
	p, clock := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()

	_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	blob, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, `{"v": 2}`, string(blob))

	assert.Equal(t, 1, fake.startCalls)
	assert.Equal(t, 2, fake.latestCalls)
	assert.Equal(t, []string{"initial-1", "next-1"}, fake.tokensSeen)
}

func TestGetConfigNewSessionAfterAnHour(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, clock := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()

	_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.startCalls)
	assert.Equal(t, []string{"initial-1", "initial-2"}, fake.tokensSeen)
}

func TestGetConfigSeparateKeys(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()

	_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	_, err = p.GetConfig(ctx, "app1", "beta", "cfg1")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.startCalls)
	assert.Equal(t, 2, fake.latestCalls)
}

func TestGetConfigEmptyPayloadKeepsContent(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON), nil}}
	p, clock := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()
	key := lib.ConfigKey("app1", "prod", "cfg1")

	_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	blob, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, flagsJSON, string(blob))

	token, ok := p.tokens.get(key)
	require.True(t, ok)
	assert.Equal(t, "next-2", token)

	// the served content is fresh again
	clock.Advance(10 * time.Second)
	_, err = p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.latestCalls)
}

func TestGetConfigReturnsCopy(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()

	fresh, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	copy(fresh, "XXXX")

	hit, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, flagsJSON, string(hit))
	copy(hit, "YYYY")

	again, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, flagsJSON, string(again))

	enabled, err := p.GetFeature(ctx, "app1", "prod", "cfg1", "dark-mode")
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 1, fake.latestCalls)
}

func TestGetConfigStaleContentIsCopied(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON), nil}}
	p, clock := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()

	_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	stale, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	copy(stale, "XXXX")

	blob, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, flagsJSON, string(blob))
	assert.Equal(t, 2, fake.latestCalls)
}

func TestGetConfigEmptyPayloadNothingCached(t *testing.T) {
	fake := &fakeAppConfig{}
	p, _ := newTestPoller(t, fake, &countingCreds{})

	_, err := p.GetConfig(context.Background(), "app1", "prod", "cfg1")
	var brokerErr *lib.BrokerError
	require.True(t, xerrors.As(err, &brokerErr))
	assert.True(t, xerrors.Is(err, lib.ErrEmptyConfiguration))
}

func TestGetConfigErrors(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()

	t.Run("credentials", func(t *testing.T) {
		fake := &fakeAppConfig{}
		authErr := &lib.AuthError{Step: "GetId", Err: boom}
		p, _ := newTestPoller(t, fake, &countingCreds{err: authErr})

		_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
		var got *lib.AuthError
		require.True(t, xerrors.As(err, &got))
		assert.Equal(t, 0, fake.startCalls)
	})

	t.Run("start session", func(t *testing.T) {
		fake := &fakeAppConfig{startErr: boom}
		p, _ := newTestPoller(t, fake, &countingCreds{})

		_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
		var brokerErr *lib.BrokerError
		require.True(t, xerrors.As(err, &brokerErr))
		assert.Equal(t, "StartConfigurationSession", brokerErr.Op)
		assert.Equal(t, 0, fake.latestCalls)
	})

	t.Run("latest configuration drops the token", func(t *testing.T) {
		fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
		p, clock := newTestPoller(t, fake, &countingCreds{})

		_, err := p.GetConfig(ctx, "app1", "prod", "cfg1")
		require.NoError(t, err)

		fake.latestErr = boom
		clock.Advance(30 * time.Second)
		_, err = p.GetConfig(ctx, "app1", "prod", "cfg1")
		var brokerErr *lib.BrokerError
		require.True(t, xerrors.As(err, &brokerErr))
		assert.Equal(t, "GetLatestConfiguration", brokerErr.Op)
		assert.True(t, xerrors.Is(err, boom))

		fake.latestErr = nil
		_, err = p.GetConfig(ctx, "app1", "prod", "cfg1")
		require.NoError(t, err)
		assert.Equal(t, 2, fake.startCalls)
	})
}

func TestMinimumPollInterval(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})
	p.opts.MinimumPollInterval = time.Minute

	_, err := p.GetConfig(context.Background(), "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), aws.Int64Value(fake.sessions[0].RequiredMinimumPollIntervalInSeconds))
}

func TestGetFeature(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})
	ctx := context.Background()

	enabled, err := p.GetFeature(ctx, "app1", "prod", "cfg1", "dark-mode")
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = p.GetFeature(ctx, "app1", "prod", "cfg1", "guestbook")
	require.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = p.GetFeature(ctx, "app1", "prod", "cfg1", "beta")
	require.NoError(t, err)
	assert.False(t, enabled)

	_, err = p.GetFeature(ctx, "app1", "prod", "cfg1", "nope")
	var missing *lib.MissingFlagError
	require.True(t, xerrors.As(err, &missing))
	assert.Equal(t, "nope", missing.Flag)
	assert.Equal(t, "app1:prod:cfg1", missing.Key)

	assert.Equal(t, 1, fake.latestCalls)
}

func TestGetFeatureFlagNameWithPathCharacters(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(`{"new.checkout": {"enabled": true}, "new": {"checkout": {"enabled": false}}}`)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})

	enabled, err := p.GetFeature(context.Background(), "app1", "prod", "cfg1", "new.checkout")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestParseErrors(t *testing.T) {
	ctx := context.Background()

	for _, payload := range []string{`not json`, `[1, 2]`} {
		t.Run(payload, func(t *testing.T) {
			fake := &fakeAppConfig{payloads: [][]byte{[]byte(payload)}}
			p, _ := newTestPoller(t, fake, &countingCreds{})

			_, err := p.GetFeature(ctx, "app1", "prod", "cfg1", "dark-mode")
			var parseErr *lib.ParseError
			require.True(t, xerrors.As(err, &parseErr))

			_, err = p.Config(ctx, "app1", "prod", "cfg1")
			require.True(t, xerrors.As(err, &parseErr))
			assert.Equal(t, "app1:prod:cfg1", parseErr.Key)
		})
	}
}

func TestConfig(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})

	config, err := p.Config(context.Background(), "app1", "prod", "cfg1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"enabled": true}, config["dark-mode"])
	assert.Len(t, config, 3)
}

func TestWatch(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(`{"v": 1}`), nil, []byte(`{"v": 1}`), []byte(`{"v": 2}`)}}
	p := New(&countingCreds{}, Opts{Region: "eu-west-1", ConfigTTL: time.Millisecond})
	p.newClient = func(region string, c lib.Credentials) (appconfigdataiface.AppConfigDataAPI, error) {
		return fake, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := errors.New("done")
	var seen []string
	err := p.Watch(ctx, "app1", "prod", "cfg1", 5*time.Millisecond, func(blob []byte) error {
		seen = append(seen, string(blob))
		if len(seen) == 2 {
			return done
		}
		return nil
	})
	assert.Equal(t, done, err)
	assert.Equal(t, []string{`{"v": 1}`, `{"v": 2}`}, seen)
}

func TestWatchRejectsNonPositiveInterval(t *testing.T) {
	fake := &fakeAppConfig{payloads: [][]byte{[]byte(flagsJSON)}}
	p, _ := newTestPoller(t, fake, &countingCreds{})

	for _, interval := range []time.Duration{0, -time.Second} {
		err := p.Watch(context.Background(), "app1", "prod", "cfg1", interval, func([]byte) error {
			t.Fatal("fn must not be called")
			return nil
		})
		assert.Error(t, err)
	}
	assert.Equal(t, 0, fake.latestCalls)
}
