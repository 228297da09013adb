// Package evidently evaluates CloudWatch Evidently features and records
// custom events for a single project, with credentials exchanged fresh for
// every request.
package evidently

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatchevidently"
	"github.com/aws/aws-sdk-go/service/cloudwatchevidently/cloudwatchevidentlyiface"
	"github.com/coder/quartz"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/aws-cognito-flags/lib"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const broker = "evidently"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EvaluationResult is the broker's verdict, returned as is.
type EvaluationResult = cloudwatchevidently.EvaluateFeatureOutput

type Opts struct {
	Region  string
	Project string

	// used when EvaluateFeature is called without a feature name
	Feature string

	Log logrus.FieldLogger
}

func (o *Opts) ApplyDefaults() *Opts {
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return o
}

func (o *Opts) Validate() error {
	if o.Region == "" {
		return &lib.ErrMissingOpt{Name: "Region"}
	}
	if o.Project == "" {
		return &lib.ErrMissingOpt{Name: "Project"}
	}
	return nil
}

type Evaluator struct {
	opts  Opts
	creds lib.CredentialSource
	clock quartz.Clock

	newClient func(region string, creds lib.Credentials) (cloudwatchevidentlyiface.CloudWatchEvidentlyAPI, error)
}

func New(creds lib.CredentialSource, opts Opts) (*Evaluator, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		opts:      opts,
		creds:     creds,
		clock:     quartz.NewReal(),
		newClient: newClient,
	}, nil
}

func newClient(region string, creds lib.Credentials) (cloudwatchevidentlyiface.CloudWatchEvidentlyAPI, error) {
	sess, err := lib.NewSession(region, creds.Static())
	if err != nil {
		return nil, err
	}
	return cloudwatchevidently.New(sess), nil
}

func (e *Evaluator) client(ctx context.Context) (cloudwatchevidentlyiface.CloudWatchEvidentlyAPI, error) {
	creds, err := e.creds.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	client, err := e.newClient(e.opts.Region, creds)
	if err != nil {
		return nil, &lib.BrokerError{Broker: broker, Op: "NewSession", Err: err}
	}
	return client, nil
}

// EvaluateFeature asks Evidently which variation of feature entityID gets.
// An empty feature falls back to Opts.Feature.
func (e *Evaluator) EvaluateFeature(ctx context.Context, entityID, feature string) (*EvaluationResult, error) {
	if feature == "" {
		feature = e.opts.Feature
	}
	if feature == "" {
		return nil, &lib.ErrMissingOpt{Name: "Feature"}
	}

	client, err := e.client(ctx)
	if err != nil {
		return nil, err
	}

	e.opts.Log.Debugf("Evaluating feature %s/%s for %s", e.opts.Project, feature, entityID)
	out, err := client.EvaluateFeatureWithContext(ctx, &cloudwatchevidently.EvaluateFeatureInput{
		EntityId: aws.String(entityID),
		Feature:  aws.String(feature),
		Project:  aws.String(e.opts.Project),
	})
	if err != nil {
		return nil, &lib.BrokerError{Broker: broker, Op: "EvaluateFeature", Err: err}
	}
	return out, nil
}

type userDetails struct {
	EntityID  string `json:"entityId"`
	SessionID string `json:"sessionId"`
}

type eventData struct {
	Details     map[string]interface{} `json:"details"`
	UserDetails userDetails            `json:"userDetails"`
}

// ErrEventRejected is wrapped when Evidently accepts the request but rejects
// the event itself.
var ErrEventRejected = xerrors.New("event rejected")

// RecordEvent sends one custom event for the project and waits for
// Evidently to acknowledge it. The payload ends up under "details", with the
// entity and session ids under "userDetails", which is where Evidently
// metric rules look for them.
func (e *Evaluator) RecordEvent(ctx context.Context, entityID, sessionID string, payload map[string]interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(eventData{
		Details: payload,
		UserDetails: userDetails{
			EntityID:  entityID,
			SessionID: sessionID,
		},
	})
	if err != nil {
		return xerrors.Errorf("encoding event: %w", err)
	}

	client, err := e.client(ctx)
	if err != nil {
		return err
	}

	e.opts.Log.Debugf("Putting custom event for %s in project %s", entityID, e.opts.Project)
	out, err := client.PutProjectEventsWithContext(ctx, &cloudwatchevidently.PutProjectEventsInput{
		Project: aws.String(e.opts.Project),
		Events: []*cloudwatchevidently.Event{{
			Data:      aws.String(string(data)),
			Timestamp: aws.Time(e.clock.Now()),
			Type:      aws.String(cloudwatchevidently.EventTypeAwsEvidentlyCustom),
		}},
	})
	if err != nil {
		return &lib.BrokerError{Broker: broker, Op: "PutProjectEvents", Err: err}
	}

	if aws.Int64Value(out.FailedEventCount) > 0 {
		reason := "unknown"
		for _, r := range out.EventResults {
			if r.ErrorCode != nil {
				reason = fmt.Sprintf("%s: %s", aws.StringValue(r.ErrorCode), aws.StringValue(r.ErrorMessage))
				break
			}
		}
		return &lib.BrokerError{
			Broker: broker,
			Op:     "PutProjectEvents",
			Err:    xerrors.Errorf("%s: %w", reason, ErrEventRejected),
		}
	}
	return nil
}

// Value unwraps whichever field of a variable value is set.
func Value(v *cloudwatchevidently.VariableValue) interface{} {
	switch {
	case v == nil:
		return nil
	case v.BoolValue != nil:
		return *v.BoolValue
	case v.StringValue != nil:
		return *v.StringValue
	case v.LongValue != nil:
		return *v.LongValue
	case v.DoubleValue != nil:
		return *v.DoubleValue
	}
	return nil
}
