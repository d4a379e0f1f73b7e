package scans

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type fakeRunner struct {
	got model.ScanRequest
	err error
}

func (f *fakeRunner) Scan(_ context.Context, req model.ScanRequest) (model.ScanResult, error) {
	f.got = req
	return model.ScanResult{RequestID: req.RequestID, Status: model.ScanSucceeded}, f.err
}

func request() model.ScanRequest {
	return model.ScanRequest{
		RepoURL:   "https://github.com/org/app",
		Ecosystem: "npm",
		Files:     []model.ManifestFile{{Name: "npm-list.json", Content: []byte(`{"dependencies":{}}`)}},
	}
}

func TestProducerRoundTripsThroughHandler(t *testing.T) {
	w := &recordingWriter{}
	p := &ScanProducer{Writer: w}

	id, err := p.PublishScanRequested(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "https://github.com/org/app", string(w.msgs[0].Key))

	var event ScanRequestedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, EventTypeScanRequested, event.EventType)
	assert.Equal(t, SchemaVersion, event.SchemaVersion)
	assert.Equal(t, id, event.Request.RequestID)

	runner := &fakeRunner{}
	require.NoError(t, HandleScanRequested(context.Background(), w.msgs[0].Value, runner, zap.NewNop()))
	assert.Equal(t, id, runner.got.RequestID)
	assert.Equal(t, "npm", runner.got.Ecosystem)
}

func TestNewEventKeepsRequestID(t *testing.T) {
	req := request()
	req.RequestID = "existing"
	event := NewEvent(req)
	assert.Equal(t, "existing", event.Request.RequestID)
	assert.NotEqual(t, "existing", event.EventID)
}

func TestDecodeRejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"not json", `{`},
		{"wrong type", `{"event_type":"release.sbom.created","request":{"repo_url":"r","files":[{"name":"a"}]}}`},
		{"missing repo", `{"request":{"files":[{"name":"a"}]}}`},
		{"nothing to scan", `{"request":{"repo_url":"r"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.msg))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestDecodeDefaultsRequestID(t *testing.T) {
	event, err := Decode([]byte(`{"event_id":"e1","request":{"repo_url":"r","dependencies":{"direct":["npm:a:1"],"transitive":[]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", event.Request.RequestID)
	require.NotNil(t, event.Request.Dependencies)
	assert.Len(t, event.Request.Dependencies.Direct, 1)
}

func TestHandlerWrapsRunnerErrors(t *testing.T) {
	boom := errors.New("graph down")
	msg, err := json.Marshal(NewEvent(request()))
	require.NoError(t, err)

	err = HandleScanRequested(context.Background(), msg, &fakeRunner{err: boom}, zap.NewNop())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidEvent)
}
