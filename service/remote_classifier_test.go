package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/model"
)

func newWorkflowServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func remoteConfig(url string) *config.RemoteConfig {
	return &config.RemoteConfig{
		APIURL:     url,
		APIKey:     "test-key",
		Workspace:  "project-jqwpc",
		WorkflowID: "custom-workflow",
		Timeout:    2 * time.Second,
		UseCache:   true,
	}
}

const rustResponse = `{"outputs":[{"predictions":{"predicted_classes":["Rust"],"predictions":{"Rust":{"confidence":0.82,"class_id":3},"Healthy":{"confidence":0.1,"class_id":0}}}}]}`

func TestRemoteClassifier_SendsWorkflowRequest(t *testing.T) {
	img := jpegUpload(t, "leaf.jpg", 400, 300)

	var got workflowRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(rustResponse))
	}))
	defer srv.Close()

	pred, err := NewRemoteClassifier(remoteConfig(srv.URL)).Predict(context.Background(), img)
	require.NoError(t, err)

	require.Equal(t, "/project-jqwpc/workflows/custom-workflow", path)
	require.Equal(t, "test-key", got.APIKey)
	require.True(t, got.UseCache)
	require.Equal(t, "base64", got.Inputs["image"].Type)
	require.Equal(t, base64.StdEncoding.EncodeToString(img.Data), got.Inputs["image"].Value)

	require.Equal(t, model.LabelRust, pred.Label)
	require.InDelta(t, 0.82, pred.Confidence, 1e-9)
	require.InDelta(t, 0.1, pred.Scores[model.LabelHealthy], 1e-9)
	require.Equal(t, "remote:project-jqwpc/custom-workflow", pred.Source)
}

func TestRemoteClassifier_EmptyPredictedClasses(t *testing.T) {
	srv, _ := newWorkflowServer(t, http.StatusOK, `{"outputs":[{"predictions":{"predicted_classes":[],"predictions":{}}}]}`)

	_, err := NewRemoteClassifier(remoteConfig(srv.URL)).Predict(context.Background(), jpegUpload(t, "leaf.jpg", 10, 10))
	require.True(t, errors.Is(err, model.ErrNoPredictions))
}

func TestRemoteClassifier_MalformedResponses(t *testing.T) {
	cases := map[string]string{
		"no outputs":         `{"outputs":[]}`,
		"missing key":        `{"outputs":[{}]}`,
		"not json":           `<html>oops</html>`,
		"missing confidence": `{"outputs":[{"predictions":{"predicted_classes":["Rust"],"predictions":{}}}]}`,
		"list predictions":   `{"outputs":[{"predictions":{"predicted_classes":["Rust"],"predictions":[{"class":"Rust","confidence":0.8}]}}]}`,
		"out of range":       `{"outputs":[{"predictions":{"predicted_classes":["Rust"],"predictions":{"Rust":{"confidence":1.7}}}}]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newWorkflowServer(t, http.StatusOK, body)
			_, err := NewRemoteClassifier(remoteConfig(srv.URL)).Predict(context.Background(), jpegUpload(t, "leaf.jpg", 10, 10))
			require.True(t, errors.Is(err, model.ErrInferenceUnavailable), "got %v", err)
		})
	}
}

func TestRemoteClassifier_ServerErrorIsNotRetried(t *testing.T) {
	srv, hits := newWorkflowServer(t, http.StatusInternalServerError, `{"message":"boom"}`)

	_, err := NewRemoteClassifier(remoteConfig(srv.URL)).Predict(context.Background(), jpegUpload(t, "leaf.jpg", 10, 10))
	require.True(t, errors.Is(err, model.ErrInferenceUnavailable))
	require.Equal(t, int32(1), hits.Load())
}

func TestRemoteClassifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(rustResponse))
	}))
	defer srv.Close()

	cfg := remoteConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond

	_, err := NewRemoteClassifier(cfg).Predict(context.Background(), jpegUpload(t, "leaf.jpg", 10, 10))
	require.True(t, errors.Is(err, model.ErrInferenceUnavailable))
}

func TestRemoteClassifier_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemoteClassifier(remoteConfig(url)).Predict(context.Background(), jpegUpload(t, "leaf.jpg", 10, 10))
	require.True(t, errors.Is(err, model.ErrInferenceUnavailable))
}

func TestRemoteClassifier_UnknownLabelPassesThrough(t *testing.T) {
	srv, _ := newWorkflowServer(t, http.StatusOK, `{"outputs":[{"predictions":{"predicted_classes":["Smut"],"predictions":{"Smut":{"confidence":0.66}}}}]}`)

	pred, err := NewRemoteClassifier(remoteConfig(srv.URL)).Predict(context.Background(), jpegUpload(t, "leaf.jpg", 10, 10))
	require.NoError(t, err)
	require.Equal(t, "Smut", pred.Label)
}
