//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

var clusterCenters = map[string][]float64{
	"rice":       {80, 45, 40, 23, 82, 6.4, 220},
	"wheat":      {20, 60, 20, 15, 40, 7.6, 60},
	"watermelon": {100, 15, 50, 30, 90, 5.2, 120},
}

var featureNames = []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

// writeTrainingCSV writes a small three-crop training table without a soil column.
func writeTrainingCSV(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(featureNames, ",") + ",label\n")
	for _, label := range []string{"rice", "wheat", "watermelon"} {
		for i := range 10 {
			jitter := float64(i-5) * 0.1
			for _, v := range clusterCenters[label] {
				fmt.Fprintf(&b, "%g,", v+jitter)
			}
			b.WriteString(label + "\n")
		}
	}
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func featuresFor(label string) map[string]float64 {
	out := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		out[name] = clusterCenters[label][i]
	}
	return out
}
