//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/geojson"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/kafka"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/tileserver"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/tippecanoe"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/viewer"
	"github.com/couchcryptid/humidity-tiles-etl/internal/config"
	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/couchcryptid/humidity-tiles-etl/internal/observability"
	"github.com/couchcryptid/humidity-tiles-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

var june = domain.MonthKey{Year: 2024, Month: time.June}

// layerMessage holds a deserialized message read from the layer topic.
type layerMessage struct {
	Event   kafka.LayerEvent
	Key     string
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

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
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func newConsumer(t *testing.T, broker, topic string) *kafkago.Reader {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		Partition:   0,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	t.Cleanup(func() { r.Close() })
	return r
}

// readLayer reads a single message from the consumer and deserializes it.
func readLayer(ctx context.Context, t *testing.T, consumer *kafkago.Reader) layerMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from layer topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event kafka.LayerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal layer message")
	return layerMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

// TestPublisherRoundTrip verifies that layer events reach the topic keyed by
// layer with month and build time headers.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "layers-roundtrip")

	pub := kafka.NewPublisher(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: "layers-roundtrip"}, discardLogger())
	defer pub.Close()

	builtAt := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	july := domain.MonthKey{Year: 2024, Month: time.July}
	archives := []domain.TileArchive{
		{Key: june, Layer: "humidity_06_2024_land", Path: "mbtiles/humidity_06_2024_land.mbtiles", BuiltAt: builtAt},
		{Key: july, Layer: "humidity_07_2024_land", Path: "mbtiles/humidity_07_2024_land.mbtiles", BuiltAt: builtAt},
	}
	require.NoError(t, pub.NotifyLayers(ctx, archives))

	consumer := newConsumer(t, broker, "layers-roundtrip")
	first := readLayer(ctx, t, consumer)
	second := readLayer(ctx, t, consumer)

	assert.Equal(t, "humidity_06_2024_land", first.Key)
	assert.Equal(t, "2024-06", first.Headers["month"])
	assert.Equal(t, "2024-07-02T12:00:00Z", first.Headers["built_at"])
	assert.Equal(t, kafka.LayerEvent{
		Layer:   "humidity_06_2024_land",
		Month:   "2024-06",
		Archive: "mbtiles/humidity_06_2024_land.mbtiles",
		BuiltAt: builtAt,
	}, first.Event)

	assert.Equal(t, "humidity_07_2024_land", second.Key)
	assert.Equal(t, "2024-07", second.Event.Month)
}

type staticFetcher []domain.Sample

func (f staticFetcher) Fetch(context.Context, domain.MonthRange) ([]domain.Sample, error) {
	return f, nil
}

// writeArchive stands in for tippecanoe by creating the requested output file.
func writeArchive(_ context.Context, _ string, args []string) ([]byte, error) {
	return nil, os.WriteFile(args[1], []byte("mbtiles"), 0o644)
}

// TestPipelineNotifiesBuiltLayers runs every stage with a land sample and an
// ocean sample and expects exactly one layer event.
func TestPipelineNotifiesBuiltLayers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "layers-pipeline")

	dir := t.TempDir()
	logger := discardLogger()
	pub := kafka.NewPublisher(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: "layers-pipeline"}, logger)
	defer pub.Close()

	mbtilesDir := filepath.Join(dir, "mbtiles")
	deps := pipeline.Deps{
		Fetcher: staticFetcher{
			{Time: june.Start(), Lat: 10, Lon: 20, Value: 75.5},
			{Time: june.Start(), Lat: 0, Lon: 60, Value: 80},
		},
		Tables:   csvtable.NewStore(filepath.Join(dir, "out"), "RH2M", "humidity"),
		Land:     domain.LandFunc(func(lat, lon float64) bool { return lat == 10 && lon == 20 }),
		Geometry: geojson.NewWriter(filepath.Join(dir, "out"), "humidity"),
		Tiles:    tippecanoe.NewBuilder("tippecanoe", mbtilesDir, "humidity", 0, logger, tippecanoe.WithRunner(writeArchive)),
		Config:   tileserver.NewEmitter(filepath.Join(dir, "tileserver.json"), mbtilesDir),
		Viewer:   viewer.NewEmitter(filepath.Join(dir, "viewer.html"), "humidity"),
		Notifier: pub,
	}
	p := pipeline.New(deps, pipeline.Settings{
		Range: domain.MonthRange{Start: june, End: june},
	}, logger, observability.NewMetricsForTesting())

	sum, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"humidity_06_2024_land"}, sum.Layers)

	msg := readLayer(ctx, t, newConsumer(t, broker, "layers-pipeline"))
	assert.Equal(t, "humidity_06_2024_land", msg.Key)
	assert.Equal(t, "2024-06", msg.Event.Month)
	assert.Equal(t, filepath.Join(mbtilesDir, "humidity_06_2024_land.mbtiles"), msg.Event.Archive)
	assert.FileExists(t, msg.Event.Archive)
}
