//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-telegram-etl/internal/adapter/stationcache"
	"github.com/couchcryptid/hydro-telegram-etl/internal/config"
	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/observability"
	"github.com/couchcryptid/hydro-telegram-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

var receivedAt = time.Date(2024, time.April, 15, 9, 0, 0, 0, time.UTC)

// logMessage holds a deserialized telegram log record read from the sink topic.
type logMessage struct {
	Record  pipeline.TelegramRecord
	Key     string
	Headers map[string]string
}

// readRecord reads a single message from the sink consumer and deserializes it.
func readRecord(ctx context.Context, t *testing.T, consumer *kafkago.Reader) logMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec pipeline.TelegramRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal sink message")

	return logMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func publish(ctx context.Context, t *testing.T, broker string, telegrams ...string) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(telegrams))
	for i, tg := range telegrams {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("gateway-%d", i)),
			Value: []byte(tg),
			Time:  receivedAt,
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (extractor) and
// kafka.Writer (loader) correctly round-trip a telegram through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	const telegram = "12345 14081 10417 20021 30410="
	publish(ctx, t, broker, telegram)

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawTelegram
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for telegram from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("gateway-0"), raw.Key)
	assert.Equal(t, telegram, string(raw.Value))
	assert.Equal(t, testSourceTopic, raw.Topic)
	assert.True(t, raw.Timestamp.Equal(receivedAt))
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	store := openStationStore(t)
	transformer := pipeline.NewTransformer(kn15.NewParser(store), discardLogger(), observability.NewMetricsForTesting())
	out, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	lm := readRecord(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "12345", lm.Key)
	assert.Equal(t, pipeline.StatusDecoded, lm.Headers["status"])
	assert.Equal(t, "12345", lm.Headers["station"])
	require.NotNil(t, lm.Record.Decoded)
	assert.Equal(t, time.Date(2024, time.April, 14, 8, 0, 0, 0, time.UTC), lm.Record.Decoded.SectionZero.Date)
	assert.Equal(t, 410, lm.Record.Decoded.SectionOne.WaterLevel20hPeriod)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → Writer
// and telegram log) with real Kafka and checks one record per telegram.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	telegrams := []string{
		"12345 14081 10417 20021 30410=",
		"12345 14082 10417 20021 30410 93301 10415 96604 10420 21126 32350 40150 51410=",
		"12345 11081 10417 20021 30410 98811 10123 21052=",
		"54321 14081 10250 20000 30249=",
		"12345 14081 10417",
		"11111 14081 10417 20021 30410=",
		"12345 14083 10417 20021 30410=",
	}
	publish(ctx, t, broker, telegrams...)

	store := openStationStore(t)
	metrics := observability.NewMetricsForTesting()
	stations := stationcache.New(store, 100, metrics)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	transformer := pipeline.NewTransformer(kn15.NewParser(stations), discardLogger(), metrics)
	p := pipeline.New(reader, transformer, pipeline.NewFanoutLoader(writer, store), discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := make([]logMessage, 0, len(telegrams))
	for len(received) < len(telegrams) {
		received = append(received, readRecord(ctx, t, consumer))
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	statuses := map[string]int{}
	kinds := map[string]int{}
	for _, lm := range received {
		statuses[lm.Record.Status]++
		assert.Equal(t, lm.Record.Status, lm.Headers["status"])
		if lm.Record.Error != nil {
			kinds[lm.Record.Error.Kind]++
			assert.NotEmpty(t, lm.Record.Error.Message)
		}
	}
	assert.Equal(t, 4, statuses[pipeline.StatusDecoded])
	assert.Equal(t, 3, statuses[pipeline.StatusRejected])
	assert.Equal(t, map[string]int{"missing_section": 1, "station_not_found": 1, "unsupported_section": 1}, kinds)

	logged, err := store.RecentTelegrams(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, logged, len(telegrams), "every record is also kept in the local telegram log")
	require.NoError(t, p.CheckReadiness(ctx))
}
