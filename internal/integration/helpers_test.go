//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/couchcryptid/geode/internal/adapter/nominatim"
	"github.com/couchcryptid/geode/internal/adapter/openmeteo"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/couchcryptid/geode/internal/plan"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("geode-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

// fakeUpstreams serves canned Nominatim and Open-Meteo responses and returns
// an executor wired to the real HTTP adapters.
func fakeUpstreams(t *testing.T) *plan.Executor {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Atlanta":
			_, _ = io.WriteString(w, `[{"name":"Atlanta","lat":"33.75","lon":"-84.39",
				"boundingbox":["33.6","33.9","-84.6","-84.2"],
				"geojson":{"type":"Polygon","coordinates":[[[-84.6,33.6],[-84.2,33.6],[-84.2,33.9],[-84.6,33.9],[-84.6,33.6]]]}}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		lats := strings.Split(r.URL.Query().Get("latitude"), ",")
		parts := make([]string, len(lats))
		for i, lat := range lats {
			parts[i] = `{"current":{"temperature_2m":` + lat + `}}`
		}
		if len(parts) == 1 {
			_, _ = io.WriteString(w, parts[0])
			return
		}
		_, _ = io.WriteString(w, "["+strings.Join(parts, ",")+"]")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	metrics := observability.NewMetricsForTesting()
	locator := nominatim.NewCachedLocator(
		nominatim.NewClient(srv.URL, "geode-integration/1.0", 0, metrics, discardLogger()), 16, metrics)
	fields := openmeteo.NewClient(openmeteo.Endpoints{Forecast: srv.URL + "/v1/forecast"}, 0, metrics, discardLogger())
	return plan.NewExecutor(locator, fields, plan.Config{GridSize: 10, FieldSamples: 16}, discardLogger(), metrics)
}
