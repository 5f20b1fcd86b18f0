package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/CleanExpo/Disaster-Recovery-sub021/core/metrics"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/logger"
)

// InfluxConfig defines the InfluxDB sink settings.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// InfluxSink writes dispatch outcomes to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordInvitations writes invitation results as line protocol events.
func (s *InfluxSink) RecordInvitations(results []coremetrics.InvitationResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range results {
		p := write.NewPointWithMeasurement("invitation_event").
			AddTag("contractor_id", r.ContractorID).
			AddTag("service_type", r.ServiceType.String()).
			AddTag("urgency", r.Urgency.String()).
			AddTag("delivered", strconv.FormatBool(r.Delivered)).
			AddTag("job_id", r.JobID).
			AddTag("component", "dispatch_manager").
			AddField("round", r.Round).
			AddField("score", round3(r.Score)).
			AddField("send_latency_ms", r.Latency.Milliseconds()).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignment writes the resolved assignment for the job.
func (s *InfluxSink) RecordAssignment(res coremetrics.AssignmentResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_event").
		AddTag("contractor_id", res.ContractorID).
		AddTag("urgency", res.Urgency.String()).
		AddTag("outcome", res.Outcome).
		AddTag("job_id", res.JobID).
		AddTag("component", "assignment_arbiter").
		AddField("round", res.Round).
		AddField("accept_latency_s", round3(res.AcceptLatency.Seconds())).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
