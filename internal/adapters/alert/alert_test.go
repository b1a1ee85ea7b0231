package alert_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/okian/fraudwatch/internal/adapters/alert"
	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type receiver struct {
	mu          sync.Mutex
	status      int
	bodies      []map[string]any
	contentType string
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.bodies = append(r.bodies, body)
	r.contentType = req.Header.Get("Content-Type")
	w.WriteHeader(r.status)
}

func sampleAlert(target string) model.Alert {
	return model.Alert{
		RunID:   "run-1",
		Row:     2,
		Target:  target,
		Payload: map[string]any{"amount": 9000.5, "type": "TRANSFER", "step": int64(1), "Prediction": 1},
	}
}

func TestWebhookSink(t *testing.T) {
	convey.Convey("Given a webhook receiver", t, func() {
		rcv := &receiver{status: http.StatusOK}
		srv := httptest.NewServer(rcv)
		defer srv.Close()
		ctx := context.Background()

		convey.Convey("When the receiver answers 200", func() {
			sink := alert.NewWebhookSink(alert.WithURL(srv.URL), alert.WithWebhookLogger(logger.NewNop()))
			err := sink.Deliver(ctx, sampleAlert(""))

			convey.Convey("Then the alert is delivered as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rcv.contentType, convey.ShouldEqual, "application/json")
				convey.So(rcv.bodies, convey.ShouldHaveLength, 1)
				convey.So(rcv.bodies[0]["type"], convey.ShouldEqual, "TRANSFER")
				convey.So(rcv.bodies[0]["Prediction"], convey.ShouldEqual, 1.0)
				convey.So(sink.Name(), convey.ShouldEqual, alert.SinkWebhook)
			})
		})

		convey.Convey("When the receiver answers anything but 200", func() {
			rcv.status = http.StatusAccepted
			sink := alert.NewWebhookSink(alert.WithURL(srv.URL), alert.WithWebhookLogger(logger.NewNop()))
			err := sink.Deliver(ctx, sampleAlert(""))

			convey.Convey("Then it is a delivery error carrying the status", func() {
				var de *alert.DeliveryError
				convey.So(errors.As(err, &de), convey.ShouldBeTrue)
				convey.So(de.Row, convey.ShouldEqual, 2)
				convey.So(de.Status, convey.ShouldEqual, http.StatusAccepted)
			})
		})

		convey.Convey("When the alert names its own target", func() {
			sink := alert.NewWebhookSink(alert.WithURL("http://127.0.0.1:1/unused"), alert.WithWebhookLogger(logger.NewNop()))
			err := sink.Deliver(ctx, sampleAlert(srv.URL))

			convey.Convey("Then the override wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rcv.bodies, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When there is no URL at all", func() {
			sink := alert.NewWebhookSink(alert.WithWebhookLogger(logger.NewNop()))
			err := sink.Deliver(ctx, sampleAlert(""))

			convey.Convey("Then delivery fails with ErrNoTarget", func() {
				convey.So(errors.Is(err, alert.ErrNoTarget), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the receiver is unreachable", func() {
			srv.Close()
			sink := alert.NewWebhookSink(alert.WithURL(srv.URL), alert.WithWebhookLogger(logger.NewNop()))
			err := sink.Deliver(ctx, sampleAlert(""))

			convey.Convey("Then it is a transport delivery error", func() {
				var de *alert.DeliveryError
				convey.So(errors.As(err, &de), convey.ShouldBeTrue)
				convey.So(de.Status, convey.ShouldEqual, 0)
				convey.So(de.Err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestKafkaSink(t *testing.T) {
	convey.Convey("Given a mocked sync producer", t, func() {
		producer := mocks.NewSyncProducer(t, alert.NewProducerConfig())
		sink := alert.NewKafkaSink(producer, "fraud-alerts", logger.NewNop())
		ctx := context.Background()

		convey.Convey("When the broker acknowledges", func() {
			producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
				var p map[string]any
				if err := json.Unmarshal(val, &p); err != nil {
					return err
				}
				if p["type"] != "TRANSFER" {
					return errors.New("unexpected payload")
				}
				return nil
			})
			err := sink.Deliver(ctx, sampleAlert(""))

			convey.Convey("Then the alert is delivered", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.Name(), convey.ShouldEqual, alert.SinkKafka)
			})
		})

		convey.Convey("When the broker fails", func() {
			producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
			err := sink.Deliver(ctx, sampleAlert(""))

			convey.Convey("Then it is a delivery error wrapping the cause", func() {
				var de *alert.DeliveryError
				convey.So(errors.As(err, &de), convey.ShouldBeTrue)
				convey.So(errors.Is(err, sarama.ErrOutOfBrokers), convey.ShouldBeTrue)
			})
		})

		convey.Reset(func() {
			_ = sink.Close()
		})
	})

	convey.Convey("Given an alert", t, func() {
		convey.So(alert.MessageKey(sampleAlert("")), convey.ShouldEqual, "run-1:2")
	})
}

func TestNopSink(t *testing.T) {
	convey.Convey("Given a nop sink", t, func() {
		sink := alert.NewNopSink(logger.NewNop())
		convey.So(sink.Deliver(context.Background(), sampleAlert("")), convey.ShouldBeNil)
		convey.So(sink.Name(), convey.ShouldEqual, alert.SinkNone)
		convey.So(sink.Close(), convey.ShouldBeNil)
	})
}

func TestPreset(t *testing.T) {
	convey.Convey("Given the alert presets", t, func() {
		convey.Convey("Then local always targets the n8n default", func() {
			p, err := alert.ParsePreset("LOCAL")
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Target("http://configured", "http://requested"), convey.ShouldEqual, alert.LocalWebhookURL)
		})

		convey.Convey("Then custom uses the configured URL", func() {
			convey.So(alert.PresetCustom.Target("http://configured", "http://requested"), convey.ShouldEqual, "http://configured")
		})

		convey.Convey("Then request prefers the uploaded URL and falls back", func() {
			convey.So(alert.PresetRequest.Target("http://configured", " http://requested "), convey.ShouldEqual, "http://requested")
			convey.So(alert.PresetRequest.Target("http://configured", ""), convey.ShouldEqual, "http://configured")
		})

		convey.Convey("Then empty defaults to local and unknown is rejected", func() {
			p, err := alert.ParsePreset("")
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldEqual, alert.PresetLocal)
			_, err = alert.ParsePreset("prod")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
