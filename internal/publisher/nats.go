package publisher

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"trip-monitor/internal/domain"
)

// Metrics is the slice of the metrics collector the publisher reports to.
type Metrics interface {
	AlertPublishedInc()
	AlertPublishErrInc()
	SetNATSConnected(connected bool)
}

// AlertPublisher fans classified alert events out over NATS. Subjects are
// <base>.<transportCompanyId> so delivery workers can subscribe per company
// or to everything with a wildcard.
type AlertPublisher struct {
	nc      *nats.Conn
	subject string
	metrics Metrics
}

func NewAlertPublisher(url, subject string, m Metrics) (*AlertPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("trip-monitor"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetNATSConnected(false)
			}
			logrus.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetNATSConnected(true)
			}
			logrus.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetNATSConnected(false)
			}
			logrus.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetNATSConnected(true)
	}
	return &AlertPublisher{nc: nc, subject: subject, metrics: m}, nil
}

func (p *AlertPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PublishEvent sends one notification event to the company's alert subject.
func (p *AlertPublisher) PublishEvent(e domain.NotificationEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%d", p.subject, e.Trip.Route.TransportCompanyID)
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.AlertPublishErrInc()
		} else {
			p.metrics.AlertPublishedInc()
		}
	}
	return err
}
