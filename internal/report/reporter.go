package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/annel0/mmo-region/internal/logging"
)

// Report жалоба античита на аккаунт
type Report struct {
	AccountID string    `json:"account_id"`
	Reason    string    `json:"reason"`
	Details   string    `json:"details"`
	Server    string    `json:"server"`
	Time      time.Time `json:"time"`
}

// LogReporter пишет жалобы в лог
type LogReporter struct {
	log *logging.Logger
}

// NewLogReporter создаёт репортер в лог компонента reports
func NewLogReporter() *LogReporter {
	return &LogReporter{log: logging.GetComponentLogger("reports")}
}

func (r *LogReporter) Report(accountID, reason, details string) {
	r.log.Structured().Warn("report",
		zap.String("account", accountID),
		zap.String("reason", reason),
		zap.String("details", details))
}

// Publisher часть *nats.Conn, которая нужна репортеру
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig настройки публикации жалоб
type NATSConfig struct {
	URL           string
	Subject       string
	Server        string // имя сервера мира в жалобе
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSReporter публикует жалобы в NATS, откуда их забирает модерация.
// Publish у NATS буферизуется клиентом и не блокирует тик.
type NATSReporter struct {
	publisher Publisher
	conn      *nats.Conn
	subject   string
	server    string
	now       func() time.Time
	fallback  *LogReporter
}

// NewNATSReporter подключается к NATS
func NewNATSReporter(config NATSConfig) (*NATSReporter, error) {
	if config.MaxReconnects == 0 {
		config.MaxReconnects = -1
	}
	if config.ReconnectWait == 0 {
		config.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name("world-reports"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogInfo("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	reporter := NewPublisherReporter(conn, config.Subject, config.Server)
	reporter.conn = conn
	return reporter, nil
}

// NewPublisherReporter репортер поверх готового издателя
func NewPublisherReporter(publisher Publisher, subject, server string) *NATSReporter {
	return &NATSReporter{
		publisher: publisher,
		subject:   subject,
		server:    server,
		now:       time.Now,
		fallback:  NewLogReporter(),
	}
}

// Report публикует жалобу. Если публикация не удалась, жалоба остаётся в логе.
func (r *NATSReporter) Report(accountID, reason, details string) {
	data, err := json.Marshal(Report{
		AccountID: accountID,
		Reason:    reason,
		Details:   details,
		Server:    r.server,
		Time:      r.now(),
	})
	if err == nil {
		err = r.publisher.Publish(r.subject, data)
	}
	if err != nil {
		r.fallback.log.Error("Жалоба на %s не опубликована: %v", accountID, err)
		r.fallback.Report(accountID, reason, details)
	}
}

// Close сбрасывает буфер и закрывает соединение
func (r *NATSReporter) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil {
		r.conn.Close()
		return err
	}
	return nil
}
