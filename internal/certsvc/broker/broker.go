package broker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/comm"
	natscli "github.com/avvvet/certify-services/internal/nats"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Conn is the part of *nats.Conn the broker uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type Broker struct {
	Conn        Conn
	Deliver     func(socketId string, m *comm.WSMessage) error
	GetWatchers func(batchId string) ([]string, bool)

	LastHeartbeatMap   sync.Map // batch worker id -> time of its last heartbeat
	heartbeatThreshold time.Duration
}

func NewBroker(conn Conn, fncDeliver func(string, *comm.WSMessage) error, fncGetWatchers func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:               conn,
		Deliver:            fncDeliver,
		GetWatchers:        fncGetWatchers,
		heartbeatThreshold: time.Second * 15,
	}
}

// consume progress and events from the batch workers
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.HandleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// PublishBatchJob hands a submitted batch to the worker queue.
func (b *Broker) PublishBatchJob(job models.BatchJob) error {
	msg, err := comm.NewMessage(comm.TypeBatchIssue, job)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := b.Publish(natscli.BatchSubject, payload); err != nil {
		return err
	}
	log.Infof("batch %s queued with %d rows", job.BatchID, len(job.Rows))
	return nil
}

// HandleMessage routes one message from the workers.
func (b *Broker) HandleMessage(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error decoding worker message: %s", err)
		return
	}

	switch message.Type {
	case comm.TypeBatchProgress, comm.TypeBatchComplete:
		b.forward(message)
	case comm.TypeCertIssued, comm.TypeCertRevoked:
		var ev comm.CertificateEvent
		if err := json.Unmarshal(message.Data, &ev); err == nil {
			log.WithFields(log.Fields{"cert": ev.CertID, "org": ev.Org, "tx": ev.TxHash}).Info(message.Type)
		}
	case comm.TypeServiceStarted:
		var hb comm.ServiceHeartbeat
		if err := json.Unmarshal(message.Data, &hb); err != nil || hb.ID == "" {
			log.Warnf("malformed heartbeat: %v", err)
			return
		}
		b.LastHeartbeatMap.Store(hb.ID, hb.Timestamp)
	default:
		log.Errorf("Unknown message %s", message.Type)
	}
}

// forward sends a batch message to every socket watching that batch.
func (b *Broker) forward(m *comm.WSMessage) {
	var ref struct {
		BatchID string `json:"batchId"`
	}
	if err := json.Unmarshal(m.Data, &ref); err != nil || ref.BatchID == "" {
		log.Warnf("%s without batch id", m.Type)
		return
	}

	sockets, ok := b.GetWatchers(ref.BatchID)
	if !ok {
		return
	}
	for _, socketId := range sockets {
		if err := b.Deliver(socketId, m); err != nil {
			log.Warnf("deliver %s to %s: %v", m.Type, socketId, err)
		}
	}
}

// ActiveWorkers counts workers that sent a heartbeat within the threshold.
func (b *Broker) ActiveWorkers() int {
	now := time.Now()
	n := 0
	b.LastHeartbeatMap.Range(func(key, value any) bool {
		if now.Sub(value.(time.Time)) <= b.heartbeatThreshold {
			n++
		} else {
			b.LastHeartbeatMap.Delete(key)
		}
		return true
	})
	return n
}
