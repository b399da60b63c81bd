package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Redis publishes on a Redis pub/sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

func NewRedis(addr, channel string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{rdb: rdb, channel: channel}, nil
}

func (r *Redis) Send(ctx context.Context, _ string, body []byte) error {
	return r.rdb.Publish(ctx, r.channel, body).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// NATS publishes on a core NATS subject.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func NewNATS(addr, subject string) (*NATS, error) {
	if addr == "" {
		addr = nats.DefaultURL
	}
	nc, err := nats.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to NATS: %w", err)
	}
	return &NATS{nc: nc, subject: subject}, nil
}

func (n *NATS) Send(_ context.Context, key string, body []byte) error {
	msg := nats.NewMsg(n.subject)
	msg.Data = body
	if key != "" {
		msg.Header.Set("User-Id", key)
	}
	return n.nc.PublishMsg(msg)
}

func (n *NATS) Close() error {
	if err := n.nc.Flush(); err != nil {
		n.nc.Close()
		return err
	}
	n.nc.Close()
	return nil
}

// Kafka produces to a topic, keyed by user id so events of one user stay ordered.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(brokers, topic string) (*Kafka, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return &Kafka{w: w}, nil
}

func (k *Kafka) Send(ctx context.Context, key string, body []byte) error {
	return k.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: body})
}

func (k *Kafka) Close() error {
	return k.w.Close()
}

const (
	tcpPrefix = "tcp://"
	sslPrefix = "ssl://"
	wsPrefix  = "ws://"
)

// MQTT publishes with QoS 1 on a topic.
type MQTT struct {
	client mqtt.Client
	topic  string
}

func NewMQTT(broker, topic string) (*MQTT, error) {
	if !strings.HasPrefix(broker, tcpPrefix) && !strings.HasPrefix(broker, sslPrefix) && !strings.HasPrefix(broker, wsPrefix) {
		broker = tcpPrefix + broker
	}
	opts := mqtt.NewClientOptions().AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("usertool-pub-%d", time.Now().UnixNano())).SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connection error: %w", token.Error())
	}
	return &MQTT{client: client, topic: topic}, nil
}

func (m *MQTT) Send(ctx context.Context, _ string, body []byte) error {
	token := m.client.Publish(m.topic, 1, false, body)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
