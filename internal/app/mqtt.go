// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/config"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("app: mqtt timeout")

// Publisher sends one JSON-encoded message to a topic.
type Publisher interface {
	Publish(topic string, v any) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(topic string, v any) error

func (f PublisherFunc) Publish(topic string, v any) error { return f(topic, v) }

// ConnectMQTT connects a client to the configured broker.
func ConnectMQTT(cfg config.MQTTConfig, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	log.Printf("mqtt: %s connected to %s", clientID, cfg.Broker)
	return client, nil
}

// MQTTPublisher publishes retained JSON messages.
type MQTTPublisher struct {
	Client  mqtt.Client
	QoS     byte
	Retain  bool
	Timeout time.Duration
}

func NewMQTTPublisher(client mqtt.Client) *MQTTPublisher {
	return &MQTTPublisher{Client: client, Retain: true, Timeout: 2 * time.Second}
}

func (p *MQTTPublisher) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := p.Client.Publish(topic, p.QoS, p.Retain, payload)
	if !token.WaitTimeout(p.Timeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// SubscribeJSON decodes every message on topic into T and hands it to fn.
// Undecodable payloads are logged and dropped.
func SubscribeJSON[T any](client mqtt.Client, topic string, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Warnf("mqtt: %s unmarshal error: %v", topic, err)
			return
		}
		fn(v)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}
