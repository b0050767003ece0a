// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mqtt bridges a controller node to an MQTT broker: station rows are
// published as JSON and lamp commands are accepted on a command topic.
package mqtt

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ZaparooProject/go-lampnet"
)

// Broker is the slice of an MQTT connection the bridge needs.
type Broker interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Close()
}

// BrokerConfig describes how to reach the broker.
type BrokerConfig struct {
	URL      string // tcp://host:1883
	ClientID string
	Username string
	Password string
	// ConnectTimeout bounds the initial connect. Default: 10 seconds
	ConnectTimeout time.Duration
}

const (
	qos            = 1
	opTimeout      = 2 * time.Second
	defaultConnect = 10 * time.Second
)

// pahoBroker is a persistent paho connection. Paho re-establishes dropped
// connections and renews subscriptions on reconnect.
type pahoBroker struct {
	conn paho.Client
}

// Dial connects to the broker described by cfg.
func Dial(cfg BrokerConfig) (Broker, error) {
	if cfg.URL == "" {
		return nil, errors.New("mqtt broker URL is empty")
	}
	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = "lampnet-" + hostname
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnect
	}

	paho.ERROR = log.New(os.Stderr, "mqtt: ", 0)
	opts := paho.NewClientOptions().AddBroker(cfg.URL)
	opts.ClientID = cfg.ClientID
	opts.Username = cfg.Username
	opts.Password = cfg.Password
	opts.AutoReconnect = true
	opts.ResumeSubs = true
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		lampnet.Debugf("mqtt: connection lost: %v", err)
	}

	conn := paho.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %v", cfg.URL, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.URL, err)
	}
	lampnet.Debugf("mqtt: connected to %s as %s", cfg.URL, cfg.ClientID)
	return &pahoBroker{conn: conn}, nil
}

func (b *pahoBroker) Publish(topic string, payload []byte) error {
	token := b.conn.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	return token.Error()
}

func (b *pahoBroker) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := b.conn.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		handler(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timed out", topic)
	}
	return token.Error()
}

func (b *pahoBroker) Close() {
	b.conn.Disconnect(250)
}
