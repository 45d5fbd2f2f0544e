package tele

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/log2"
	tele_config "github.com/temoto/uasbridge/tele/config"
)

type transportMqtt struct {
	log       *log2.Log
	m         mqtt.Client
	stationID int
	timeout   time.Duration
	willTopic string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, c tele_config.Config, willPayload []byte) error {
	self.log = log
	mqttLog := log.Clone(log2.LInfo)
	if c.MqttLogDebug {
		mqttLog.SetLevel(log2.LDebug)
		mqtt.DEBUG = mqttLogger{mqttLog, log2.LDebug}
	}
	mqtt.ERROR = mqttLogger{mqttLog, log2.LError}
	mqtt.CRITICAL = mqttLogger{mqttLog, log2.LError}
	mqtt.WARN = mqttLogger{mqttLog, log2.LInfo}

	if _, err := url.ParseRequestURI(c.MqttBroker); err != nil {
		return errors.Annotatef(err, "tele mqtt_broker=%s", c.MqttBroker)
	}
	self.stationID = c.StationID
	self.willTopic = TopicState(c.StationID)
	self.timeout = helpers.DurationDefault(c.NetworkTimeoutSec, time.Second, DefaultNetworkTimeout)
	if self.timeout < time.Second {
		self.timeout = time.Second
	}

	clientID := fmt.Sprintf("gcs%d", c.StationID)
	opt := mqtt.NewClientOptions().
		AddBroker(c.MqttBroker).
		SetClientID(clientID).
		SetCredentialsProvider(func() (string, string) { return clientID, c.MqttPassword }).
		SetBinaryWill(self.willTopic, willPayload, 1, true).
		SetCleanSession(false).
		SetKeepAlive(helpers.DurationDefault(c.KeepaliveSec, time.Second, defaultKeepalive)).
		SetPingTimeout(helpers.DurationDefault(c.PingTimeoutSec, time.Second, defaultPingTimeout)).
		SetConnectTimeout(self.timeout).
		SetWriteTimeout(self.timeout).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(self.timeout).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	if c.StorePath != "" {
		opt.SetStore(mqtt.NewFileStore(c.StorePath))
	}
	if c.TlsCaFile != "" {
		cabytes, err := ioutil.ReadFile(c.TlsCaFile)
		if err != nil {
			return errors.Annotate(err, "tele TLS")
		}
		tlsconf := &tls.Config{RootCAs: x509.NewCertPool()}
		if !tlsconf.RootCAs.AppendCertsFromPEM(cabytes) {
			return errors.NotValidf("tele tls_ca_file=%s", c.TlsCaFile)
		}
		opt.SetTLSConfig(tlsconf)
	}
	self.m = mqtt.NewClient(opt)
	// initial connect happens in first Send, network may be absent now
	return nil
}

func (self *transportMqtt) Close() {
	if self.m == nil || !self.m.IsConnectionOpen() {
		return
	}
	self.publish(self.willTopic, true, []byte{byte(StateDisconnected)})
	self.m.Disconnect(uint(self.timeout / time.Millisecond))
	self.log.Infof("mqtt disconnected")
}

func (self *transportMqtt) SendState(payload []byte) bool {
	self.log.Debugf("mqtt send state=%x", payload)
	return self.publish(self.willTopic, true, payload)
}

func (self *transportMqtt) SendEvent(uasID uint8, payload []byte) bool {
	return self.publish(TopicEvent(self.stationID, uasID), false, payload)
}

// ensureConnected is called only from queue worker.
func (self *transportMqtt) ensureConnected() bool {
	if self.m.IsConnected() {
		return true
	}
	token := self.m.Connect()
	if !token.WaitTimeout(self.timeout) {
		self.log.Errorf("mqtt connect timeout=%v", self.timeout)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Errorf("mqtt connect err=%v", err)
		return false
	}
	return true
}

func (self *transportMqtt) publish(topic string, retained bool, payload []byte) bool {
	if !self.ensureConnected() {
		return false
	}
	token := self.m.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(self.timeout) {
		self.log.Errorf("mqtt publish topic=%s timeout=%v", topic, self.timeout)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Errorf("mqtt publish topic=%s err=%v", topic, err)
		return false
	}
	return true
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("mqtt disconnect err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connect")
}

// mqttLogger routes paho package loggers to log2.
type mqttLogger struct {
	log   *log2.Log
	level log2.Level
}

func (l mqttLogger) Println(v ...interface{}) { l.log.Log(l.level, "mqtt: "+fmt.Sprint(v...)) }
func (l mqttLogger) Printf(format string, v ...interface{}) {
	l.log.Logf(l.level, "mqtt: "+format, v...)
}
