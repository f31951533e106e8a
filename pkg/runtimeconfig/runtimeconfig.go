// Package runtimeconfig defines the runtime's external configuration
// surface (spec §6) and loads it the way the teacher loads its own
// configuration: a jsonnet document unmarshaled into a plain struct.
package runtimeconfig

// SocketType is the value of the socketType configuration key, naming
// an event-loop transport implementation (spec §6).
type SocketType string

const (
	SocketNIO   SocketType = "NIO"
	SocketEpoll SocketType = "EPOLL"
	SocketKqueue SocketType = "KQUEUE"
)

// RuntimeConfiguration holds every configuration key recognized by the
// runtime (spec §6), loaded via
// util.UnmarshalConfigurationFromFile.
type RuntimeConfiguration struct {
	// TLS / SASL.
	TLSEnabled           bool   `json:"tlsEnabled"`
	KeyStore             string `json:"keyStore"`
	KsPasswordFile       string `json:"ksPasswordFile"`
	TrustStore           string `json:"trustStore"`
	TsPasswordFile       string `json:"tsPasswordFile"`
	SaslPlainTextEnabled bool   `json:"saslPlainTextEnabled"`
	UsernameFile         string `json:"usernameFile"`
	PasswordFile         string `json:"passwordFile"`

	// Timeouts and retry rates, stored as plain integers under the
	// key names spec §6 lists; this package does not convert them to
	// time.Duration values.
	HandshakeTimeoutSec       int64 `json:"handshakeTimeoutSec"`
	RequestTimeout            int64 `json:"requestTimeout"`
	IdleConnectionTimeoutSec  int64 `json:"idleConnectionTimeoutSec"`
	KeepAlivePeriodSec        int64 `json:"keepAlivePeriodSec"`
	ConnectionTimeout         int64 `json:"connectionTimeout"`
	ConnectionRetryRate       int64 `json:"connectionRetryRate"`

	// Client identity and transport.
	ClientID              string            `json:"clientId"`
	SocketType            SocketType        `json:"socketType"`
	EventLoopThreadFormat string            `json:"eventLoopThreadFormat"`
	EventLoopThreads      int               `json:"eventLoopThreads"`
	ShutdownEventLoop     bool              `json:"shutdownEventLoop"`
	ChannelOptions        map[string]string `json:"channelOptions"`

	// Workflow retry policy.
	WorkflowTimeout   int64 `json:"workflowTimeout"`
	WorkflowRetryRate int64 `json:"workflowRetryRate"`
	WorkflowRetry     int   `json:"workflowRetry"`
}

// Default returns the runtime's built-in defaults, applied before a
// configuration file is overlaid on top.
func Default() RuntimeConfiguration {
	return RuntimeConfiguration{
		SocketType:                SocketNIO,
		HandshakeTimeoutSec:       10,
		RequestTimeout:            5,
		IdleConnectionTimeoutSec:  60,
		KeepAlivePeriodSec:        30,
		ConnectionTimeout:         5,
		ConnectionRetryRate:       1,
		EventLoopThreadFormat:     "corfu-io-%d",
		EventLoopThreads:          4,
		ShutdownEventLoop:         true,
		WorkflowTimeout:           30,
		WorkflowRetryRate:         1,
		WorkflowRetry:             3,
	}
}
