// Package identity derives the device hostname and its MQTT topic names.
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
)

// MaxTopicLen is the capacity of a topic name in bytes, including the
// terminating NUL the unit firmware stores. Topics must be shorter than this.
const MaxTopicLen = 32

// Topic suffixes appended to the hostname.
const (
	SuffixCommand = "command"
	SuffixLocalIP = "localIp"
	SuffixLWT     = "lwt"
	SuffixRSSI    = "rssi"
	SuffixState   = "state"
	SuffixVersion = "version"
)

var (
	// ErrEmptyHostname is returned when no hostname is given.
	ErrEmptyHostname = errors.New("identity: empty hostname")
	// ErrTopicTooLong is returned when a derived topic exceeds MaxTopicLen.
	ErrTopicTooLong = errors.New("identity: topic exceeds capacity")
)

// Topics holds the per-device topic names.
type Topics struct {
	Command string
	LocalIP string
	LWT     string
	RSSI    string
	State   string
	Version string
}

// Identity is the immutable device identity.
type Identity struct {
	Hostname string
	Topics   Topics
}

// New derives the topic set for hostname.
func New(hostname string) (Identity, error) {
	if hostname == "" {
		return Identity{}, ErrEmptyHostname
	}
	t := Topics{
		Command: hostname + "/" + SuffixCommand,
		LocalIP: hostname + "/" + SuffixLocalIP,
		LWT:     hostname + "/" + SuffixLWT,
		RSSI:    hostname + "/" + SuffixRSSI,
		State:   hostname + "/" + SuffixState,
		Version: hostname + "/" + SuffixVersion,
	}
	for _, topic := range t.All() {
		if len(topic) >= MaxTopicLen {
			return Identity{}, fmt.Errorf("%w: %q is %d bytes, max %d", ErrTopicTooLong, topic, len(topic), MaxTopicLen-1)
		}
	}
	return Identity{Hostname: hostname, Topics: t}, nil
}

// All returns the topics in a fixed order.
func (t Topics) All() []string {
	return []string{t.Command, t.LocalIP, t.LWT, t.RSSI, t.State, t.Version}
}

// DefaultPrefix is the platform tag used in the hostname, e.g. "ARM64".
func DefaultPrefix() string {
	return strings.ToUpper(runtime.GOARCH)
}

// Hostname formats "<prefix>-<6 hex digits>".
func Hostname(prefix string, hwID uint32) string {
	return fmt.Sprintf("%s-%06X", prefix, hwID&0xFFFFFF)
}

// machineIDPath is a variable so tests can point it elsewhere.
var machineIDPath = "/etc/machine-id"

// HardwareID returns a 24-bit identifier unique to this host. It prefers the
// low three bytes of iface's MAC, then any other interface with a MAC, then
// /etc/machine-id. It returns 0 if nothing is available.
func HardwareID(iface string) uint32 {
	if iface != "" {
		if ifi, err := net.InterfaceByName(iface); err == nil {
			if id, ok := fromMAC(ifi.HardwareAddr); ok {
				return id
			}
		}
	}
	if ifaces, err := net.Interfaces(); err == nil {
		for _, ifi := range ifaces {
			if ifi.Flags&net.FlagLoopback != 0 {
				continue
			}
			if id, ok := fromMAC(ifi.HardwareAddr); ok {
				return id
			}
		}
	}
	if data, err := os.ReadFile(machineIDPath); err == nil {
		return fromMachineID(data)
	}
	return 0
}

func fromMAC(mac net.HardwareAddr) (uint32, bool) {
	if len(mac) < 3 || bytes.Equal(mac, make(net.HardwareAddr, len(mac))) {
		return 0, false
	}
	n := len(mac)
	return uint32(mac[n-3])<<16 | uint32(mac[n-2])<<8 | uint32(mac[n-1]), true
}

// fromMachineID takes the last six hex digits of a machine-id file.
func fromMachineID(data []byte) uint32 {
	s := strings.TrimSpace(string(data))
	if len(s) > 6 {
		s = s[len(s)-6:]
	}
	var id uint32
	if _, err := fmt.Sscanf(s, "%x", &id); err != nil {
		return 0
	}
	return id
}
