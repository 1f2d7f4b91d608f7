// Package netinfo reports the state of the network link the bridge uses and
// watches it for up/down transitions.
package netinfo

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultInterface is the wireless interface on a Raspberry Pi.
const DefaultInterface = "wlan0"

// pi-helper env var holding the associated SSID (written to /run/pi-helper.env).
const envNetworkWifiSSID = "NETWORK_WIFI_SSID"

// Info is a point-in-time view of the link.
type Info struct {
	Interface string
	Up        bool // interface up with an IPv4 address
	IP        string
	Mask      string
	MAC       string
	Gateway   string
	SSID      string
	RSSI      int // dBm, 0 if unknown
}

// Source returns the current link info.
type Source interface {
	Info() Info
}

// Reader reads link info from the host.
type Reader struct {
	iface    string
	procRoot string
	getenv   func(string) string
}

// NewReader creates a Reader for iface. An empty iface selects the first
// non-loopback interface that is up with an IPv4 address.
func NewReader(iface string) *Reader {
	return &Reader{iface: iface, procRoot: "/proc", getenv: os.Getenv}
}

// Info implements Source.
func (r *Reader) Info() Info {
	ifi, ipnet := r.pick()
	if ifi == nil {
		return Info{Interface: r.iface}
	}
	info := Info{
		Interface: ifi.Name,
		MAC:       ifi.HardwareAddr.String(),
		SSID:      r.getenv(envNetworkWifiSSID),
	}
	if ipnet != nil && ifi.Flags&net.FlagUp != 0 {
		info.Up = true
		info.IP = ipnet.IP.String()
		info.Mask = net.IP(ipnet.Mask).String()
	}
	if f, err := os.Open(filepath.Join(r.procRoot, "net", "route")); err == nil {
		info.Gateway = parseGateway(f, ifi.Name)
		f.Close()
	}
	if f, err := os.Open(filepath.Join(r.procRoot, "net", "wireless")); err == nil {
		if rssi, ok := parseRSSI(f, ifi.Name); ok {
			info.RSSI = rssi
		}
		f.Close()
	}
	return info
}

func (r *Reader) pick() (*net.Interface, *net.IPNet) {
	if r.iface != "" {
		ifi, err := net.InterfaceByName(r.iface)
		if err != nil {
			return nil, nil
		}
		return ifi, ipv4(ifi)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if ipnet := ipv4(ifi); ipnet != nil {
			return ifi, ipnet
		}
	}
	return nil, nil
}

func ipv4(ifi *net.Interface) *net.IPNet {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return &net.IPNet{IP: ip4, Mask: ipnet.Mask[len(ipnet.Mask)-net.IPv4len:]}
			}
		}
	}
	return nil
}

// parseGateway finds the default route for iface in /proc/net/route format.
func parseGateway(r io.Reader, iface string) string {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[0] != iface || fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, binary.LittleEndian.Uint32(raw))
		return ip.String()
	}
	return ""
}

// parseRSSI reads the signal level of iface in /proc/net/wireless format.
func parseRSSI(r io.Reader, iface string) (int, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		name, rest, ok := strings.Cut(line, ":")
		if !ok || name != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, false
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, false
		}
		return int(level), true
	}
	return 0, false
}
