// Package discovery finds Carvera machines on the local network via a UDP
// broadcast query (§4.B). It never blocks longer than the configured
// window.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/sirupsen/logrus"
)

// Port is the machine-discovery UDP port (§6).
const Port = 3333

// queryPayload is the literal ASCII query byte sent on broadcast.
const queryPayload = "?"

// DefaultWindow is how long Query listens for responses after broadcasting.
const DefaultWindow = 3 * time.Second

// MachineInfo is one discovered machine record.
type MachineInfo struct {
	Name string
	IP   string
	Port uint16
	Busy bool
}

func (m MachineInfo) key() string { return m.IP + ":" + strconv.Itoa(int(m.Port)) }

// Discoverer broadcasts queries and accumulates responses between calls to
// Query and Collect.
type Discoverer struct {
	Window time.Duration

	seen map[string]MachineInfo
}

// NewDiscoverer returns a Discoverer with the default 3s window.
func NewDiscoverer() *Discoverer {
	return &Discoverer{Window: DefaultWindow, seen: make(map[string]MachineInfo)}
}

// Query broadcasts the discovery payload and listens on Port for Window,
// recording every well-formed response it sees.
func (d *Discoverer) Query() error {
	d.seen = make(map[string]MachineInfo)
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", Port))
	if err != nil {
		return &cncerr.DiscoveryError{Err: err}
	}
	defer conn.Close()

	broadcastAddr, err := localBroadcastAddr()
	if err != nil {
		return &cncerr.DiscoveryError{Err: err}
	}
	dst := &net.UDPAddr{IP: broadcastAddr, Port: Port}

	logrus.Debugf("discovery: broadcasting query to %s", dst)
	if _, err := conn.WriteTo([]byte(queryPayload), dst); err != nil {
		return &cncerr.DiscoveryError{Err: err}
	}

	deadline := time.Now().Add(d.Window)
	_ = conn.SetReadDeadline(deadline)
	buf := make([]byte, 512)
	for {
		if time.Now().After(deadline) {
			return nil
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return &cncerr.DiscoveryError{Err: err}
		}
		if info, ok := parseRecord(string(buf[:n])); ok {
			if d.seen == nil {
				d.seen = make(map[string]MachineInfo)
			}
			d.seen[info.key()] = info
		}
	}
}

// Collect returns all unique records seen since the last Query, de-duplicated
// by (ip, port).
func (d *Discoverer) Collect() []MachineInfo {
	out := make([]MachineInfo, 0, len(d.seen))
	for _, v := range d.seen {
		out = append(out, v)
	}
	return out
}

// parseRecord parses "<name>,<ip>,<port>,<busy-flag>"; malformed records are dropped.
func parseRecord(raw string) (MachineInfo, bool) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return MachineInfo{}, false
	}
	name := strings.TrimSpace(parts[0])
	ip := strings.TrimSpace(parts[1])
	if net.ParseIP(ip) == nil {
		return MachineInfo{}, false
	}
	portNum, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 16)
	if err != nil {
		return MachineInfo{}, false
	}
	busyFlag := strings.TrimSpace(parts[3])
	busy := busyFlag == "1" || strings.EqualFold(busyFlag, "true")
	return MachineInfo{Name: name, IP: ip, Port: uint16(portNum), Busy: busy}, true
}

// localBroadcastAddr picks the broadcast address of the first non-loopback
// IPv4 interface.
func localBroadcastAddr() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		bcast := make(net.IP, len(ip4))
		for i := range ip4 {
			bcast[i] = ip4[i] | ^ipnet.Mask[i]
		}
		return bcast, nil
	}
	return nil, fmt.Errorf("no usable IPv4 interface found for broadcast")
}
