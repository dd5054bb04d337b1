package peers

import (
	"fmt"
	"net"
	"strconv"

	"github.com/mosaicnetworks/overlay/src/common"
)

// Record is a known remote address.
type Record struct {
	ID          uint32 `json:"-"`
	IP          string
	Port        int
	NumFailures int
}

// NewRecord creates a Record with no failures.
func NewRecord(ip string, port int) *Record {
	r := &Record{
		IP:   ip,
		Port: port,
	}
	r.computeID()
	return r
}

// NewRecordFromAddr parses a host:port address.
func NewRecordFromAddr(addr string) (*Record, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	r := NewRecord(host, port)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Address returns the host:port form of the record.
func (r *Record) Address() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// Validate checks that the record can be dialed.
func (r *Record) Validate() error {
	if r.IP == "" {
		return fmt.Errorf("empty IP")
	}
	if net.ParseIP(r.IP) == nil {
		return fmt.Errorf("invalid IP %q", r.IP)
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("invalid port %d", r.Port)
	}
	return nil
}

// computeID puts IP in canonical form, so that an address has a single
// record, and derives ID from the result.
func (r *Record) computeID() {
	r.IP = normalizeIP(r.IP)
	r.ID = common.Hash32([]byte(r.Address()))
}

// normalizeIP returns the canonical text form of ip. IPv4-mapped IPv6
// addresses become dotted quads. Strings that do not parse are returned as is.
func normalizeIP(ip string) string {
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}
	return ip
}

func (r *Record) copy() *Record {
	c := *r
	return &c
}

// ByReliability sorts records with the fewest failures first. Ties are broken
// by address so the order is stable.
type ByReliability []*Record

func (a ByReliability) Len() int      { return len(a) }
func (a ByReliability) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByReliability) Less(i, j int) bool {
	if a[i].NumFailures != a[j].NumFailures {
		return a[i].NumFailures < a[j].NumFailures
	}
	if a[i].IP != a[j].IP {
		return a[i].IP < a[j].IP
	}
	return a[i].Port < a[j].Port
}
