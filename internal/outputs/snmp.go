package outputs

import (
	"fmt"
	"log"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/metrics"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// SNMPOutput provides an SNMP agent for polling the latest page signals
type SNMPOutput struct {
	config  *config.SNMPConfig
	cache   *metrics.ReportsCache
	baseOID string

	mu    sync.RWMutex
	sites map[string]*siteNavStats

	// Report counters by signal type
	reportCounts map[models.SignalType]int64

	done     chan struct{}
	wg       sync.WaitGroup
	snmpConn *net.UDPConn

	// Scalar OIDs
	oidTree map[string]oidHandler
}

// siteNavStats aggregates navigation timing for one site
type siteNavStats struct {
	NavigationReports int64
	Last              models.NavigationMetrics
	LastReportTime    time.Time
	AvgLoad           float64
	MinLoad           float64
	MaxLoad           float64
}

// oidHandler returns the value of a scalar OID
type oidHandler func() gosnmp.SnmpPDU

// OID layout under the enterprise OID:
//
//	.1.<n>.0              general statistics
//	.2.<site>.<metric>    latest navigation metrics per site, sites ordered by name
//	.3.<index>.<metric>   recent reports, oldest first
const (
	generalBranch = ".1"
	siteBranch    = ".2"
	recentBranch  = ".3"

	siteMetricCount   = 12
	recentMetricCount = 4
)

// NewSNMPOutput creates and starts an SNMP agent, or returns nil when disabled
func NewSNMPOutput(cfg *config.SNMPConfig, cache *metrics.ReportsCache) (*SNMPOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	s := newSNMPAgent(cfg, cache)

	if err := s.startSNMPServer(); err != nil {
		return nil, fmt.Errorf("failed to start SNMP server: %w", err)
	}

	log.Printf("SNMP agent listening on %s:%d (community: %s)", cfg.ListenAddress, cfg.Port, cfg.Community)
	log.Printf("Enterprise OID: %s", s.baseOID)

	return s, nil
}

// newSNMPAgent builds the agent state without opening a socket
func newSNMPAgent(cfg *config.SNMPConfig, cache *metrics.ReportsCache) *SNMPOutput {
	if cache == nil {
		cache = metrics.NewReportsCache(0)
	}

	base := cfg.EnterpriseOID
	if base == "" {
		base = ".1.3.6.1.4.1.99999"
	}
	if !strings.HasPrefix(base, ".") {
		base = "." + base
	}

	s := &SNMPOutput{
		config:       cfg,
		cache:        cache,
		baseOID:      base,
		sites:        make(map[string]*siteNavStats),
		reportCounts: make(map[models.SignalType]int64),
		done:         make(chan struct{}),
		oidTree:      make(map[string]oidHandler),
	}
	s.initializeOIDTree()
	return s
}

func (s *SNMPOutput) generalOID(n int) string {
	return fmt.Sprintf("%s%s.%d.0", s.baseOID, generalBranch, n)
}

func (s *SNMPOutput) initializeOIDTree() {
	s.oidTree[s.generalOID(1)] = func() gosnmp.SnmpPDU {
		return gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: uint(s.cache.Count())}
	}

	s.oidTree[s.generalOID(2)] = func() gosnmp.SnmpPDU {
		return gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: uint(s.cache.MaxSize())}
	}

	s.oidTree[s.generalOID(3)] = func() gosnmp.SnmpPDU {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: uint(len(s.sites))}
	}

	s.oidTree[s.generalOID(4)] = func() gosnmp.SnmpPDU {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var total int64
		for _, n := range s.reportCounts {
			total += n
		}
		return gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(total)}
	}

	for i, t := range models.SignalTypes() {
		signalType := t
		s.oidTree[s.generalOID(5+i)] = func() gosnmp.SnmpPDU {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(s.reportCounts[signalType])}
		}
	}
}

func (s *SNMPOutput) startSNMPServer() error {
	addr := fmt.Sprintf("%s:%d", s.config.ListenAddress, s.config.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.snmpConn = conn

	s.wg.Add(1)
	go s.handleSNMPPackets()

	return nil
}

func (s *SNMPOutput) handleSNMPPackets() {
	defer s.wg.Done()
	defer s.snmpConn.Close()

	buffer := make([]byte, 65535)

	for {
		select {
		case <-s.done:
			return
		default:
			// Read deadline lets the loop notice shutdown
			s.snmpConn.SetReadDeadline(time.Now().Add(1 * time.Second))

			n, remoteAddr, err := s.snmpConn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				log.Printf("SNMP read error: %v", err)
				continue
			}

			packet := make([]byte, n)
			copy(packet, buffer[:n])
			go s.processSNMPPacket(packet, remoteAddr)
		}
	}
}

func (s *SNMPOutput) processSNMPPacket(data []byte, remoteAddr *net.UDPAddr) {
	responseData, err := s.handlePacket(data)
	if err != nil {
		log.Printf("SNMP request from %s: %v", remoteAddr, err)
		return
	}
	if responseData == nil {
		log.Printf("SNMP request from %s rejected (community or PDU type)", remoteAddr)
		return
	}

	if _, err := s.snmpConn.WriteToUDP(responseData, remoteAddr); err != nil {
		log.Printf("Failed to send SNMP response: %v", err)
	}
}

// handlePacket decodes a raw request and returns the encoded response, or
// nil when the request is rejected
func (s *SNMPOutput) handlePacket(data []byte) ([]byte, error) {
	packet, err := gosnmp.Default.SnmpDecodePacket(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode SNMP packet: %w", err)
	}

	response := s.respond(packet)
	if response == nil {
		return nil, nil
	}

	responseData, err := response.MarshalMsg()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SNMP response: %w", err)
	}
	return responseData, nil
}

// respond builds the response PDU for a request, or nil when the request
// is rejected
func (s *SNMPOutput) respond(packet *gosnmp.SnmpPacket) *gosnmp.SnmpPacket {
	if packet.Community != s.config.Community {
		return nil
	}

	response := &gosnmp.SnmpPacket{
		Version:   packet.Version,
		Community: packet.Community,
		PDUType:   gosnmp.GetResponse,
		RequestID: packet.RequestID,
		Variables: make([]gosnmp.SnmpPDU, 0, len(packet.Variables)),
	}

	switch packet.PDUType {
	case gosnmp.GetRequest:
		for _, v := range packet.Variables {
			response.Variables = append(response.Variables, s.getOIDValue(v.Name))
		}
	case gosnmp.GetNextRequest:
		for _, v := range packet.Variables {
			response.Variables = append(response.Variables, s.getNextOID(v.Name))
		}
	case gosnmp.GetBulkRequest:
		maxReps := packet.MaxRepetitions
		if maxReps == 0 {
			maxReps = 10
		}
		for _, v := range packet.Variables {
			current := v.Name
			for i := uint32(0); i < maxReps; i++ {
				pdu := s.getNextOID(current)
				if pdu.Type == gosnmp.EndOfMibView {
					break
				}
				response.Variables = append(response.Variables, pdu)
				current = pdu.Name
			}
		}
	default:
		log.Printf("Unsupported SNMP PDU type: %v", packet.PDUType)
		return nil
	}

	return response
}

func noSuchInstance(oid string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchInstance}
}

// getOIDValue retrieves the value for a specific OID
func (s *SNMPOutput) getOIDValue(oid string) gosnmp.SnmpPDU {
	if !strings.HasPrefix(oid, ".") {
		oid = "." + oid
	}

	if handler, exists := s.oidTree[oid]; exists {
		pdu := handler()
		pdu.Name = oid
		return pdu
	}

	if index, metric, ok := tableIndex(oid, s.baseOID+siteBranch); ok {
		return s.getSiteOID(oid, index, metric)
	}

	if index, metric, ok := tableIndex(oid, s.baseOID+recentBranch); ok {
		return s.getRecentOID(oid, index, metric)
	}

	return noSuchInstance(oid)
}

// tableIndex parses <prefix>.<index>.<metric>
func tableIndex(oid, prefix string) (int, int, bool) {
	if !strings.HasPrefix(oid, prefix+".") {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimPrefix(oid, prefix+"."), ".")
	if len(parts) != 2 {
		return 0, 0, false
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	metric, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return index, metric, true
}

// getNextOID finds the next OID in the tree
func (s *SNMPOutput) getNextOID(oid string) gosnmp.SnmpPDU {
	for _, next := range s.getAllOIDs() {
		if oidCompare(oid, next) < 0 {
			return s.getOIDValue(next)
		}
	}

	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.EndOfMibView}
}

// getAllOIDs returns all available OIDs in sorted order
func (s *SNMPOutput) getAllOIDs() []string {
	oids := make([]string, 0, len(s.oidTree))
	for oid := range s.oidTree {
		oids = append(oids, oid)
	}

	s.mu.RLock()
	siteCount := len(s.sites)
	s.mu.RUnlock()

	for i := 1; i <= siteCount; i++ {
		for metric := 1; metric <= siteMetricCount; metric++ {
			oids = append(oids, fmt.Sprintf("%s%s.%d.%d", s.baseOID, siteBranch, i, metric))
		}
	}

	for i := 1; i <= s.cache.Count(); i++ {
		for metric := 1; metric <= recentMetricCount; metric++ {
			oids = append(oids, fmt.Sprintf("%s%s.%d.%d", s.baseOID, recentBranch, i, metric))
		}
	}

	sortOIDs(oids)
	return oids
}

// siteNames returns the site names in index order. Caller holds s.mu.
func (s *SNMPOutput) siteNames() []string {
	names := make([]string, 0, len(s.sites))
	for name := range s.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// gaugeMs encodes milliseconds as an unsigned Gauge32
func gaugeMs(v float64) uint {
	if v <= 0 {
		return 0
	}
	return uint(math.Round(v))
}

func (s *SNMPOutput) getSiteOID(oid string, index, metric int) gosnmp.SnmpPDU {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.siteNames()
	if index < 1 || index > len(names) {
		return noSuchInstance(oid)
	}

	name := names[index-1]
	st := s.sites[name]

	gauge := func(v float64) gosnmp.SnmpPDU {
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Gauge32, Value: gaugeMs(v)}
	}

	switch metric {
	case 1:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: name}
	case 2:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(st.NavigationReports)}
	case 3:
		return gauge(st.Last.Load)
	case 4:
		return gauge(st.AvgLoad)
	case 5:
		return gauge(st.MinLoad)
	case 6:
		return gauge(st.MaxLoad)
	case 7:
		return gauge(st.Last.DNS)
	case 8:
		return gauge(st.Last.TCP)
	case 9:
		return gauge(st.Last.SSL)
	case 10:
		return gauge(st.Last.TTFB)
	case 11:
		return gauge(st.Last.DOMReady)
	case 12:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(st.LastReportTime.Unix())}
	default:
		return noSuchInstance(oid)
	}
}

func (s *SNMPOutput) getRecentOID(oid string, index, metric int) gosnmp.SnmpPDU {
	recent := s.cache.GetLast(s.cache.MaxSize())
	if index < 1 || index > len(recent) {
		return noSuchInstance(oid)
	}

	report := recent[index-1]

	switch metric {
	case 1:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: report.SiteName()}
	case 2:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(report.Timestamp.Unix())}
	case 3:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: string(report.Envelope.Type)}
	case 4:
		var load float64
		if m, ok := report.Envelope.Value.(models.NavigationMetrics); ok {
			load = m.Load
		}
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Gauge32, Value: gaugeMs(load)}
	default:
		return noSuchInstance(oid)
	}
}

// oidCompare compares two OIDs component by component
func oidCompare(oid1, oid2 string) int {
	oid1 = strings.TrimPrefix(oid1, ".")
	oid2 = strings.TrimPrefix(oid2, ".")

	parts1 := strings.Split(oid1, ".")
	parts2 := strings.Split(oid2, ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		n1, _ := strconv.Atoi(parts1[i])
		n2, _ := strconv.Atoi(parts2[i])

		if n1 < n2 {
			return -1
		} else if n1 > n2 {
			return 1
		}
	}

	switch {
	case len(parts1) < len(parts2):
		return -1
	case len(parts1) > len(parts2):
		return 1
	default:
		return 0
	}
}

// sortOIDs sorts OIDs in lexicographic order
func sortOIDs(oids []string) {
	sort.SliceStable(oids, func(i, j int) bool {
		return oidCompare(oids[i], oids[j]) < 0
	})
}

// Write updates per-site navigation statistics. Recent reports come from
// the shared cache, which is registered as its own output.
func (s *SNMPOutput) Write(report *models.Report) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reportCounts[report.Envelope.Type]++

	m, ok := report.Envelope.Value.(models.NavigationMetrics)
	if !ok {
		return nil
	}

	name := report.SiteName()
	st, exists := s.sites[name]
	if !exists {
		st = &siteNavStats{MinLoad: m.Load, MaxLoad: m.Load}
		s.sites[name] = st
	}

	st.NavigationReports++
	st.Last = m
	st.LastReportTime = report.Timestamp

	if m.Load < st.MinLoad {
		st.MinLoad = m.Load
	}
	if m.Load > st.MaxLoad {
		st.MaxLoad = m.Load
	}
	st.AvgLoad = (st.AvgLoad*float64(st.NavigationReports-1) + m.Load) / float64(st.NavigationReports)

	return nil
}

// SiteStats returns a copy of the statistics for one site
func (s *SNMPOutput) SiteStats(name string) (siteNavStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sites[name]
	if !ok {
		return siteNavStats{}, false
	}
	return *st, true
}

// Name returns the output module name
func (s *SNMPOutput) Name() string {
	return "snmp"
}

// Close shuts down the SNMP agent
func (s *SNMPOutput) Close() error {
	if s == nil {
		return nil
	}

	log.Println("Shutting down SNMP agent...")
	close(s.done)
	s.wg.Wait()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.siteNames() {
		st := s.sites[name]
		log.Printf("  %s: %d navigation reports, avg load: %.2f ms", name, st.NavigationReports, st.AvgLoad)
	}

	return nil
}
