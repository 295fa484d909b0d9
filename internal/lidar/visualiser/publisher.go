// Package visualiser streams published laser scans to remote viewers over
// gRPC.
//
// The service is described by a hand-written grpc.ServiceDesc and carries
// structpb.Struct messages, so no generated code is needed:
//   - Publisher: gRPC server lifecycle and fan-out to connected clients
//   - Server: the ScanService implementation
//   - Client: a small helper for consumers and tests
//   - Forwarder: publishes each new scan of a sensor
package visualiser

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/laserscan"
)

// Config holds configuration for the scan stream server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// ClientBuffer is the number of scans queued per client before scans
	// are dropped for that client.
	ClientBuffer int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50061",
		MaxClients:   5,
		ClientBuffer: 10,
	}
}

const (
	queueSize  = 100
	maxMsgSize = 16 * 1024 * 1024
)

// Publisher manages the gRPC server and scan broadcasting.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	scanChan  chan *laserscan.Message
	clients   map[string]*clientStream
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	// Stats
	scanCount     atomic.Uint64
	clientCount   atomic.Int32
	droppedScans  atomic.Uint64
	lastStatsTime time.Time
	lastScanCount uint64
	lastStatsMu   sync.Mutex

	// Lifecycle
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// clientStream represents a connected streaming client.
type clientStream struct {
	id      string
	frameID string // empty streams every sensor
	scanCh  chan *laserscan.Message
}

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultConfig().ClientBuffer
	}
	return &Publisher{
		config:   cfg,
		scanChan: make(chan *laserscan.Message, queueSize),
		clients:  make(map[string]*clientStream),
		stopCh:   make(chan struct{}),
	}
}

// Start listens on the configured address and serves the scan stream.
func (p *Publisher) Start() error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve serves the scan stream on lis in the background. The publisher
// owns lis from here on.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		lis.Close()
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterScanServiceServer(p.server, NewServer(p))

	p.wg.Add(1)
	go p.broadcastLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		lidar.Opsf("visualiser: gRPC scan stream listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			lidar.Opsf("visualiser: gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop gracefully stops the gRPC server. Open streams are ended first so
// the graceful stop does not wait on them.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	if p.server != nil {
		p.server.GracefulStop()
	}
	if p.listener != nil {
		p.listener.Close()
	}
	p.wg.Wait()
	lidar.Opsf("visualiser: gRPC server stopped")
}

// Publish queues a scan for every connected client. The message must not
// be modified afterwards. When the queue is full the scan is dropped.
func (p *Publisher) Publish(msg laserscan.Message) {
	if !p.running.Load() {
		return
	}
	select {
	case p.scanChan <- &msg:
		count := p.scanCount.Add(1)
		p.logPeriodicStats(count)
	default:
		dropped := p.droppedScans.Add(1)
		lidar.Opsf("visualiser: dropped scan %s/%d (total dropped: %d), queue full", msg.FrameID, msg.Seq, dropped)
	}
}

// logPeriodicStats logs throughput every 5 seconds.
func (p *Publisher) logPeriodicStats(count uint64) {
	p.lastStatsMu.Lock()
	defer p.lastStatsMu.Unlock()

	now := time.Now()
	if p.lastStatsTime.IsZero() {
		p.lastStatsTime = now
		p.lastScanCount = count
		return
	}
	elapsed := now.Sub(p.lastStatsTime)
	if elapsed < 5*time.Second {
		return
	}
	rate := float64(count-p.lastScanCount) / elapsed.Seconds()
	lidar.Diagf("visualiser: scans/s=%.1f published=%d dropped=%d clients=%d queue=%d/%d",
		rate, count, p.droppedScans.Load(), p.clientCount.Load(), len(p.scanChan), queueSize)
	p.lastStatsTime = now
	p.lastScanCount = count
}

// broadcastLoop distributes scans to all connected clients.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case msg := <-p.scanChan:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				if client.frameID != "" && client.frameID != msg.FrameID {
					continue
				}
				select {
				case client.scanCh <- msg:
				default:
					// Slow client: drop for this client only.
					p.droppedScans.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// addClient registers a new streaming client, or returns false when the
// client limit is reached.
func (p *Publisher) addClient(frameID string) (*clientStream, bool) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if p.config.MaxClients > 0 && len(p.clients) >= p.config.MaxClients {
		return nil, false
	}
	client := &clientStream{
		id:      fmt.Sprintf("grpc-%d", p.nextID.Add(1)),
		frameID: frameID,
		scanCh:  make(chan *laserscan.Message, p.config.ClientBuffer),
	}
	p.clients[client.id] = client
	n := p.clientCount.Add(1)
	lidar.Opsf("visualiser: client connected: %s frame=%q (total: %d)", client.id, frameID, n)
	return client, true
}

// removeClient unregisters a streaming client.
func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	_, ok := p.clients[id]
	delete(p.clients, id)
	p.clientsMu.Unlock()
	if ok {
		n := p.clientCount.Add(-1)
		lidar.Opsf("visualiser: client disconnected: %s (remaining: %d)", id, n)
	}
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		ScanCount:    p.scanCount.Load(),
		DroppedScans: p.droppedScans.Load(),
		ClientCount:  p.clientCount.Load(),
		Running:      p.running.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	ScanCount    uint64 `json:"scan_count"`
	DroppedScans uint64 `json:"dropped_scans"`
	ClientCount  int32  `json:"client_count"`
	Running      bool   `json:"running"`
}
