package main

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coinswapd/coinswapd/clock"
	"github.com/coinswapd/coinswapd/contractwatch"
	"github.com/coinswapd/coinswapd/market"
	"github.com/coinswapd/coinswapd/queue"
	"github.com/coinswapd/coinswapd/swapdb"
	"github.com/coinswapd/coinswapd/swapwire"
)

// idleSessionTimeout is the default silence threshold past which a
// listening session's reserved UTXOs are freed, per the idle/liveness
// thread of the concurrency model.
const idleSessionTimeout = 5 * time.Minute

// maxPendingSessions bounds the session acceptor's back-pressure queue;
// beyond this, new connections are rejected with a resource-kind Error
// message rather than accepted and left to block.
const maxPendingSessions = 64

// server is coinswapd's central, long-lived daemon object: it owns the
// session acceptor, the offer book, the contract watcher, and every
// session worker. Grounded on the teacher's own server struct (atomic
// started/shutdown flags, a quit channel, a sync.WaitGroup joined at
// shutdown, and a single object other subsystems reach state through)
// with the lnwallet/htlcswitch/routing fields replaced by this daemon's
// own collaborators.
type server struct {
	started  int32 // atomic
	shutdown int32 // atomic

	cfg *config

	listener net.Listener
	pending  *queue.Bounded

	offerBook  *market.OfferBook
	watcher    *contractwatch.Watcher
	db         *swapdb.DB
	chain      *chainControl
	clock      clock.Clock
	walletImpl Wallet

	mu       sync.Mutex
	sessions map[string]*makerSession

	wg   sync.WaitGroup
	quit chan struct{}
}

// newServer wires up a server from an already-open database, chain
// control, and offer book; the caller (coinswapd.go) is responsible for
// their lifecycle up to this point.
func newServer(cfg *config, db *swapdb.DB, cc *chainControl, book *market.OfferBook, wallet Wallet) *server {
	s := &server{
		cfg:        cfg,
		pending:    queue.NewBounded(maxPendingSessions),
		offerBook:  book,
		db:         db,
		chain:      cc,
		clock:      clock.NewDefaultClock(),
		walletImpl: wallet,
		sessions:   make(map[string]*makerSession),
		quit:       make(chan struct{}),
	}
	s.watcher = contractwatch.New(cc.notifier, db, s)
	return s
}

// Publish implements contractwatch.Broadcaster by submitting a raw
// transaction to the chain backend.
func (s *server) Publish(txHex []byte) error {
	// The neutrino-backed chainControl exposes broadcast through its
	// ChainService directly; threading that call through here keeps
	// contractwatch decoupled from the concrete chain backend type.
	return s.chain.publish(txHex)
}

// Start brings up the session acceptor and the contract watcher. It is
// idempotent.
func (s *server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	if err := s.watcher.Start(); err != nil {
		return fmt.Errorf("starting contract watcher: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.cfg.ListenPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = lis

	daemonLog.Infof("session acceptor listening on %s (advertised as %s)",
		addr, s.cfg.OnionAddress)

	s.wg.Add(1)
	go s.acceptLoop()

	s.wg.Add(1)
	go s.idleEvictionLoop()

	return nil
}

// Stop signals every session worker and background loop to exit and waits
// for them to finish. It is idempotent.
func (s *server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.shutdown, 0, 1) {
		return nil
	}

	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	if err := s.watcher.Stop(); err != nil {
		daemonLog.Errorf("stopping contract watcher: %v", err)
	}
	s.wg.Wait()
	return nil
}

// WaitForShutdown blocks until every session worker has exited, usable by
// a caller that already triggered Stop and wants to block until it has
// fully completed.
func (s *server) WaitForShutdown() {
	s.wg.Wait()
}

// acceptLoop accepts inbound Taker connections and, applying
// maxPendingSessions back-pressure, spawns a makerSession per connection.
// Grounded on the teacher server's newPeers/donePeers channel pattern,
// simplified to a direct per-connection goroutine since each session is
// strictly request/response and does not need the htlcSwitch's shared
// routing table.
func (s *server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				daemonLog.Errorf("accept error: %v", err)
				continue
			}
		}

		// pending holds a capacity token per live session, not the
		// connection itself: Enqueue fails once maxPendingSessions
		// sessions are in flight, and the session goroutine drains
		// one token (any token; they're fungible) when it finishes.
		if err := s.pending.Enqueue(struct{}{}); err != nil {
			swapwire.WriteMessage(conn, &swapwire.Error{
				Kind:   swapwire.ErrKindResource,
				Reason: "too many active sessions, try again later",
			})
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.pending.Dequeue() }()
			s.runSession(conn)
		}()
	}
}

// runSession drives one inbound connection through the Maker-side
// protocol state machine for its entire lifetime.
func (s *server) runSession(conn net.Conn) {
	defer conn.Close()

	sess := newMakerSession(s, conn)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
	}()

	if err := sess.run(); err != nil {
		daemonLog.Warnf("session %s ended: %v", sess.id, err)
	}
}

// idleEvictionLoop periodically evicts sessions that have been silent
// past idleSessionTimeout, freeing any UTXOs they reserved.
func (s *server) idleEvictionLoop() {
	defer s.wg.Done()

	t := time.NewTicker(idleSessionTimeout / 2)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.evictIdleSessions()
		case <-s.quit:
			return
		}
	}
}

// activeSwapUtxos reports the funding outpoints currently reserved by
// in-flight sessions -- coins that have left the regular spendable pool
// but have not yet become a watched contract output. Backs the RPC
// surface's list-utxo-swap view.
func (s *server) activeSwapUtxos() []Utxo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Utxo
	for _, sess := range s.sessions {
		for _, leg := range []hopLeg{sess.receiving, sess.sending} {
			if leg.fundingAmount == 0 {
				continue
			}
			out = append(out, Utxo{
				Outpoint: leg.fundingOutpoint,
				Value:    leg.fundingAmount,
				PkScript: leg.fundingPkScript,
			})
		}
	}
	return out
}

func (s *server) evictIdleSessions() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivity()) > idleSessionTimeout {
			daemonLog.Infof("evicting idle session %s", id)
			sess.abort(fmt.Errorf("idle timeout"))
			delete(s.sessions, id)
		}
	}
}
