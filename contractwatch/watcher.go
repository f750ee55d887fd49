package contractwatch

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinswapd/coinswapd/chainntfs"
)

// Broadcaster publishes a raw transaction to the network.
type Broadcaster interface {
	Publish(txHex []byte) error
}

// SweepBuilder produces the signed transactions a Watcher broadcasts once a
// contract output matures or a preimage is revealed on-chain. Built by the
// swap session that owns the private key material; the watcher never sees
// a private key directly.
type SweepBuilder interface {
	// BuildTimelockSweep returns a signed transaction sweeping hop's own
	// contract output via the timelock branch. Only valid once hop's
	// CSV relative locktime has matured past OwnContractTx's
	// confirmation.
	BuildTimelockSweep(hop *HopWatch) ([]byte, error)

	// BuildHashlockSweep returns a signed transaction sweeping the
	// counterparty's contract output via the hashlock branch, using a
	// preimage observed on-chain.
	BuildHashlockSweep(hop *HopWatch, preimage [32]byte) ([]byte, error)
}

// CheckpointStore persists and rehydrates HopWatch checkpoints across
// restarts. Satisfied by swapdb.DB's watch-bucket methods.
type CheckpointStore interface {
	PutWatch(key, value []byte) error
	DeleteWatch(key []byte) error
	ForEachWatch(cb func(key, value []byte) error) error
}

// Watcher is the subsystem that runs one contract-monitor loop per
// watched hop and races any adversarial contract broadcast it observes,
// per hop, against the rest of that hop's swap session.
type Watcher struct {
	notifier    chainntfs.ChainNotifier
	store       CheckpointStore
	broadcaster Broadcaster

	mu       sync.Mutex
	sessions map[string]*sessionWatch

	started uint32
	stopped uint32
	quit    chan struct{}
	wg      sync.WaitGroup
}

type sessionWatch struct {
	hops    []*HopWatch
	builder SweepBuilder
}

// New returns a Watcher backed by notifier for chain events, store for
// checkpoint persistence, and broadcaster for publishing raced contract
// transactions and sweeps.
func New(notifier chainntfs.ChainNotifier, store CheckpointStore, broadcaster Broadcaster) *Watcher {
	return &Watcher{
		notifier:    notifier,
		store:       store,
		broadcaster: broadcaster,
		sessions:    make(map[string]*sessionWatch),
		quit:        make(chan struct{}),
	}
}

// Start rehydrates any persisted watches and begins monitoring them.
// Rehydrated watches have no SweepBuilder until their owning session
// re-registers via WatchSession; until then they can detect but not react
// to a counterparty broadcast.
func (w *Watcher) Start() error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return nil
	}

	log.Infof("starting contract watcher")

	err := w.store.ForEachWatch(func(key, value []byte) error {
		hop := &HopWatch{}
		if err := hop.Decode(bytes.NewReader(value)); err != nil {
			log.Errorf("unable to decode persisted watch: %v", err)
			return nil
		}
		if hop.IsResolved() {
			return nil
		}
		w.trackHop(hop, nil)
		return nil
	})
	if err != nil {
		return fmt.Errorf("contractwatch: rehydrating watches: %w", err)
	}

	return nil
}

// Stop signals every monitor goroutine to exit and waits for them to do
// so.
func (w *Watcher) Stop() error {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return nil
	}

	log.Infof("stopping contract watcher")
	close(w.quit)
	w.wg.Wait()
	return nil
}

// ContractSats sums the value locked in every currently-watched,
// unresolved contract output this node controls one side of. Funding-stage
// amounts aren't tracked here since a HopWatch is only registered once its
// contract transaction exists, so they are reported separately by
// whichever collaborator still holds the in-flight funding UTXO.
func (w *Watcher) ContractSats() btcutil.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()

	var total btcutil.Amount
	for _, sess := range w.sessions {
		for _, hop := range sess.hops {
			if hop.IsResolved() || hop.OwnContractTx == nil {
				continue
			}
			for _, out := range hop.OwnContractTx.TxOut {
				total += btcutil.Amount(out.Value)
			}
		}
	}
	return total
}

// WatchSession begins monitoring every hop of a swap session, reacting to
// an adversarial contract broadcast on any one of them by immediately
// broadcasting this party's own contract transaction on every other hop
// in the same session.
func (w *Watcher) WatchSession(sessionID string, hops []*HopWatch, builder SweepBuilder) {
	w.mu.Lock()
	sess := &sessionWatch{hops: hops, builder: builder}
	w.sessions[sessionID] = sess
	w.mu.Unlock()

	for _, hop := range hops {
		hop.SessionID = sessionID
		w.trackHop(hop, sess)
	}
}

func (w *Watcher) trackHop(hop *HopWatch, sess *sessionWatch) {
	if sess == nil {
		w.mu.Lock()
		var ok bool
		sess, ok = w.sessions[hop.SessionID]
		if !ok {
			sess = &sessionWatch{}
			w.sessions[hop.SessionID] = sess
		}
		sess.hops = append(sess.hops, hop)
		w.mu.Unlock()
	}

	var buf bytes.Buffer
	if err := hop.Encode(&buf); err == nil {
		w.store.PutWatch(hop.ResolverKey(), buf.Bytes())
	}

	w.wg.Add(1)
	go w.watchHop(hop, sess)
}

// watchHop registers for a spend of hop's funding outpoint and reacts once
// one is observed: if the spend is this party's own contract tx, the hop
// proceeds normally toward its timelock sweep. If it's anything else, the
// counterparty has raced a contract broadcast, and every other hop in the
// session is immediately broadcast rather than waiting on its own
// timelock.
func (w *Watcher) watchHop(hop *HopWatch, sess *sessionWatch) {
	defer w.wg.Done()

	spendEvent, err := w.notifier.RegisterSpendNtfn(&hop.FundingOutpoint, hop.FundingPkScript, 0)
	if err != nil {
		log.Errorf("unable to watch funding outpoint %v: %v", hop.FundingOutpoint, err)
		return
	}

	select {
	case detail, ok := <-spendEvent.Spend:
		if !ok {
			return
		}
		w.handleSpend(hop, sess, detail)
	case <-w.quit:
		return
	}
}

// handleSpend reacts to a detected spend of hop's funding outpoint. If the
// spending transaction is this party's own contract tx, nothing adversarial
// happened and the hop proceeds to its normal timelock sweep. Otherwise the
// counterparty broadcast first: every other hop in the session is raced by
// broadcasting this party's own contract tx immediately, and if the
// adversary's spend reveals a hashlock preimage, that preimage is used to
// sweep their side of this hop too.
func (w *Watcher) handleSpend(hop *HopWatch, sess *sessionWatch, detail *chainntfs.SpendDetail) {
	if *detail.SpenderTxHash == hop.ownContractTxid() {
		w.scheduleTimelockSweep(hop, sess)
		return
	}

	hop.counterpartyBroadcast = true
	log.Warnf("session %s hop %d: counterparty broadcast contract tx %v "+
		"instead of the party's own; racing adjacent hops",
		hop.SessionID, hop.HopIndex, detail.SpenderTxHash)

	if sess != nil {
		w.raceAdjacentHops(hop, sess)
	}

	preimage, revealed := extractHashlockPreimage(detail.SpendingTx)
	if revealed && sess != nil && sess.builder != nil {
		sweepTx, err := sess.builder.BuildHashlockSweep(hop, preimage)
		if err != nil {
			log.Errorf("session %s hop %d: building hashlock sweep: %v",
				hop.SessionID, hop.HopIndex, err)
			return
		}
		if err := w.broadcast(sweepTx); err != nil {
			log.Errorf("session %s hop %d: broadcasting hashlock sweep: %v",
				hop.SessionID, hop.HopIndex, err)
		}
	}
}

// raceAdjacentHops broadcasts this party's own contract transaction for
// every other hop in sess, since the swap has collapsed and there is no
// reason left to wait on their individual timelocks.
func (w *Watcher) raceAdjacentHops(origin *HopWatch, sess *sessionWatch) {
	w.mu.Lock()
	hops := append([]*HopWatch(nil), sess.hops...)
	w.mu.Unlock()

	for _, hop := range hops {
		if hop == origin || hop.IsResolved() {
			continue
		}

		var txBuf bytes.Buffer
		if err := hop.OwnContractTx.Serialize(&txBuf); err != nil {
			log.Errorf("session %s hop %d: serializing contract tx: %v",
				hop.SessionID, hop.HopIndex, err)
			continue
		}
		if err := w.broadcast(txBuf.Bytes()); err != nil {
			log.Errorf("session %s hop %d: broadcasting raced contract tx: %v",
				hop.SessionID, hop.HopIndex, err)
		}
	}
}

// scheduleTimelockSweep waits for hop's own contract tx to mature past its
// CSV relative locktime and then broadcasts the timelock-branch sweep.
// Maturity is approximated as OwnTimelock+1 confirmations on the contract
// transaction itself, which is exact for a freshly broadcast input (whose
// relative locktime starts counting from its own first confirmation).
func (w *Watcher) scheduleTimelockSweep(hop *HopWatch, sess *sessionWatch) {
	if sess == nil || sess.builder == nil {
		return
	}

	txid := hop.ownContractTxid()
	confEvent, err := w.notifier.RegisterConfirmationsNtfn(&txid, hop.OwnTimelock+1, 0)
	if err != nil {
		log.Errorf("session %s hop %d: registering sweep maturity ntfn: %v",
			hop.SessionID, hop.HopIndex, err)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case _, ok := <-confEvent.Confirmed:
			if !ok {
				return
			}
		case <-w.quit:
			return
		}

		sweepTx, err := sess.builder.BuildTimelockSweep(hop)
		if err != nil {
			log.Errorf("session %s hop %d: building timelock sweep: %v",
				hop.SessionID, hop.HopIndex, err)
			return
		}
		if err := w.broadcast(sweepTx); err != nil {
			log.Errorf("session %s hop %d: broadcasting timelock sweep: %v",
				hop.SessionID, hop.HopIndex, err)
			return
		}
		hop.resolved = true
		w.store.DeleteWatch(hop.ResolverKey())
	}()
}

func (w *Watcher) broadcast(txHex []byte) error {
	if w.broadcaster == nil {
		return fmt.Errorf("contractwatch: no broadcaster configured")
	}
	return w.broadcaster.Publish(txHex)
}

// extractHashlockPreimage inspects a contract-sweep transaction's witness
// for the 32-byte preimage pushed on the hashlock branch: a four-item
// witness of the form <sig> <preimage> <1> <redeemScript>. Returns false if
// the spend used the timelock branch instead.
func extractHashlockPreimage(tx *wire.MsgTx) (preimage [32]byte, revealed bool) {
	if tx == nil || len(tx.TxIn) == 0 {
		return preimage, false
	}

	witness := tx.TxIn[0].Witness
	if len(witness) != 4 {
		return preimage, false
	}
	if len(witness[2]) != 1 || witness[2][0] != 1 {
		return preimage, false
	}
	if len(witness[1]) != 32 {
		return preimage, false
	}

	copy(preimage[:], witness[1])
	return preimage, true
}
