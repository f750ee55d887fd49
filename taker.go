package main

import (
	"bytes"
	crand "crypto/rand"
	"fmt"
	mrand "math/rand"
	"net"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/errgroup"

	"github.com/coinswapd/coinswapd/contractwatch"
	"github.com/coinswapd/coinswapd/market"
	"github.com/coinswapd/coinswapd/swapscript"
	"github.com/coinswapd/coinswapd/swapwire"
	"github.com/coinswapd/coinswapd/swaptor"
)

// takerEdge is the Taker's view of a single funding edge: the amount that
// crosses it, the timelock its contract carries, and (once negotiated) the
// material needed to track or sweep it. Edge 0 is always funded by the
// Taker itself; edge hopCount always pays back to the Taker, closing the
// loop; edges in between are funded and received entirely by Makers, and
// the Taker only ever sees their wire messages pass through, never their
// private key material.
type takerEdge struct {
	amount   btcutil.Amount
	timelock uint32
}

// takerSwap drives the Taker side of one coinswap end to end: route
// selection, per-hop handshakes, the sender-contract / proof-of-funding /
// receiver-contract relay for every middle edge, and the final settlement
// walk. A takerSwap is used once and discarded; nothing about it is safe
// for concurrent use from more than one goroutine.
type takerSwap struct {
	id  string
	srv *server

	route    []market.CandidateOffer
	hopCount int
	conns    []net.Conn // conns[i] is the session with route[i]'s Maker

	edges    []takerEdge // len hopCount+1, indexed by edge number
	preimage [32]byte
	hashX160 [20]byte

	// makerRecvPub/makerRecvHashlock are the Makers' fresh per-swap
	// receiving-leg pubkeys, fetched eagerly right after handshake so
	// every Maker's ReqReceiverPubkeys request (made of the Taker while
	// relaying a middle edge) can be answered without a second round trip.
	makerRecvPub     []*btcec.PublicKey
	makerRecvHashlock []*btcec.PublicKey

	// The Taker's own receiving-leg material, for edge hopCount: generated
	// exactly like a Maker would generate its own in
	// handleReceiverPubkeysRequest.
	recvTweak     [32]byte
	recvPub       *btcec.PublicKey
	recvHashlock  *btcec.PublicKey
	recvPriv      *btcec.PrivateKey
	recvContractTx           *wire.MsgTx
	recvContractRedeemScript []byte
	recvFundingOutpoint      wire.OutPoint
	recvFundingPkScript      []byte
	recvFundingScript        []byte
	recvCounterPub           *btcec.PublicKey // maker[hopCount-1]'s own pubkey for edge hopCount
	recvCounterPriv          *btcec.PrivateKey
	recvOwnContractSig       []byte // this party's own raw signature over the closing contract, SIGHASH_ALL byte included

	// The Taker's own sending-leg material, for edge 0.
	sendPub       *btcec.PublicKey
	sendPriv      *btcec.PrivateKey
	sendContractTx           *wire.MsgTx
	sendFundingOutpoint      wire.OutPoint
	sendFundingPkScript      []byte
	sendFundingScript        []byte
	sendContractRedeemScript []byte

	// senderPub[i] is route[i]'s own sending-leg pubkey for edge i+1,
	// learned the moment that Maker proposes its own outgoing contract in
	// advanceEdge; needed only to sanity-check the key it discloses
	// during settlement.
	senderPub []*btcec.PublicKey
}

// newTakerSwap allocates a swap routed through hopCount Makers; the caller
// still needs to call selectRoute, which takes the amount, before anything
// else.
func newTakerSwap(srv *server, hopCount int) *takerSwap {
	return &takerSwap{
		id:       uuid.NewString(),
		srv:      srv,
		hopCount: hopCount,
	}
}

// ExecuteSwap runs an entire coinswap of amount satoshis through hopCount
// Makers drawn from the offer book, blocking until settlement completes or
// an error aborts it partway through.
func (srv *server) ExecuteSwap(amount btcutil.Amount, hopCount int) error {
	t := newTakerSwap(srv, hopCount)
	if err := t.selectRoute(amount); err != nil {
		return fmt.Errorf("selecting route: %w", err)
	}
	defer t.closeConns()

	if err := t.dialAndPrefetch(); err != nil {
		return fmt.Errorf("dialing route: %w", err)
	}
	if err := t.generatePreimage(); err != nil {
		return fmt.Errorf("generating swap secret: %w", err)
	}
	if err := t.generateOwnReceivingMaterial(); err != nil {
		return fmt.Errorf("generating closing-leg keys: %w", err)
	}

	if err := t.negotiateEdgeZero(); err != nil {
		return fmt.Errorf("negotiating edge 0: %w", err)
	}
	for e := 1; e <= t.hopCount; e++ {
		if err := t.advanceEdge(e); err != nil {
			return fmt.Errorf("advancing edge %d: %w", e, err)
		}
	}
	if err := t.settle(); err != nil {
		return fmt.Errorf("settling: %w", err)
	}

	t.registerWatches()
	daemonLog.Infof("taker swap %s settled across %d hops", t.id, t.hopCount)
	return nil
}

func (t *takerSwap) closeConns() {
	for _, c := range t.conns {
		if c != nil {
			c.Close()
		}
	}
}

// selectRoute asks the offer book for every authenticated candidate still
// on file and picks hopCount of them, weighted by fidelity bond value, then
// lays out the per-edge amounts (shrinking by each Maker's advertised fee
// as the swap routes through it) and the per-edge timelocks (shrinking by
// cfg.MinGap per hop, so each hop downstream has strictly less time to
// react than the hop before it).
func (t *takerSwap) selectRoute(amount btcutil.Amount) error {
	candidates, err := t.srv.offerBook.Candidates()
	if err != nil {
		return fmt.Errorf("listing candidate offers: %w", err)
	}
	height, err := t.srv.chain.CurrentHeight()
	if err != nil {
		return fmt.Errorf("querying chain tip: %w", err)
	}

	route, err := market.SelectRoute(candidates, t.hopCount, t.srv.cfg.MaxFeeSats, height, mrand.New(mrand.NewSource(int64(height))))
	if err != nil {
		return err
	}
	t.route = route

	t.edges = make([]takerEdge, t.hopCount+1)
	t.edges[0].amount = amount
	for e := 0; e < t.hopCount; e++ {
		fee := hopFee(route[e].Offer.Fee, t.edges[e].amount)
		if fee >= t.edges[e].amount {
			return fmt.Errorf("hop %d fee %d would consume the entire routed amount %d", e, fee, t.edges[e].amount)
		}
		t.edges[e+1].amount = t.edges[e].amount - fee
	}
	for e := 0; e <= t.hopCount; e++ {
		t.edges[e].timelock = t.srv.cfg.BaseTimelock + uint32(t.hopCount-e)*t.srv.cfg.MinGap
	}
	return nil
}

// hopFee is the amount a Maker keeps for routing one hop: a flat
// per-swap charge plus a fraction of the amount it forwards.
// TimeRelativeFeeSatsPB is left unapplied; this daemon does not yet price
// in the timelock a Maker ties up its liquidity for.
func hopFee(model swapwire.FeeModel, amount btcutil.Amount) btcutil.Amount {
	return btcutil.Amount(model.AbsoluteFeeSats) +
		amount*btcutil.Amount(model.AmountRelativeFeePPM)/1_000_000
}

// dialAndPrefetch opens a connection to every Maker in the route,
// handshakes it, and fetches its fresh receiving-leg pubkeys up front, in
// parallel. Maker-side handleSenderContractSigs always expects
// ReqReceiverPubkeys as the very first message after the handshake; doing
// this eagerly for every hop means that by the time a middle edge's
// upstream sender asks the Taker (via its own ReqReceiverPubkeys, relayed
// over a different connection) for "the next hop's receiver pubkeys", the
// Taker already has the answer in hand with no further round trip.
func (t *takerSwap) dialAndPrefetch() error {
	t.conns = make([]net.Conn, t.hopCount)
	t.makerRecvPub = make([]*btcec.PublicKey, t.hopCount)
	t.makerRecvHashlock = make([]*btcec.PublicKey, t.hopCount)
	t.senderPub = make([]*btcec.PublicKey, t.hopCount)

	var g errgroup.Group
	for i := range t.route {
		i := i
		g.Go(func() error {
			conn, err := t.dialMaker(t.route[i].OnionAddress)
			if err != nil {
				return fmt.Errorf("dialing %s: %w", t.route[i].OnionAddress, err)
			}
			t.conns[i] = conn

			if err := writeMessage(conn, &swapwire.TakerHello{Version: protocolVersion}); err != nil {
				return err
			}
			msg, err := readMessage(conn)
			if err != nil {
				return err
			}
			hello, ok := msg.(*swapwire.MakerHello)
			if !ok {
				return fmt.Errorf("%s: expected MakerHello, got %s", t.route[i].OnionAddress, msg.MsgType())
			}
			if hello.Version != protocolVersion {
				return fmt.Errorf("%s: version mismatch, peer %d we %d", t.route[i].OnionAddress, hello.Version, protocolVersion)
			}

			if err := writeMessage(conn, &swapwire.ReqReceiverPubkeys{}); err != nil {
				return err
			}
			resp, err := readMessage(conn)
			if err != nil {
				return err
			}
			pubkeys, ok := resp.(*swapwire.RespReceiverPubkeys)
			if !ok {
				return fmt.Errorf("%s: expected RespReceiverPubkeys, got %s", t.route[i].OnionAddress, resp.MsgType())
			}
			t.makerRecvPub[i] = pubkeys.FundingPubkey
			t.makerRecvHashlock[i] = pubkeys.HashlockPubkey
			return nil
		})
	}
	return g.Wait()
}

func (t *takerSwap) dialMaker(onionAddr string) (net.Conn, error) {
	if _, err := swaptor.ParseOnionAddress(onionAddr); err != nil {
		return nil, err
	}
	dialer, err := proxy.SOCKS5("tcp", t.srv.cfg.TorProxy, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("building SOCKS5 dialer: %w", err)
	}
	return dialer.Dial("tcp", onionAddr)
}

func (t *takerSwap) generatePreimage() error {
	if _, err := crand.Read(t.preimage[:]); err != nil {
		return err
	}
	t.hashX160 = swapscript.Hash160FromPreimage(t.preimage)
	return nil
}

// generateOwnReceivingMaterial mirrors what a Maker does for itself in
// handleReceiverPubkeysRequest: a fresh multisig pubkey and a fresh
// hashlock tweak, since the Taker is the receiver of the loop-closing
// edge exactly the way a Maker is the receiver of its incoming edge.
func (t *takerSwap) generateOwnReceivingMaterial() error {
	tweak, err := randomTweak()
	if err != nil {
		return err
	}
	pub, err := t.srv.wallet().NewMultisigPubkey()
	if err != nil {
		return err
	}
	priv, err := t.srv.wallet().PrivKeyFor(pub)
	if err != nil {
		return err
	}
	t.recvTweak = tweak
	t.recvPub = pub
	t.recvPriv = priv
	t.recvHashlock = swapscript.DeriveHashlockPubkey(pub, tweak)
	return nil
}

// receiverPubkeyForEdge returns the funding pubkey of whoever receives
// edge e: the corresponding Maker's prefetched pubkey, or the Taker's own
// if e is the loop-closing edge.
func (t *takerSwap) receiverPubkeyForEdge(e int) *btcec.PublicKey {
	if e == t.hopCount {
		return t.recvPub
	}
	return t.makerRecvPub[e]
}

// negotiateEdgeZero plays the sender's half of the protocol for edge 0:
// the Taker funds it itself, builds the matching contract transaction,
// signs its own half, and exchanges ReqContractSigsForSender with the
// first Maker in the route the same way a Maker's
// proposeReceiverAndSenderContracts would, except no dedicated
// ReqReceiverPubkeys round trip is needed since dialAndPrefetch already
// ran it.
func (t *takerSwap) negotiateEdgeZero() error {
	conn := t.conns[0]
	amount := t.edges[0].amount

	ownPub, err := t.srv.wallet().NewMultisigPubkey()
	if err != nil {
		return fmt.Errorf("allocating edge 0 multisig key: %w", err)
	}
	ownPriv, err := t.srv.wallet().PrivKeyFor(ownPub)
	if err != nil {
		return fmt.Errorf("fetching edge 0 signing key: %w", err)
	}
	t.sendPub = ownPub
	t.sendPriv = ownPriv

	fundingScript, fundingOut, err := swapscript.FundingOutput(ownPub, t.makerRecvPub[0], amount)
	if err != nil {
		return fmt.Errorf("building edge 0 funding output: %w", err)
	}
	t.sendFundingScript = fundingScript
	t.sendFundingPkScript = fundingOut.PkScript

	fundingTx, err := t.srv.wallet().BuildFundingTx(fundingOut.PkScript, amount)
	if err != nil {
		return fmt.Errorf("building edge 0 funding tx: %w", err)
	}
	t.sendFundingOutpoint = wire.OutPoint{Hash: fundingTx.TxHash(), Index: 0}
	if err := t.srv.wallet().Broadcast(fundingTx); err != nil {
		return fmt.Errorf("broadcasting edge 0 funding tx: %w", err)
	}

	contractAmount := amount - contractTxFee
	contractRedeemScript, contractOut, err := swapscript.ContractOutput(swapscript.ContractParams{
		HashlockPubkey: t.makerRecvHashlock[0],
		TimelockPubkey: ownPub,
		Hash160:        t.hashX160,
		Timelock:       t.edges[0].timelock,
	}, contractAmount)
	if err != nil {
		return fmt.Errorf("building edge 0 contract output: %w", err)
	}

	contractTx := wire.NewMsgTx(wire.TxVersion)
	contractTx.AddTxIn(&wire.TxIn{PreviousOutPoint: t.sendFundingOutpoint})
	contractTx.AddTxOut(contractOut)
	t.sendContractTx = contractTx

	ownSig, err := swapscript.SignContractInput(contractTx, fundingScript, amount, ownPriv)
	if err != nil {
		return fmt.Errorf("signing edge 0 contract: %w", err)
	}

	template := swapwire.ContractTxTemplate{
		ContractTx:      contractTx,
		FundingOutpoint: t.sendFundingOutpoint,
		FundingAmount:   uint64(amount),
		HashlockPubkey:  t.makerRecvHashlock[0],
		TimelockPubkey:  ownPub,
		HashX160:        t.hashX160,
		Timelock:        t.edges[0].timelock,
	}
	if err := writeMessage(conn, &swapwire.ReqContractSigsForSender{
		ContractTxTemplates: []swapwire.ContractTxTemplate{template},
		Fundings: []swapwire.FundingInfo{{
			FundingTx:    fundingTx,
			OutputIndex:  0,
			RedeemScript: fundingScript,
		}},
	}); err != nil {
		return err
	}

	msg, err := readMessage(conn)
	if err != nil {
		return err
	}
	resp, ok := msg.(*swapwire.RespContractSigsForSender)
	if !ok || len(resp.Sigs) == 0 {
		return fmt.Errorf("expected RespContractSigsForSender, got %s", msg.MsgType())
	}
	if err := swapscript.VerifyContractInputSig(contractTx, fundingScript, amount,
		t.makerRecvPub[0], derSigWithSigHashAll(resp.Sigs[0])); err != nil {
		return fmt.Errorf("verifying hop 0's signature on edge 0 contract: %w", err)
	}
	t.sendContractRedeemScript = contractRedeemScript

	// Unlike a middle edge, where the sending Maker's own half only
	// arrives later via handleReceiverContractSigsRequest, the Taker
	// signs its own sending leg synchronously right here, so both halves
	// are already in hand.
	finalizeContractWitness(contractTx, fundingScript, ownPub, t.makerRecvPub[0],
		ownSig, derSigWithSigHashAll(resp.Sigs[0]))

	if err := t.waitAndProveFunding(0, fundingTx, fundingScript); err != nil {
		return err
	}
	return nil
}

// waitAndProveFunding blocks until edge e's funding transaction reaches
// the configured confirmation depth, then reports it (plus edge e+1's
// parameters, if there is one) to the receiver of edge e.
func (t *takerSwap) waitAndProveFunding(e int, fundingTx *wire.MsgTx, fundingScript []byte) error {
	confs, err := t.waitForConfirmations(fundingTx.TxHash())
	if err != nil {
		return fmt.Errorf("waiting for edge %d funding to confirm: %w", e, err)
	}

	proof := &swapwire.RespProofOfFunding{
		Fundings: []swapwire.FundingInfo{{
			FundingTx:    fundingTx,
			OutputIndex:  0,
			RedeemScript: fundingScript,
		}},
		Confirmations:         []uint32{confs},
		MultisigRedeemScripts: [][]byte{fundingScript},
	}
	if e < t.hopCount {
		proof.NextHopData = swapwire.NextHopData{
			HopIndex:              uint32(e + 1),
			SendAmount:            uint64(t.edges[e+1].amount),
			Timelock:              t.edges[e+1].timelock,
			HashX160:              t.hashX160,
			HasCounterpartyPubkey: true,
			CounterpartyPubkey:    t.receiverPubkeyForEdge(e + 1),
		}
	}

	// Edge e's receiver is route[e]'s Maker, reached on the same
	// connection that carried its sender-contract signature; there is no
	// receiver to notify once e reaches hopCount, since the loop is
	// closed and the Taker is that receiver itself.
	if e == t.hopCount {
		return nil
	}
	return writeMessage(t.conns[e], proof)
}

func (t *takerSwap) waitForConfirmations(txid chainhash.Hash) (uint32, error) {
	ev, err := t.srv.chain.notifier.RegisterConfirmationsNtfn(&txid, t.srv.cfg.MinConfs, 0)
	if err != nil {
		return 0, fmt.Errorf("registering confirmation notification: %w", err)
	}
	select {
	case <-ev.Confirmed:
		// Confirmed carries a block height; the proof-of-funding message
		// reports a confirmation count, which is MinConfs once it fires.
		return t.srv.cfg.MinConfs, nil
	case <-t.srv.quit:
		return 0, fmt.Errorf("server shutting down")
	}
}

// advanceEdge drives edge e's funding and contract negotiation to
// completion. It reads the combined request that edge e's sender (Maker
// route[e-1], always reached through conns[e-1]) sent autonomously once it
// received proof of edge e-1's funding, relays each half to whoever needs
// to sign it, and - once edge e's sender has supplied its own
// countersignature - reports proof of edge e's funding onward.
func (t *takerSwap) advanceEdge(e int) error {
	senderConn := t.conns[e-1]

	msg, err := readMessage(senderConn)
	if err != nil {
		return err
	}
	// route[e-1]'s Maker first asks for edge e's receiver pubkeys; answer
	// from the keys dialAndPrefetch (or generateOwnReceivingMaterial) holds.
	if _, ok := msg.(*swapwire.ReqReceiverPubkeys); ok {
		hashlock := t.recvHashlock
		if e < t.hopCount {
			hashlock = t.makerRecvHashlock[e]
		}
		if err := writeMessage(senderConn, &swapwire.RespReceiverPubkeys{
			FundingPubkey: t.receiverPubkeyForEdge(e), HashlockPubkey: hashlock,
		}); err != nil {
			return err
		}
		if msg, err = readMessage(senderConn); err != nil {
			return err
		}
	}
	req, ok := msg.(*swapwire.ReqContractSigsAsRecvrAndSender)
	if !ok {
		return fmt.Errorf("expected ReqContractSigsAsRecvrAndSender, got %s", msg.MsgType())
	}
	if len(req.SenderContracts) > 0 {
		t.senderPub[e-1] = req.SenderContracts[0].TimelockPubkey
	}
	if len(req.SenderContracts) == 0 || len(req.SenderFundings) == 0 || len(req.ReceiverContracts) == 0 {
		return fmt.Errorf("malformed combined contract request")
	}

	receiverSig, err := t.collectReceiverSigForEdge(e, req.SenderContracts[0], req.SenderFundings[0])
	if err != nil {
		return fmt.Errorf("collecting edge %d receiver signature: %w", e, err)
	}
	upstreamSig, err := t.collectUpstreamSigForEdge(e - 1, req.ReceiverContracts[0])
	if err != nil {
		return fmt.Errorf("collecting edge %d upstream signature: %w", e-1, err)
	}

	if err := writeMessage(senderConn, &swapwire.RespContractSigsForReceiverAndSender{
		SenderSigs:   []*ecdsa.Signature{receiverSig},
		ReceiverSigs: []*ecdsa.Signature{upstreamSig},
	}); err != nil {
		return err
	}

	// route[e-1]'s Maker now expects the separate ReqContractSigsForReceiver
	// round trip: it, as sender of edge e, owes its own countersignature on
	// edge e's contract. For every edge but the last this reply is only
	// needed to let that Maker's own state machine proceed; for the last
	// edge the Taker is edge e's receiver and genuinely needs the returned
	// signature to finish assembling its own contract's witness.
	if err := writeMessage(senderConn, &swapwire.ReqContractSigsForReceiver{
		ContractTxs: req.SenderContracts,
	}); err != nil {
		return err
	}
	msg2, err := readMessage(senderConn)
	if err != nil {
		return err
	}
	resp2, ok := msg2.(*swapwire.RespContractSigsForReceiver)
	if !ok || len(resp2.Sigs) == 0 {
		return fmt.Errorf("expected RespContractSigsForReceiver, got %s", msg2.MsgType())
	}

	if e == t.hopCount {
		t.recvContractTx = req.SenderContracts[0].ContractTx
		t.recvFundingOutpoint = req.SenderContracts[0].FundingOutpoint
		t.recvFundingScript = req.SenderFundings[0].RedeemScript
		t.recvFundingPkScript = req.SenderFundings[0].FundingTx.TxOut[req.SenderFundings[0].OutputIndex].PkScript
		t.recvCounterPub = req.SenderContracts[0].TimelockPubkey

		redeemScript, err := swapscript.ContractRedeemScript(swapscript.ContractParams{
			HashlockPubkey: t.recvHashlock,
			TimelockPubkey: t.recvCounterPub,
			Hash160:        t.hashX160,
			Timelock:       t.edges[e].timelock,
		})
		if err != nil {
			return fmt.Errorf("rebuilding closing-leg redeem script: %w", err)
		}
		t.recvContractRedeemScript = redeemScript

		if err := swapscript.VerifyContractInputSig(t.recvContractTx, t.recvFundingScript,
			t.edges[e].amount, t.recvCounterPub, derSigWithSigHashAll(resp2.Sigs[0])); err != nil {
			return fmt.Errorf("verifying hop %d's own signature on closing contract: %w", e-1, err)
		}
		finalizeContractWitness(t.recvContractTx, t.recvFundingScript,
			t.recvPub, t.recvCounterPub, t.recvOwnContractSig, derSigWithSigHashAll(resp2.Sigs[0]))
	}

	return t.waitAndProveFunding(e, req.SenderFundings[0].FundingTx, req.SenderFundings[0].RedeemScript)
}

// collectReceiverSigForEdge obtains the signature the receiver of edge e
// owes on edge e's contract: relayed from the corresponding Maker via
// ReqContractSigsForSender/RespContractSigsForSender for every middle
// edge, or produced locally - exactly the way handleSenderContractSigs
// would - when the Taker itself is that receiver.
func (t *takerSwap) collectReceiverSigForEdge(e int, tpl swapwire.ContractTxTemplate, funding swapwire.FundingInfo) (*ecdsa.Signature, error) {
	if e < t.hopCount {
		conn := t.conns[e]
		if err := writeMessage(conn, &swapwire.ReqContractSigsForSender{
			ContractTxTemplates: []swapwire.ContractTxTemplate{tpl},
			Fundings:            []swapwire.FundingInfo{funding},
		}); err != nil {
			return nil, err
		}
		msg, err := readMessage(conn)
		if err != nil {
			return nil, err
		}
		resp, ok := msg.(*swapwire.RespContractSigsForSender)
		if !ok || len(resp.Sigs) == 0 {
			return nil, fmt.Errorf("expected RespContractSigsForSender, got %s", msg.MsgType())
		}
		return resp.Sigs[0], nil
	}

	exp := swapscript.ExpectedContract{
		FundingOutpoint:     tpl.FundingOutpoint,
		FundingAmount:       btcutil.Amount(tpl.FundingAmount),
		FundingRedeemScript: funding.RedeemScript,
		HashX160:            tpl.HashX160,
		TimelockPubkey:      tpl.TimelockPubkey,
		MinLocktime:         t.srv.cfg.BaseTimelock,
		HashlockPubkey:      t.recvHashlock,
	}
	if err := swapscript.ValidateContractTxWithTimelock(tpl.ContractTx, exp, tpl.Timelock, contractFeeTolerance); err != nil {
		return nil, fmt.Errorf("validating closing contract: %w", err)
	}
	sig, err := swapscript.SignContractInput(tpl.ContractTx, funding.RedeemScript,
		btcutil.Amount(tpl.FundingAmount), t.recvPriv)
	if err != nil {
		return nil, fmt.Errorf("signing closing contract: %w", err)
	}
	t.recvOwnContractSig = sig
	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return nil, fmt.Errorf("parsing own signature: %w", err)
	}
	return parsed, nil
}

// collectUpstreamSigForEdge obtains the countersignature owed by edge e's
// sender on edge e's own contract (the one its receiver, route[e]'s
// Maker, just proposed as ReceiverContracts): relayed to route[e-1]'s
// Maker via ReqContractSigsForReceiver/RespContractSigsForReceiver, or
// produced locally when the Taker itself is edge e's sender (e == 0).
func (t *takerSwap) collectUpstreamSigForEdge(e int, tpl swapwire.ContractTxTemplate) (*ecdsa.Signature, error) {
	if e == 0 {
		sig, err := swapscript.SignContractInput(tpl.ContractTx, t.sendFundingScript,
			t.edges[0].amount, t.sendPriv)
		if err != nil {
			return nil, fmt.Errorf("signing edge 0 countersignature: %w", err)
		}
		return ecdsa.ParseDERSignature(sig[:len(sig)-1])
	}

	conn := t.conns[e-1]
	if err := writeMessage(conn, &swapwire.ReqContractSigsForReceiver{
		ContractTxs: []swapwire.ContractTxTemplate{tpl},
	}); err != nil {
		return nil, err
	}
	msg, err := readMessage(conn)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*swapwire.RespContractSigsForReceiver)
	if !ok || len(resp.Sigs) == 0 {
		return nil, fmt.Errorf("expected RespContractSigsForReceiver, got %s", msg.MsgType())
	}
	return resp.Sigs[0], nil
}

// settle walks the route in reverse, revealing the preimage to each hop
// in turn and relaying each hop's own key material one step further along
// than where it was disclosed, so every receiver ends up with sole
// control of its own funding output without anything ever being broadcast
// on chain. It starts at the last Maker because that is the one edge -
// hopCount - whose receiver-side key (the Taker's own) is already known
// locally with no dependency on anything else settling first.
func (t *takerSwap) settle() error {
	// nextHopRecvKey is, at the start of each iteration, the own
	// receiving-leg key of whoever receives the edge the current Maker
	// sends into - exactly what that Maker's handleHashPreimage expects
	// as NextHopMultisigPrivkey to complete its own sending-leg control.
	// The walk starts at maker[hopCount-1], whose outgoing edge is the
	// loop-closing edge received by the Taker itself.
	nextHopRecvKey := privKeyBytes(t.recvPriv)

	for i := t.hopCount - 1; i >= 0; i-- {
		conn := t.conns[i]
		if err := writeMessage(conn, &swapwire.RespHashPreimage{
			Preimage:                  t.preimage,
			HasNextHopMultisigPrivkey: true,
			NextHopMultisigPrivkey:    nextHopRecvKey,
		}); err != nil {
			return err
		}
		msg, err := readMessage(conn)
		if err != nil {
			return err
		}
		resp, ok := msg.(*swapwire.RespPrivKeyHandover)
		if !ok || len(resp.Privkeys) < 2 {
			return fmt.Errorf("hop %d: expected RespPrivKeyHandover with both leg keys, got %s", i, msg.MsgType())
		}
		recvLegKey := resp.Privkeys[0] // this Maker's own key for edge i
		sendLegKey := resp.Privkeys[1] // this Maker's own key for edge i+1

		senderPriv := btcec.PrivKeyFromBytes(sendLegKey[:])
		if !senderPriv.PubKey().IsEqual(t.receiverPubkeyForEdgeSender(i)) {
			return fmt.Errorf("hop %d: disclosed sending-leg key does not match its own advertised pubkey", i)
		}

		// sendLegKey completes edge i+1's receiver-side control: forward
		// it there, either the next Maker in the route or, for the
		// loop-closing edge, keep it locally.
		if i+1 == t.hopCount {
			t.recvCounterPriv = senderPriv
		} else if err := writeMessage(t.conns[i+1], &swapwire.RespPrivKeyHandover{
			Privkeys: [][32]byte{sendLegKey},
		}); err != nil {
			return err
		}

		// recvLegKey becomes the NextHopMultisigPrivkey the Maker one hop
		// further upstream needs for its own sending leg, edge i.
		nextHopRecvKey = recvLegKey
	}

	// The loop's final iteration (i == 0) produced maker[0]'s own
	// receiving-leg key for edge 0; edge 0's sender is the Taker itself,
	// so that key was only needed as a sanity point, not forwarded
	// anywhere - there is no hop further upstream to hand it to.
	//
	// Maker[0] is still waiting on its own handlePrivKeyHandover for edge
	// 0, expecting the sender's (the Taker's own) key.
	edgeZeroKey := privKeyBytes(t.sendPriv)
	return writeMessage(t.conns[0], &swapwire.RespPrivKeyHandover{
		Privkeys: [][32]byte{edgeZeroKey},
	})
}

// receiverPubkeyForEdgeSender returns the pubkey a Maker's disclosed
// sending-leg key for edge i+1 must match: the funding pubkey this Taker
// already holds on file for whoever sends that edge, which is always this
// same Maker (route[i]).
func (t *takerSwap) receiverPubkeyForEdgeSender(i int) *btcec.PublicKey {
	return t.senderPub[i]
}

func privKeyBytes(priv *btcec.PrivateKey) [32]byte {
	var b [32]byte
	copy(b[:], priv.Serialize())
	return b
}

// registerWatches hands the Taker's own two edges - 0 and hopCount - to
// the contract watcher, mirroring makerSession.registerWatches. Middle
// edges are watched by their own Makers; the Taker never holds the key
// material to sweep those.
func (t *takerSwap) registerWatches() {
	hops := []*contractwatch.HopWatch{
		{
			SessionID:       t.id,
			HopIndex:        0,
			FundingOutpoint: t.recvFundingOutpoint,
			FundingPkScript: t.recvFundingPkScript,
			OwnContractTx:   t.recvContractTx,
			OwnRedeemScript: t.recvContractRedeemScript,
			OwnTimelock:     t.edges[t.hopCount].timelock,
		},
		{
			SessionID:       t.id,
			HopIndex:        1,
			FundingOutpoint: t.sendFundingOutpoint,
			FundingPkScript: t.sendFundingPkScript,
			OwnContractTx:   t.sendContractTx,
			OwnRedeemScript: t.sendContractRedeemScript,
			OwnTimelock:     t.edges[0].timelock,
		},
	}
	t.srv.watcher.WatchSession(t.id, hops, t)
}

func (t *takerSwap) BuildTimelockSweep(hop *contractwatch.HopWatch) ([]byte, error) {
	return t.buildSweep(hop, swapscript.WitnessTimelock, [32]byte{})
}

func (t *takerSwap) BuildHashlockSweep(hop *contractwatch.HopWatch, preimage [32]byte) ([]byte, error) {
	return t.buildSweep(hop, swapscript.WitnessHashlock, preimage)
}

// buildSweep mirrors makerSession.buildSweep: the Taker only ever holds
// one branch's key per edge, the hashlock branch on the closing edge
// (hopIndex 0 here) and the timelock refund branch on the opening edge
// (hopIndex 1 here), matching the HopIndex values registerWatches assigns.
func (t *takerSwap) buildSweep(hop *contractwatch.HopWatch, witnessType swapscript.WitnessType, preimage [32]byte) ([]byte, error) {
	if hop.OwnContractTx == nil || len(hop.OwnContractTx.TxOut) == 0 {
		return nil, fmt.Errorf("taker swap %s: hop %d has no contract tx to sweep", t.id, hop.HopIndex)
	}
	contractOut := hop.OwnContractTx.TxOut[0]
	amount := btcutil.Amount(contractOut.Value)
	if amount <= sweepFee {
		return nil, fmt.Errorf("taker swap %s: contract output %d too small to sweep", t.id, amount)
	}

	destScript, err := t.srv.wallet().NewAddress()
	if err != nil {
		return nil, fmt.Errorf("allocating sweep destination: %w", err)
	}

	sweepTx := wire.NewMsgTx(wire.TxVersion)
	sweepTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: hop.OwnContractTx.TxHash(), Index: 0},
		Sequence:         sequenceForWitness(witnessType, hop.OwnTimelock),
	})
	sweepTx.AddTxOut(&wire.TxOut{
		Value:    int64(amount - sweepFee),
		PkScript: destScript,
	})

	var priv *btcec.PrivateKey
	switch {
	case hop.HopIndex == 0 && witnessType == swapscript.WitnessHashlock:
		priv = swapscript.TweakPrivateKey(t.recvPriv, t.recvTweak)
	case hop.HopIndex == 1 && witnessType == swapscript.WitnessTimelock:
		priv = t.sendPriv
	default:
		return nil, fmt.Errorf("taker swap %s: hop %d has no local signing key for this branch", t.id, hop.HopIndex)
	}

	sig, err := swapscript.SignSweep(sweepTx, hop.OwnRedeemScript, amount, priv)
	if err != nil {
		return nil, fmt.Errorf("signing sweep: %w", err)
	}
	switch witnessType {
	case swapscript.WitnessHashlock:
		sweepTx.TxIn[0].Witness = swapscript.SpendContractHashlockWitness(hop.OwnRedeemScript, sig, preimage)
	case swapscript.WitnessTimelock:
		sweepTx.TxIn[0].Witness = swapscript.SpendContractTimelockWitness(hop.OwnRedeemScript, sig)
	}

	var buf bytes.Buffer
	if err := sweepTx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serializing sweep: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMessage(conn net.Conn, msg swapwire.Message) error {
	conn.SetWriteDeadline(time.Now().Add(sessionMessageTimeout))
	if _, err := swapwire.WriteMessage(conn, msg); err != nil {
		return fmt.Errorf("writing %s: %w", msg.MsgType(), err)
	}
	return nil
}

func readMessage(conn net.Conn) (swapwire.Message, error) {
	conn.SetReadDeadline(time.Now().Add(sessionMessageTimeout))
	msg, err := swapwire.ReadMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	return msg, nil
}
