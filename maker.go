package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"

	"github.com/coinswapd/coinswapd/contractwatch"
	"github.com/coinswapd/coinswapd/swapscript"
	"github.com/coinswapd/coinswapd/swapwire"
)

// protocolVersion is the version both Hello messages negotiate; a mismatch
// closes the connection at the handshake.
const protocolVersion = swapwire.ProtocolVersion

// sessionMessageTimeout bounds how long a session worker will block
// waiting for the next message from its counterparty before treating the
// connection as dead.
const sessionMessageTimeout = 5 * time.Minute

// contractFeeTolerance bounds the miner fee a proposed contract tx may
// deduct from the funding amount before a receiver refuses to sign it.
const contractFeeTolerance = btcutil.Amount(10_000)

// contractTxFee is the flat miner fee this Maker deducts from the funding
// amount when it builds its own contract tx as a sender, comfortably inside
// contractFeeTolerance.
const contractTxFee = btcutil.Amount(1_000)

// makerSessionPhase enumerates the strict message sequence a Maker
// session must observe; any message outside the expected phase aborts the
// session, since the only legal message traces are prefixes of this
// sequence.
type makerSessionPhase int

const (
	makerPhaseHello makerSessionPhase = iota
	makerPhaseSenderContractSigs
	makerPhaseProofOfFunding
	makerPhaseReceiverAndSenderSigs
	makerPhaseReceiverContractSigs
	makerPhaseHashPreimage
	makerPhasePrivKeyHandover
	makerPhaseDone
	makerPhaseAborted
)

// hopLeg holds everything a Maker session tracks for one leg: either its
// role as receiver of the incoming hop, or as sender of the outgoing one.
// Narrowed to a single Maker's own view — it never sees the counterparty's
// private key material except what is handed over at settlement.
type hopLeg struct {
	fundingOutpoint wire.OutPoint
	fundingScript   []byte // redeem script of the funding 2-of-2 output
	fundingPkScript []byte // P2WSH pubkey script of the funding output
	fundingAmount   btcutil.Amount

	ownPub     *btcec.PublicKey
	counterPub *btcec.PublicKey

	tweak          [32]byte // only meaningful on the receiver side
	hashlockPubkey *btcec.PublicKey
	timelockPubkey *btcec.PublicKey
	hashX160       [20]byte
	timelock       uint32

	contractTx           *wire.MsgTx
	contractRedeemScript []byte // the hashlock/timelock branch script the contract tx pays into
	contractSig          []byte
	ownContractSig       []byte // this party's own signature over contractTx's funding-multisig input
	counterPriv          *btcec.PrivateKey
}

// makerSession drives the Maker-side protocol state machine for one
// inbound connection end to end: sender-contract signing, proof of
// funding, the combined receiver/sender signature round, preimage
// release, and key handover. One goroutine owns a session for its entire
// lifetime; the only cross-goroutine reads are lastActivity and abort,
// both guarded by mu.
type makerSession struct {
	id   string
	srv  *server
	conn net.Conn

	mu       sync.Mutex
	phase    makerSessionPhase
	lastSeen time.Time

	hashX160    [20]byte
	preimage    [32]byte
	hasPreimage bool

	// finalHop is true once handleProofOfFunding learns there is no next
	// hop to fund outward; this Maker is the last leg of the route and
	// never acquires a sending leg.
	finalHop bool

	receiving hopLeg // this Maker as receiver of the incoming hop
	sending   hopLeg // this Maker as sender of the outgoing hop
}

func newMakerSession(srv *server, conn net.Conn) *makerSession {
	return &makerSession{
		id:       uuid.NewString(),
		srv:      srv,
		conn:     conn,
		phase:    makerPhaseHello,
		lastSeen: srv.clock.Now(),
	}
}

func (s *makerSession) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *makerSession) touch() {
	s.mu.Lock()
	s.lastSeen = s.srv.clock.Now()
	s.mu.Unlock()
}

func (s *makerSession) setPhase(p makerSessionPhase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// abort forcibly ends the session. Any error reaching here came from a
// failed validation, a signature mismatch, or an out-of-order message, so
// the counterparty's bond is a candidate for banning; that decision is
// left to the caller driving the Taker side of a swap, which has the
// OfferBook in scope. A Maker session on its own only tears down the
// connection.
func (s *makerSession) abort(cause error) {
	s.setPhase(makerPhaseAborted)
	s.conn.Close()
	daemonLog.Warnf("session %s aborted: %v", s.id, cause)
}

// run is the session's entire lifetime: handshake, then a strict
// read-validate-respond cycle through every phase, ending in either
// settlement (makerPhaseDone) or an aborted session.
func (s *makerSession) run() error {
	if err := s.doHandshake(); err != nil {
		return err
	}

	leadingSteps := []func() error{
		s.handleSenderContractSigs,
		s.handleProofOfFunding,
	}
	for _, step := range leadingSteps {
		if err := step(); err != nil {
			s.abort(err)
			return err
		}
	}

	// A Maker at the end of the route never acquires a sending leg: there
	// is nothing to propose a contract for, and no downstream Maker to ask
	// for a countersignature. Its only remaining obligation is to receive
	// the settlement preimage and hand over its own receiving-leg key.
	if s.finalHop {
		s.registerWatches()
	} else {
		middleSteps := []func() error{
			s.proposeReceiverAndSenderContracts,
			s.handleReceiverContractSigsRequest,
		}
		for _, step := range middleSteps {
			if err := step(); err != nil {
				s.abort(err)
				return err
			}
		}
	}

	trailingSteps := []func() error{
		s.handleHashPreimage,
		s.handlePrivKeyHandover,
	}
	for _, step := range trailingSteps {
		if err := step(); err != nil {
			s.abort(err)
			return err
		}
	}

	s.setPhase(makerPhaseDone)
	daemonLog.Infof("session %s settled", s.id)
	return nil
}

func (s *makerSession) readMessage() (swapwire.Message, error) {
	s.conn.SetReadDeadline(s.srv.clock.Now().Add(sessionMessageTimeout))
	msg, err := swapwire.ReadMessage(s.conn)
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	s.touch()
	return msg, nil
}

func (s *makerSession) writeMessage(msg swapwire.Message) error {
	if _, err := swapwire.WriteMessage(s.conn, msg); err != nil {
		return fmt.Errorf("writing %s: %w", msg.MsgType(), err)
	}
	s.touch()
	return nil
}

func (s *makerSession) sendError(kind swapwire.ErrorKind, reason string) {
	swapwire.WriteMessage(s.conn, &swapwire.Error{Kind: kind, Reason: reason})
}

func (s *makerSession) doHandshake() error {
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	hello, ok := msg.(*swapwire.TakerHello)
	if !ok {
		s.sendError(swapwire.ErrKindProtocol, "expected TakerHello")
		return fmt.Errorf("expected TakerHello, got %s", msg.MsgType())
	}
	if hello.Version != protocolVersion {
		s.sendError(swapwire.ErrKindProtocol, "version mismatch")
		return fmt.Errorf("version mismatch: peer %d, we %d", hello.Version, protocolVersion)
	}

	s.setPhase(makerPhaseSenderContractSigs)
	return s.writeMessage(&swapwire.MakerHello{Version: protocolVersion})
}

// handleSenderContractSigs is the sender-contract-negotiation phase from
// the receiver's side. A sender cannot build a valid contract template
// without first learning this Maker's fresh funding pubkey and tweaked
// hashlock pubkey, so the phase always opens with the dedicated
// ReqReceiverPubkeys/RespReceiverPubkeys round trip before the sender's
// actual ReqContractSigsForSender arrives; proposeReceiverAndSenderContracts
// drives the mirror image of this same exchange from the sender's side.
// Once the contract templates are in hand, validate them (script form,
// amount, that the hashlock pubkey equals this party's own tweaked pubkey,
// and that the timelock meets the advertised minimum) before signing. The
// contract tx is kept around (not yet broadcast, not yet fully signed) for
// the receiver-side request made later in the session.
func (s *makerSession) handleSenderContractSigs() error {
	if err := s.handleReceiverPubkeysRequest(); err != nil {
		return err
	}

	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	req, ok := msg.(*swapwire.ReqContractSigsForSender)
	if !ok {
		return fmt.Errorf("expected ReqContractSigsForSender, got %s", msg.MsgType())
	}
	if len(req.ContractTxTemplates) == 0 || len(req.ContractTxTemplates) != len(req.Fundings) {
		return fmt.Errorf("malformed sender contract request")
	}

	first := req.ContractTxTemplates[0]
	s.receiving.fundingOutpoint = first.FundingOutpoint
	s.receiving.fundingAmount = btcutil.Amount(first.FundingAmount)
	s.receiving.timelockPubkey = first.TimelockPubkey
	s.receiving.counterPub = first.TimelockPubkey // the sender's refund-branch key is also its funding pubkey
	s.receiving.hashX160 = first.HashX160
	s.receiving.timelock = first.Timelock
	s.receiving.fundingScript = req.Fundings[0].RedeemScript
	s.hashX160 = first.HashX160

	sigs := make([]*ecdsa.Signature, len(req.ContractTxTemplates))
	for i, tpl := range req.ContractTxTemplates {
		exp := swapscript.ExpectedContract{
			FundingOutpoint:     tpl.FundingOutpoint,
			FundingAmount:       btcutil.Amount(tpl.FundingAmount),
			FundingRedeemScript: req.Fundings[i].RedeemScript,
			HashX160:            tpl.HashX160,
			TimelockPubkey:      tpl.TimelockPubkey,
			MinLocktime:         s.srv.cfg.BaseTimelock,
			HashlockPubkey:      s.receiving.hashlockPubkey,
		}
		if err := swapscript.ValidateContractTxWithTimelock(
			tpl.ContractTx, exp, tpl.Timelock, contractFeeTolerance); err != nil {
			return fmt.Errorf("validating sender contract %d: %w", i, err)
		}

		sig, err := swapscript.SignContractInput(tpl.ContractTx, req.Fundings[i].RedeemScript,
			btcutil.Amount(tpl.FundingAmount), s.receivingSigningKey())
		if err != nil {
			return fmt.Errorf("signing sender contract %d: %w", i, err)
		}
		parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
		if err != nil {
			return fmt.Errorf("parsing own signature %d: %w", i, err)
		}
		sigs[i] = parsed

		if i == 0 {
			redeemScript, err := swapscript.ContractRedeemScript(swapscript.ContractParams{
				HashlockPubkey: s.receiving.hashlockPubkey,
				TimelockPubkey: tpl.TimelockPubkey,
				Hash160:        tpl.HashX160,
				Timelock:       tpl.Timelock,
			})
			if err != nil {
				return fmt.Errorf("rebuilding receiving contract redeem script: %w", err)
			}
			s.receiving.contractTx = tpl.ContractTx
			s.receiving.contractRedeemScript = redeemScript
			// Kept, not just shipped back in the response below: once the
			// upstream sender's own half arrives later (as ReceiverSigs in
			// RespContractSigsForReceiverAndSender), both halves are needed
			// to assemble a fully witnessed contract tx the watcher can
			// broadcast unilaterally if this hop is raced.
			s.receiving.ownContractSig = sig
		}
	}

	s.setPhase(makerPhaseProofOfFunding)
	return s.writeMessage(&swapwire.RespContractSigsForSender{Sigs: sigs})
}

// handleReceiverPubkeysRequest answers the upstream sender's request for
// this Maker's receiving-leg pubkeys, generating them fresh (a new
// multisig pubkey and a new hashlock tweak) exactly once per session, the
// moment they are first asked for rather than when the contract template
// later arrives. The sender needs both before it can build a contract
// template whose hashlock branch actually matches this Maker.
func (s *makerSession) handleReceiverPubkeysRequest() error {
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	if _, ok := msg.(*swapwire.ReqReceiverPubkeys); !ok {
		return fmt.Errorf("expected ReqReceiverPubkeys, got %s", msg.MsgType())
	}

	tweak, err := randomTweak()
	if err != nil {
		return fmt.Errorf("generating hashlock tweak: %w", err)
	}
	ownPub, err := s.srv.wallet().NewMultisigPubkey()
	if err != nil {
		return fmt.Errorf("allocating receiver multisig key: %w", err)
	}

	s.receiving.tweak = tweak
	s.receiving.ownPub = ownPub
	s.receiving.hashlockPubkey = swapscript.DeriveHashlockPubkey(ownPub, tweak)

	return s.writeMessage(&swapwire.RespReceiverPubkeys{
		FundingPubkey:  ownPub,
		HashlockPubkey: s.receiving.hashlockPubkey,
	})
}

// receivingSigningKey returns the private key backing this session's
// incoming-leg multisig pubkey.
func (s *makerSession) receivingSigningKey() *btcec.PrivateKey {
	priv, err := s.srv.wallet().PrivKeyFor(s.receiving.ownPub)
	if err != nil {
		daemonLog.Errorf("session %s: no privkey for receiving leg: %v", s.id, err)
	}
	return priv
}

// sendingSigningKey returns the private key backing this session's
// outgoing-leg multisig pubkey.
func (s *makerSession) sendingSigningKey() *btcec.PrivateKey {
	priv, err := s.srv.wallet().PrivKeyFor(s.sending.ownPub)
	if err != nil {
		daemonLog.Errorf("session %s: no privkey for sending leg: %v", s.id, err)
	}
	return priv
}

// handleProofOfFunding validates that the incoming hop's funding tx was
// actually mined to the advertised confirmation depth and pays exactly
// the agreed amount to the exact multisig, and picks up the parameters
// for the outgoing hop carried alongside it.
func (s *makerSession) handleProofOfFunding() error {
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	proof, ok := msg.(*swapwire.RespProofOfFunding)
	if !ok {
		return fmt.Errorf("expected RespProofOfFunding, got %s", msg.MsgType())
	}
	if len(proof.Fundings) == 0 || len(proof.Fundings) != len(proof.Confirmations) {
		return fmt.Errorf("malformed proof of funding")
	}

	for i, funding := range proof.Fundings {
		if proof.Confirmations[i] < s.srv.cfg.MinConfs {
			return fmt.Errorf("funding %d only has %d confirmations, need %d",
				i, proof.Confirmations[i], s.srv.cfg.MinConfs)
		}
		idx, err := swapscript.ValidateFundingTx(funding.FundingTx,
			s.receiving.counterPub, s.receiving.ownPub, s.receiving.fundingAmount)
		if err != nil {
			return fmt.Errorf("validating funding %d: %w", i, err)
		}
		if i == 0 {
			s.receiving.fundingOutpoint = wire.OutPoint{
				Hash:  funding.FundingTx.TxHash(),
				Index: idx,
			}
			s.receiving.fundingScript = funding.RedeemScript
			s.receiving.fundingPkScript = funding.FundingTx.TxOut[idx].PkScript
		}
	}

	if !proof.NextHopData.HasCounterpartyPubkey {
		// Final hop of the route: nothing further to fund outward. Settlement
		// (preimage release, key handover) still lies ahead.
		s.finalHop = true
		s.setPhase(makerPhaseHashPreimage)
		return nil
	}

	s.sending.counterPub = proof.NextHopData.CounterpartyPubkey
	s.sending.fundingAmount = btcutil.Amount(proof.NextHopData.SendAmount)
	s.sending.timelock = proof.NextHopData.Timelock
	s.sending.hashX160 = proof.NextHopData.HashX160

	s.setPhase(makerPhaseReceiverAndSenderSigs)
	return nil
}

// proposeReceiverAndSenderContracts builds this Maker's own funding
// transaction for the outgoing hop, and combines (i) the sender-side
// contract template it needs the next Maker to sign with (ii) the
// receiver-side contract template for the incoming hop that it needs its
// own upstream counterparty to countersign.
func (s *makerSession) proposeReceiverAndSenderContracts() error {
	if err := s.writeMessage(&swapwire.ReqReceiverPubkeys{}); err != nil {
		return err
	}
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	pubkeys, ok := msg.(*swapwire.RespReceiverPubkeys)
	if !ok {
		return fmt.Errorf("expected RespReceiverPubkeys, got %s", msg.MsgType())
	}
	// RespProofOfFunding may already have piggybacked the next hop's
	// funding pubkey; if so it must agree with what this dedicated
	// exchange reports.
	if s.sending.counterPub != nil && !s.sending.counterPub.IsEqual(pubkeys.FundingPubkey) {
		return fmt.Errorf("next-hop funding pubkey disagrees between proof-of-funding and receiver-pubkeys exchange")
	}
	s.sending.counterPub = pubkeys.FundingPubkey
	s.sending.hashlockPubkey = pubkeys.HashlockPubkey

	ownPub, err := s.srv.wallet().NewMultisigPubkey()
	if err != nil {
		return fmt.Errorf("allocating sender multisig key: %w", err)
	}
	s.sending.ownPub = ownPub

	fundingScript, fundingOut, err := swapscript.FundingOutput(
		ownPub, s.sending.counterPub, s.sending.fundingAmount)
	if err != nil {
		return fmt.Errorf("building outgoing funding output: %w", err)
	}
	s.sending.fundingScript = fundingScript
	s.sending.fundingPkScript = fundingOut.PkScript

	fundingTx, err := s.srv.wallet().BuildFundingTx(fundingOut.PkScript, s.sending.fundingAmount)
	if err != nil {
		return fmt.Errorf("building outgoing funding tx: %w", err)
	}
	// The wallet collaborator is expected to place the funding output at
	// index 0; this daemon does not model change-output placement.
	s.sending.fundingOutpoint = wire.OutPoint{Hash: fundingTx.TxHash(), Index: 0}

	// Broadcasting now, ahead of the receiver/sender signature round,
	// lets the next hop's confirmation clock start as early as possible;
	// the contract tx built below only ever spends this outpoint, so
	// nothing downstream depends on it being mined yet.
	if err := s.srv.wallet().Broadcast(fundingTx); err != nil {
		return fmt.Errorf("broadcasting outgoing funding tx: %w", err)
	}

	contractAmount := s.sending.fundingAmount - contractTxFee
	contractRedeemScript, contractOut, err := swapscript.ContractOutput(swapscript.ContractParams{
		HashlockPubkey: s.sending.hashlockPubkey,
		TimelockPubkey: ownPub,
		Hash160:        s.sending.hashX160,
		Timelock:       s.sending.timelock,
	}, contractAmount)
	if err != nil {
		return fmt.Errorf("building outgoing contract output: %w", err)
	}
	s.sending.contractRedeemScript = contractRedeemScript

	contractTx := wire.NewMsgTx(wire.TxVersion)
	contractTx.AddTxIn(&wire.TxIn{PreviousOutPoint: s.sending.fundingOutpoint})
	contractTx.AddTxOut(contractOut)
	s.sending.contractTx = contractTx

	senderContract := swapwire.ContractTxTemplate{
		ContractTx:      contractTx,
		FundingOutpoint: s.sending.fundingOutpoint,
		FundingAmount:   uint64(s.sending.fundingAmount),
		HashlockPubkey:  s.sending.hashlockPubkey,
		TimelockPubkey:  ownPub,
		HashX160:        s.sending.hashX160,
		Timelock:        s.sending.timelock,
	}
	receiverContract := swapwire.ContractTxTemplate{
		ContractTx:      s.receiving.contractTx,
		FundingOutpoint: s.receiving.fundingOutpoint,
		FundingAmount:   uint64(s.receiving.fundingAmount),
		HashlockPubkey:  s.receiving.hashlockPubkey,
		TimelockPubkey:  s.receiving.timelockPubkey,
		HashX160:        s.receiving.hashX160,
		Timelock:        s.receiving.timelock,
	}

	s.setPhase(makerPhaseReceiverContractSigs)

	if err := s.writeMessage(&swapwire.ReqContractSigsAsRecvrAndSender{
		SenderContracts: []swapwire.ContractTxTemplate{senderContract},
		SenderFundings: []swapwire.FundingInfo{{
			FundingTx:    fundingTx,
			OutputIndex:  0,
			RedeemScript: fundingScript,
		}},
		ReceiverContracts: []swapwire.ContractTxTemplate{receiverContract},
	}); err != nil {
		return err
	}

	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	resp, ok := msg.(*swapwire.RespContractSigsForReceiverAndSender)
	if !ok {
		return fmt.Errorf("expected RespContractSigsForReceiverAndSender, got %s", msg.MsgType())
	}
	if len(resp.SenderSigs) == 0 || len(resp.ReceiverSigs) == 0 {
		return fmt.Errorf("missing signatures in combined response")
	}

	if err := swapscript.VerifyContractInputSig(senderContract.ContractTx, s.sending.fundingScript,
		s.sending.fundingAmount, s.sending.counterPub, derSigWithSigHashAll(resp.SenderSigs[0])); err != nil {
		return fmt.Errorf("verifying next-hop signature on sender contract: %w", err)
	}
	if err := swapscript.VerifyContractInputSig(receiverContract.ContractTx, s.receiving.fundingScript,
		s.receiving.fundingAmount, s.receiving.counterPub, derSigWithSigHashAll(resp.ReceiverSigs[0])); err != nil {
		return fmt.Errorf("verifying upstream signature on receiver contract: %w", err)
	}

	// The next-hop Maker's half of the outgoing contract arrives here, but
	// this Maker's own half is only produced later in
	// handleReceiverContractSigsRequest; stash it with the sighash-type byte
	// already appended so it is witness-ready once that half shows up.
	s.sending.contractSig = derSigWithSigHashAll(resp.SenderSigs[0])

	// Both halves of the incoming leg's witness are already in hand (this
	// Maker signed its own half back in handleSenderContractSigs), so that
	// leg's witness can be assembled immediately.
	finalizeContractWitness(s.receiving.contractTx, s.receiving.fundingScript,
		s.receiving.ownPub, s.receiving.counterPub,
		s.receiving.ownContractSig, derSigWithSigHashAll(resp.ReceiverSigs[0]))

	return nil
}

// finalizeContractWitness assembles and installs the 2-of-2 funding-multisig
// witness on a contract transaction's sole input, given both parties' raw
// signatures. SpendMultiSigWitness orders the two sigs to match the
// redeem script's own lexicographic pubkey sort, so ownPub/counterPub can be
// passed in either order.
func finalizeContractWitness(tx *wire.MsgTx, fundingRedeemScript []byte,
	ownPub, counterPub *btcec.PublicKey, ownSig, counterSig []byte) {

	tx.TxIn[0].Witness = swapscript.SpendMultiSigWitness(fundingRedeemScript,
		ownPub.SerializeCompressed(), ownSig, counterPub.SerializeCompressed(), counterSig)
}

// handleReceiverContractSigsRequest answers the Taker's request that this
// Maker, as sender of the outgoing hop, countersign the next Maker's
// receiver-side contract.
func (s *makerSession) handleReceiverContractSigsRequest() error {
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	req, ok := msg.(*swapwire.ReqContractSigsForReceiver)
	if !ok {
		return fmt.Errorf("expected ReqContractSigsForReceiver, got %s", msg.MsgType())
	}

	sigs := make([]*ecdsa.Signature, len(req.ContractTxs))
	for i, tpl := range req.ContractTxs {
		sig, err := swapscript.SignContractInput(tpl.ContractTx, s.sending.fundingScript,
			s.sending.fundingAmount, s.sendingSigningKey())
		if err != nil {
			return fmt.Errorf("countersigning receiver contract %d: %w", i, err)
		}
		parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
		if err != nil {
			return fmt.Errorf("parsing countersignature %d: %w", i, err)
		}
		sigs[i] = parsed

		if i == 0 {
			// This is this Maker's own half of the outgoing contract's
			// funding-multisig witness. The other half, the next-hop
			// Maker's signature, was already collected and stashed in
			// proposeReceiverAndSenderContracts; both are now in hand, so
			// the watcher can be handed a tx it could broadcast unilaterally
			// with no further signing.
			s.sending.ownContractSig = sig
			finalizeContractWitness(s.sending.contractTx, s.sending.fundingScript,
				s.sending.ownPub, s.sending.counterPub,
				s.sending.ownContractSig, s.sending.contractSig)
		}
	}

	s.registerWatches()

	s.setPhase(makerPhaseHashPreimage)
	return s.writeMessage(&swapwire.RespContractSigsForReceiver{Sigs: sigs})
}

// registerWatches hands this session's leg(s) to the contract watcher once
// every signature is in place, so a counterparty's adversarial broadcast on
// either leg races the other immediately. A final-hop Maker never acquires
// a sending leg and so only ever has one hop to watch.
func (s *makerSession) registerWatches() {
	hops := []*contractwatch.HopWatch{
		{
			SessionID:       s.id,
			HopIndex:        0,
			FundingOutpoint: s.receiving.fundingOutpoint,
			FundingPkScript: s.receiving.fundingPkScript,
			OwnContractTx:   s.receiving.contractTx,
			OwnRedeemScript: s.receiving.contractRedeemScript,
			OwnTimelock:     s.receiving.timelock,
		},
	}
	if !s.finalHop {
		hops = append(hops, &contractwatch.HopWatch{
			SessionID:       s.id,
			HopIndex:        1,
			FundingOutpoint: s.sending.fundingOutpoint,
			FundingPkScript: s.sending.fundingPkScript,
			OwnContractTx:   s.sending.contractTx,
			OwnRedeemScript: s.sending.contractRedeemScript,
			OwnTimelock:     s.sending.timelock,
		})
	}
	s.srv.watcher.WatchSession(s.id, hops, s)
}

// sweepFee is the flat miner fee a recovery sweep pays, deducted from the
// contract output's value. A production wallet would estimate this from
// the prevailing fee rate; a watchtower sweep has no Taker to coordinate
// fee bumping with, so a conservative flat fee is used instead.
const sweepFee = btcutil.Amount(2_000)

// BuildTimelockSweep and BuildHashlockSweep implement
// contractwatch.SweepBuilder for this session's two legs: build a
// transaction spending hop's contract output to a fresh wallet address via
// the requested branch, sign it, and return it fully serialized and ready
// to broadcast.
func (s *makerSession) BuildTimelockSweep(hop *contractwatch.HopWatch) ([]byte, error) {
	return s.buildSweep(hop, swapscript.WitnessTimelock, [32]byte{})
}

func (s *makerSession) BuildHashlockSweep(hop *contractwatch.HopWatch, preimage [32]byte) ([]byte, error) {
	return s.buildSweep(hop, swapscript.WitnessHashlock, preimage)
}

func (s *makerSession) buildSweep(hop *contractwatch.HopWatch, witnessType swapscript.WitnessType, preimage [32]byte) ([]byte, error) {
	if hop.OwnContractTx == nil || len(hop.OwnContractTx.TxOut) == 0 {
		return nil, fmt.Errorf("session %s: hop %d has no contract tx to sweep", s.id, hop.HopIndex)
	}
	contractOut := hop.OwnContractTx.TxOut[0]
	amount := btcutil.Amount(contractOut.Value)
	if amount <= sweepFee {
		return nil, fmt.Errorf("session %s: contract output %d too small to sweep", s.id, amount)
	}

	destScript, err := s.srv.wallet().NewAddress()
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

	priv, err := s.sweepSigningKey(hop.HopIndex, witnessType)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.id, err)
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

// sequenceForWitness returns the nSequence value a sweep input must carry:
// the CSV relative timelock for the refund branch, or, for the hashlock
// branch, which carries no relative-locktime constraint,
// MaxTxInSequenceNum-1: a non-final sequence that does not signal
// replace-by-fee.
func sequenceForWitness(witnessType swapscript.WitnessType, timelock uint32) uint32 {
	if witnessType == swapscript.WitnessTimelock {
		return timelock
	}
	return wire.MaxTxInSequenceNum - 1
}

// sweepSigningKey returns the private key controlling the given hop's
// branch of its contract script, if this session holds one. On the
// receiving leg (hop 0) only the hashlock branch is ours, keyed by our own
// funding key tweaked by the secret only we chose; the timelock refund
// branch there belongs to the upstream sender. On the sending leg (hop 1)
// only the timelock refund branch is ours; the hashlock branch belongs to
// the downstream receiver.
func (s *makerSession) sweepSigningKey(hopIndex uint32, witnessType swapscript.WitnessType) (*btcec.PrivateKey, error) {
	switch {
	case hopIndex == 0 && witnessType == swapscript.WitnessHashlock:
		base := s.receivingSigningKey()
		if base == nil {
			return nil, fmt.Errorf("no signing key for incoming leg")
		}
		return swapscript.TweakPrivateKey(base, s.receiving.tweak), nil
	case hopIndex == 1 && witnessType == swapscript.WitnessTimelock:
		priv := s.sendingSigningKey()
		if priv == nil {
			return nil, fmt.Errorf("no signing key for outgoing leg")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("hop %d has no local signing key for this branch", hopIndex)
	}
}

// handleHashPreimage verifies the released preimage against HX and, if the
// Taker also handed over the next-hop multisig private key, accepts
// settlement of the outgoing leg before handing over this Maker's own
// private key for the incoming leg.
func (s *makerSession) handleHashPreimage() error {
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	resp, ok := msg.(*swapwire.RespHashPreimage)
	if !ok {
		return fmt.Errorf("expected RespHashPreimage, got %s", msg.MsgType())
	}

	got := swapscript.Hash160FromPreimage(resp.Preimage)
	if got != s.hashX160 {
		return fmt.Errorf("preimage does not hash to the expected value")
	}
	s.preimage = resp.Preimage
	s.hasPreimage = true

	if resp.HasNextHopMultisigPrivkey {
		priv := btcec.PrivKeyFromBytes(resp.NextHopMultisigPrivkey[:])
		if !priv.PubKey().IsEqual(s.sending.counterPub) {
			return fmt.Errorf("handed-over next-hop privkey does not match expected pubkey")
		}
		s.sending.counterPriv = priv
	}

	ownPriv := s.receivingSigningKey()
	if ownPriv == nil {
		return fmt.Errorf("no signing key for incoming leg")
	}
	var keyBytes [32]byte
	copy(keyBytes[:], ownPriv.Serialize())
	keys := [][32]byte{keyBytes}

	// A Maker with a sending leg discloses its own sending-leg key in the
	// same reply: the Taker needs it one step ahead, to hand to the next
	// hop's receiver when that hop settles in turn. A final-hop Maker has
	// no sending leg and so only ever hands over the one key.
	if !s.finalHop {
		sendPriv := s.sendingSigningKey()
		if sendPriv == nil {
			return fmt.Errorf("no signing key for outgoing leg")
		}
		var sendKeyBytes [32]byte
		copy(sendKeyBytes[:], sendPriv.Serialize())
		keys = append(keys, sendKeyBytes)
	}

	s.setPhase(makerPhasePrivKeyHandover)
	return s.writeMessage(&swapwire.RespPrivKeyHandover{Privkeys: keys})
}

// handlePrivKeyHandover receives the upstream counterparty's own private
// key for the incoming hop's multisig, completing this Maker's sole
// control of that UTXO.
func (s *makerSession) handlePrivKeyHandover() error {
	msg, err := s.readMessage()
	if err != nil {
		return err
	}
	resp, ok := msg.(*swapwire.RespPrivKeyHandover)
	if !ok {
		return fmt.Errorf("expected RespPrivKeyHandover, got %s", msg.MsgType())
	}
	if len(resp.Privkeys) == 0 {
		return fmt.Errorf("empty private key handover")
	}

	priv := btcec.PrivKeyFromBytes(resp.Privkeys[0][:])
	if !priv.PubKey().IsEqual(s.receiving.counterPub) {
		return fmt.Errorf("handed-over incoming-leg privkey does not match expected pubkey")
	}
	s.receiving.counterPriv = priv

	daemonLog.Infof("session %s: sole control of incoming leg confirmed", s.id)
	return nil
}

func randomTweak() ([32]byte, error) {
	var t [32]byte
	_, err := rand.Read(t[:])
	return t, err
}

// derSigWithSigHashAll reattaches the SIGHASH_ALL type byte that
// VerifyContractInputSig expects but ecdsa.Signature.Serialize does not
// carry, since the wire protocol transmits bare DER signatures and every
// contract input in this protocol is always signed SIGHASH_ALL.
func derSigWithSigHashAll(sig *ecdsa.Signature) []byte {
	return append(sig.Serialize(), byte(txscript.SigHashAll))
}

// wallet exposes the daemon's configured Wallet collaborator.
func (s *server) wallet() Wallet {
	return s.walletImpl
}
