package swapwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// ReqContractSigsForSender asks the receiving Maker to sign the sender
// side's proposed contract transactions, one per funding tx of the hop.
type ReqContractSigsForSender struct {
	ContractTxTemplates []ContractTxTemplate
	Fundings             []FundingInfo
}

var _ Message = (*ReqContractSigsForSender)(nil)

func (m *ReqContractSigsForSender) Decode(r io.Reader) error {
	templates, err := readContractTemplates(r)
	if err != nil {
		return err
	}
	fundings, err := readFundings(r)
	if err != nil {
		return err
	}
	m.ContractTxTemplates = templates
	m.Fundings = fundings
	return nil
}

func (m *ReqContractSigsForSender) Encode(w io.Writer) error {
	if err := writeContractTemplates(w, m.ContractTxTemplates); err != nil {
		return err
	}
	return writeFundings(w, m.Fundings)
}

func (m *ReqContractSigsForSender) MsgType() MessageType     { return MsgReqContractSigsForSender }
func (m *ReqContractSigsForSender) MaxPayloadLength() uint32 { return MaxMessagePayload - 64 }

// RespContractSigsForSender returns one signature per requested contract
// template, in the same order.
type RespContractSigsForSender struct {
	Sigs []*ecdsa.Signature
}

var _ Message = (*RespContractSigsForSender)(nil)

func (m *RespContractSigsForSender) Decode(r io.Reader) error {
	sigs, err := readSigs(r)
	if err != nil {
		return err
	}
	m.Sigs = sigs
	return nil
}

func (m *RespContractSigsForSender) Encode(w io.Writer) error {
	return writeSigs(w, m.Sigs)
}

func (m *RespContractSigsForSender) MsgType() MessageType     { return MsgRespContractSigsForSender }
func (m *RespContractSigsForSender) MaxPayloadLength() uint32 { return 8192 }

// RespProofOfFunding reports a hop's now-broadcast funding transactions,
// their confirmation heights, the multisig redeem scripts a counterparty
// needs to verify them, and the parameters for the next hop so the chain
// can continue without a second round trip.
type RespProofOfFunding struct {
	Fundings             []FundingInfo
	Confirmations        []uint32
	MultisigRedeemScripts [][]byte
	NextHopData          NextHopData
}

var _ Message = (*RespProofOfFunding)(nil)

func (m *RespProofOfFunding) Decode(r io.Reader) error {
	fundings, err := readFundings(r)
	if err != nil {
		return err
	}
	confs, err := readConfirmations(r)
	if err != nil {
		return err
	}
	scripts, err := readRedeemScripts(r)
	if err != nil {
		return err
	}
	if err := m.NextHopData.decode(r); err != nil {
		return err
	}
	m.Fundings = fundings
	m.Confirmations = confs
	m.MultisigRedeemScripts = scripts
	return nil
}

func (m *RespProofOfFunding) Encode(w io.Writer) error {
	if err := writeFundings(w, m.Fundings); err != nil {
		return err
	}
	if err := writeConfirmations(w, m.Confirmations); err != nil {
		return err
	}
	if err := writeRedeemScripts(w, m.MultisigRedeemScripts); err != nil {
		return err
	}
	return m.NextHopData.encode(w)
}

func (m *RespProofOfFunding) MsgType() MessageType     { return MsgRespProofOfFunding }
func (m *RespProofOfFunding) MaxPayloadLength() uint32 { return MaxMessagePayload - 64 }

// ReqContractSigsAsRecvrAndSender is the combined request a receiver-
// turned-sender makes of the Taker: sign my sender-side contracts for the
// next hop, and countersign my receiver-side contracts for this hop.
// SenderFundings carries the just-broadcast funding transaction(s) backing
// SenderContracts — the only copy of those bytes the Taker has, since it
// did not build that funding tx itself and so cannot reconstruct it the
// way it reconstructs ReceiverContracts' funding from state it already
// holds.
type ReqContractSigsAsRecvrAndSender struct {
	SenderContracts   []ContractTxTemplate
	SenderFundings    []FundingInfo
	ReceiverContracts []ContractTxTemplate
}

var _ Message = (*ReqContractSigsAsRecvrAndSender)(nil)

func (m *ReqContractSigsAsRecvrAndSender) Decode(r io.Reader) error {
	sender, err := readContractTemplates(r)
	if err != nil {
		return err
	}
	senderFundings, err := readFundings(r)
	if err != nil {
		return err
	}
	receiver, err := readContractTemplates(r)
	if err != nil {
		return err
	}
	m.SenderContracts = sender
	m.SenderFundings = senderFundings
	m.ReceiverContracts = receiver
	return nil
}

func (m *ReqContractSigsAsRecvrAndSender) Encode(w io.Writer) error {
	if err := writeContractTemplates(w, m.SenderContracts); err != nil {
		return err
	}
	if err := writeFundings(w, m.SenderFundings); err != nil {
		return err
	}
	return writeContractTemplates(w, m.ReceiverContracts)
}

func (m *ReqContractSigsAsRecvrAndSender) MsgType() MessageType {
	return MsgReqContractSigsAsRecvrAndSender
}
func (m *ReqContractSigsAsRecvrAndSender) MaxPayloadLength() uint32 {
	return MaxMessagePayload - 64
}

// RespContractSigsForReceiverAndSender answers
// ReqContractSigsAsRecvrAndSender: the next-hop Maker's signatures on the
// sender contracts, and the signatures this hop's sender owes on the
// receiver contracts.
type RespContractSigsForReceiverAndSender struct {
	SenderSigs   []*ecdsa.Signature
	ReceiverSigs []*ecdsa.Signature
}

var _ Message = (*RespContractSigsForReceiverAndSender)(nil)

func (m *RespContractSigsForReceiverAndSender) Decode(r io.Reader) error {
	sender, err := readSigs(r)
	if err != nil {
		return err
	}
	receiver, err := readSigs(r)
	if err != nil {
		return err
	}
	m.SenderSigs = sender
	m.ReceiverSigs = receiver
	return nil
}

func (m *RespContractSigsForReceiverAndSender) Encode(w io.Writer) error {
	if err := writeSigs(w, m.SenderSigs); err != nil {
		return err
	}
	return writeSigs(w, m.ReceiverSigs)
}

func (m *RespContractSigsForReceiverAndSender) MsgType() MessageType {
	return MsgRespContractSigsForReceiverAndSender
}
func (m *RespContractSigsForReceiverAndSender) MaxPayloadLength() uint32 { return 8192 }

// ReqContractSigsForReceiver asks the previous-hop sender to countersign
// the now-fully-specified receiver-side contract transactions.
type ReqContractSigsForReceiver struct {
	ContractTxs []ContractTxTemplate
}

var _ Message = (*ReqContractSigsForReceiver)(nil)

func (m *ReqContractSigsForReceiver) Decode(r io.Reader) error {
	templates, err := readContractTemplates(r)
	if err != nil {
		return err
	}
	m.ContractTxs = templates
	return nil
}

func (m *ReqContractSigsForReceiver) Encode(w io.Writer) error {
	return writeContractTemplates(w, m.ContractTxs)
}

func (m *ReqContractSigsForReceiver) MsgType() MessageType     { return MsgReqContractSigsForReceiver }
func (m *ReqContractSigsForReceiver) MaxPayloadLength() uint32 { return MaxMessagePayload - 64 }

// RespContractSigsForReceiver carries the signatures requested by
// ReqContractSigsForReceiver, one per contract transaction, in order.
type RespContractSigsForReceiver struct {
	Sigs []*ecdsa.Signature
}

var _ Message = (*RespContractSigsForReceiver)(nil)

func (m *RespContractSigsForReceiver) Decode(r io.Reader) error {
	sigs, err := readSigs(r)
	if err != nil {
		return err
	}
	m.Sigs = sigs
	return nil
}

func (m *RespContractSigsForReceiver) Encode(w io.Writer) error {
	return writeSigs(w, m.Sigs)
}

func (m *RespContractSigsForReceiver) MsgType() MessageType     { return MsgRespContractSigsForReceiver }
func (m *RespContractSigsForReceiver) MaxPayloadLength() uint32 { return 8192 }
